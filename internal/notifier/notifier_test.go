package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MarketForecaster/internal/model"
	"MarketForecaster/internal/trainer"
)

func testNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = url
	n.RetryInterval = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "hello" || got["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", got)
	}
}

func TestSendWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).SendWithRetry(context.Background(), "x", 3); err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).SendWithRetry(context.Background(), "x", 2); err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDispatch(t *testing.T) {
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]string
		json.NewDecoder(r.Body).Decode(&p)
		sent = append(sent, p["text"])
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	n := testNotifier(srv.URL)

	var updates []telegramUpdate
	body := `[
		{"update_id": 10, "message": {"text": " /model ", "chat": {"id": 42}}},
		{"update_id": 11, "message": {"text": "/retrain", "chat": {"id": 7}}},
		{"update_id": 12}
	]`
	if err := json.Unmarshal([]byte(body), &updates); err != nil {
		t.Fatal(err)
	}
	var handled []string
	offset := n.dispatch(context.Background(), updates, 0, func(_ context.Context, cmd string) string {
		handled = append(handled, cmd)
		return "reply to " + cmd
	})
	if offset != 13 {
		t.Errorf("offset = %d, want 13", offset)
	}
	if len(handled) != 1 || handled[0] != "/model" {
		t.Errorf("handled = %v, want only /model from the configured chat", handled)
	}
	if len(sent) != 1 || sent[0] != "reply to /model" {
		t.Errorf("sent = %v", sent)
	}
}

func TestGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "5" {
			t.Errorf("offset = %s", r.URL.Query().Get("offset"))
		}
		w.Write([]byte(`{"ok":true,"result":[{"update_id":5,"message":{"text":"/forecast","chat":{"id":42}}}]}`))
	}))
	defer srv.Close()

	updates, err := testNotifier(srv.URL).getUpdates(context.Background(), 5)
	if err != nil {
		t.Fatalf("getUpdates: %v", err)
	}
	if len(updates) != 1 || updates[0].Message.Text != "/forecast" {
		t.Errorf("updates = %+v", updates)
	}
}

func TestFormatPriceAndPct(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{FormatPrice(4123.456), "4123.46"},
		{FormatPrice(100), "100.00"},
		{FormatPct(0.012345), "+1.23%"},
		{FormatPct(-0.005), "-0.50%"},
		{FormatPct(0), "0.00%"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("got %s, want %s", tc.got, tc.want)
		}
	}
}

func TestFormatForecastReport(t *testing.T) {
	anchor := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m := &trainer.TrainedModel{ID: "0123456789abcdef", Family: "linear"}
	steps := []model.Forecast{
		{Anchor: anchor, Horizon: 5, PredictedPctChange: 0.01, PredictedPrice: 101},
		{Anchor: anchor, Horizon: 10, PredictedPctChange: 0.02, PredictedPrice: 102},
	}
	series := &model.PriceSeries{Symbol: "SPX<500>", Bars: []model.PriceBar{
		{Time: anchor.AddDate(0, 0, -1), Open: 90, High: 110, Low: 90, Close: 105},
		{Time: anchor, Open: 100, High: 101, Low: 80, Close: 100},
	}}
	out := FormatForecastReport(series, steps, m)
	for _, want := range []string{"SPX&lt;500&gt;", "2024-03-01", "Last close: 100.00", "52w range: 80.00 to 110.00 (at 67%)", "+5 bars: 101.00 (+1.00%)", "+10 bars: 102.00 (+2.00%)", "01234567", "error grows"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if FormatForecastReport(series, nil, nil) == "" {
		t.Error("empty report for no steps")
	}
}

func TestFormatModelReport(t *testing.T) {
	if !strings.Contains(FormatModelReport(nil), "/retrain") {
		t.Error("nil model report should point to /retrain")
	}
	m := &trainer.TrainedModel{ID: "abc", Family: "tree", Horizon: 5, Schema: model.FeatureSchema{"ma14", "rsi14"}}
	out := FormatModelReport(m)
	if !strings.Contains(out, "Family: tree") || !strings.Contains(out, "Features: 2") {
		t.Errorf("report = %s", out)
	}
}

func TestFormatError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("collect: %w", model.ErrEmptySeries), "no bars"},
		{&model.InsufficientHistoryError{Have: 10, Need: 206}, "only 10 bars of history, need 206"},
		{&model.InsufficientDataError{Partition: "train", Rows: 3, Need: 30}, "only 3 train rows"},
		{model.NewSchemaMismatch(model.FeatureSchema{"a"}, model.FeatureSchema{"b"}), "retrain required"},
		{&model.CorruptModelError{Reason: "bad version"}, "unreadable: bad version"},
		{errors.New("boom <x>"), "boom &lt;x&gt;"},
	}
	for _, tc := range cases {
		if got := FormatError("Retrain", tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("FormatError(%v) = %s, want it to contain %q", tc.err, got, tc.want)
		}
	}
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"MarketForecaster/internal/model"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func testRequest(interval string) Request {
	return Request{Symbol: "SPX500", Interval: interval, From: day(2024, 1, 1), To: day(2024, 3, 1)}
}

func TestRequest_Validate(t *testing.T) {
	bad := []Request{
		{Interval: IntervalDaily, From: day(2024, 1, 1), To: day(2024, 2, 1)},
		{Symbol: "X", Interval: "3h", From: day(2024, 1, 1), To: day(2024, 2, 1)},
		{Symbol: "X", Interval: "1mo", From: day(2024, 1, 1), To: day(2024, 2, 1)},
		{Symbol: "X", Interval: IntervalDaily, From: day(2024, 2, 1), To: day(2024, 1, 1)},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("expected error for %+v", r)
		}
	}
	for _, interval := range []string{IntervalDaily, IntervalWeekly, "1h", "60m", "15m", "5m", "1m"} {
		r := Request{Symbol: "X", Interval: interval, From: day(2024, 1, 1), To: day(2024, 1, 5)}
		if err := r.Validate(); err != nil {
			t.Errorf("interval %s: %v", interval, err)
		}
	}
}

func TestIntradaySources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	defer srv.Close()

	req := testRequest("1h")
	if _, err := NewBarsAPIFetcher(srv.URL, "", "").FetchBars(context.Background(), req); err == nil {
		t.Error("bars API accepted an intraday interval")
	}
	if _, err := (&MockFetcher{Price: 100}).FetchBars(context.Background(), req); err == nil {
		t.Error("mock accepted an intraday interval")
	}

	path := filepath.Join(t.TempDir(), "hourly.csv")
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-02T15:00:00Z,101,102,100,101.5,5\n" +
		"2024-01-02T14:00:00Z,100,101,99,100.5,4\n" +
		"2024-01-02T16:00:00Z,101.5,103,101,102,6\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	bars, err := NewFileFetcher(path).FetchBars(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 3 || bars[0].Time.Hour() != 14 || bars[2].Close != 102 {
		t.Errorf("hourly bars = %+v", bars)
	}

	var gotInterval string
	yahoo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1704204000,1704207600],
			"indicators":{"quote":[{"open":[100,101],"high":[101,102],"low":[99,100],
			"close":[100.5,101.5],"volume":[4,5]}]}}],"error":null}}`)
	}))
	defer yahoo.Close()
	y := NewYahooFetcher("")
	y.BaseURL = yahoo.URL
	bars, err = y.FetchBars(context.Background(), req)
	if err != nil {
		t.Fatalf("yahoo FetchBars: %v", err)
	}
	if gotInterval != "1h" || len(bars) != 2 || bars[1].Time.Sub(bars[0].Time) != time.Hour {
		t.Errorf("yahoo interval %q, bars %+v", gotInterval, bars)
	}
}

func TestYahooFetcher(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1704412800,1704326400,1704499200],
			"indicators":{"quote":[{"open":[101,100,null],"high":[102,101,null],"low":[100,99,null],
			"close":[101.5,100.5,null],"volume":[10,20,null]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	bars, err := f.FetchBars(context.Background(), testRequest(IntervalDaily))
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if gotPath != "/v8/finance/chart/^GSPC" {
		t.Errorf("path = %q", gotPath)
	}
	want := fmt.Sprintf("interval=1d&period1=%d&period2=%d", day(2024, 1, 1).Unix(), day(2024, 3, 1).Unix())
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (null bar skipped)", len(bars))
	}
	if bars[0].Close != 100.5 || !bars[0].Time.Before(bars[1].Time) {
		t.Errorf("bars not sorted: %+v", bars)
	}
}

func TestYahooFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	if _, err := f.FetchBars(context.Background(), testRequest(IntervalDaily)); err == nil {
		t.Fatal("expected error")
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := newHTTPClient("", 100)
	body, err := c.get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("body=%q calls=%d", body, calls)
	}
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newHTTPClient("", 100).get(context.Background(), srv.URL, nil)
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBarsAPIFetcher_WeeklyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/v1/bars/weekly":
			http.NotFound(w, r)
		case "/api/v1/bars/daily":
			// Mon 2024-01-08 .. Wed 2024-01-10, Mon 2024-01-15
			fmt.Fprint(w, `[
				{"timestamp":1704672000,"open":10,"high":11,"low":9,"close":10.5,"volume":1},
				{"timestamp":1704758400,"open":10.5,"high":13,"low":10,"close":12,"volume":1},
				{"timestamp":1704844800,"open":12,"high":12.5,"low":8,"close":9,"volume":1},
				{"timestamp":1705276800,"open":9,"high":9.5,"low":8.5,"close":9.2,"volume":1}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewBarsAPIFetcher(srv.URL, "secret", "")
	bars, err := f.FetchBars(context.Background(), testRequest(IntervalWeekly))
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d weekly bars, want 2", len(bars))
	}
	w := bars[0]
	if w.Open != 10 || w.High != 13 || w.Low != 8 || w.Close != 9 || w.Volume != 3 {
		t.Errorf("first week = %+v", w)
	}
}

func TestFileFetcher_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-03,101,102,100,101.5,5\n" +
		"2024-01-02,100,101,99,100.5,4\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	bars, err := NewFileFetcher(path).FetchBars(context.Background(), testRequest(IntervalDaily))
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 || !bars[0].Time.Equal(day(2024, 1, 2)) || bars[1].Close != 101.5 {
		t.Errorf("got %+v", bars)
	}
}

func TestFileFetcher_CSVMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte("date,open,high,low\n2024-01-02,1,1,1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileFetcher(path).FetchBars(context.Background(), testRequest(IntervalDaily)); err == nil {
		t.Fatal("expected error for missing close column")
	}
}

func TestFileFetcher_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	rows := []ParquetBar{
		{Timestamp: day(2024, 1, 2).UnixMilli(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: day(2024, 1, 3).UnixMilli(), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 11},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bars, err := NewFileFetcher(path).FetchBars(context.Background(), testRequest(IntervalDaily))
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 || !bars[1].Time.Equal(day(2024, 1, 3)) || bars[1].Close != 2 {
		t.Errorf("got %+v", bars)
	}
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(&MockFetcher{Price: 5000})
	series, err := c.Collect(context.Background(), testRequest(IntervalDaily))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if series.Len() == 0 || series.Symbol != "SPX500" || series.Interval != IntervalDaily {
		t.Errorf("unexpected series %+v", series)
	}
	for _, b := range series.Bars {
		if wd := b.Time.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekend bar %s", b.Time)
		}
	}
}

func TestCollector_FiltersAndDedupes(t *testing.T) {
	bar := func(d time.Time, c float64) model.PriceBar {
		return model.PriceBar{Time: d, Open: c, High: c, Low: c, Close: c}
	}
	c := NewCollector(&MockFetcher{Bars: []model.PriceBar{
		bar(day(2023, 12, 29), 1),
		bar(day(2024, 1, 2), 2),
		bar(day(2024, 1, 2), 3),
		bar(day(2024, 1, 3), 4),
	}})
	series, err := c.Collect(context.Background(), testRequest(IntervalDaily))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if series.Len() != 2 || series.Bars[0].Close != 3 {
		t.Errorf("got %+v", series.Bars)
	}
}

func TestCollector_EmptyAndFailingSources(t *testing.T) {
	_, err := NewCollector(&MockFetcher{Bars: []model.PriceBar{}}).Collect(context.Background(), testRequest(IntervalDaily))
	if !errors.Is(err, model.ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
	boom := errors.New("source down")
	_, err = NewCollector(&MockFetcher{Err: boom}).Collect(context.Background(), testRequest(IntervalDaily))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped source error, got %v", err)
	}
}

func TestNewFetcher(t *testing.T) {
	for _, src := range []string{"yahoo", "bars_api", "file", "mock"} {
		f, err := NewFetcher(src, "http://localhost", "key", "bars.csv", "")
		if err != nil {
			t.Fatalf("NewFetcher(%s): %v", src, err)
		}
		if f.Name() != src {
			t.Errorf("NewFetcher(%s).Name() = %s", src, f.Name())
		}
	}
	if _, err := NewFetcher("ftp", "", "", "", ""); err == nil {
		t.Error("expected error for unknown source")
	}
}

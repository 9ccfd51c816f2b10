package notifier

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"MarketForecaster/internal/calculator"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/trainer"
)

const dateLayout = "2006-01-02"

// FormatPrice rounds a price half away from zero to two decimals.
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// FormatPct renders a fractional change as a signed percentage with two decimals.
func FormatPct(v float64) string {
	d := decimal.NewFromFloat(v).Shift(2).Round(2)
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}

// FormatForecastReport renders a multi-step forecast made from series.
func FormatForecastReport(series *model.PriceSeries, steps []model.Forecast, m *trainer.TrainedModel) string {
	var b strings.Builder
	if len(steps) == 0 || series.Len() == 0 {
		return "No forecast available."
	}
	fmt.Fprintf(&b, "📈 <b>%s forecast</b> | anchor %s\n\n", html.EscapeString(series.Symbol), steps[0].Anchor.Format(dateLayout))
	fmt.Fprintf(&b, "Last close: %s\n", FormatPrice(series.Last().Close))
	if r, ok := calculator.RecentRange(series, calculator.TradingDaysPerYear); ok {
		fmt.Fprintf(&b, "52w range: %s to %s (at %.0f%%)\n", FormatPrice(r.Low), FormatPrice(r.High), r.Position*100)
	}
	b.WriteString("\n")
	for _, f := range steps {
		fmt.Fprintf(&b, "  +%d bars: %s (%s)\n", f.Horizon, FormatPrice(f.PredictedPrice), FormatPct(f.PredictedPctChange))
	}
	if len(steps) > 1 {
		b.WriteString("\n<i>Steps beyond the first reuse predicted prices; error grows with horizon.</i>\n")
	}
	if m != nil {
		fmt.Fprintf(&b, "\nModel %s (%s), test MSE %.3g\n", shortID(m.ID), m.Family, m.Meta.TestMSE)
	}
	return b.String()
}

// FormatModelReport describes a fitted model.
func FormatModelReport(m *trainer.TrainedModel) string {
	if m == nil {
		return "No model loaded yet. Send /retrain to fit one."
	}
	var b strings.Builder
	b.WriteString("🧠 <b>Model</b>\n\n")
	fmt.Fprintf(&b, "ID: %s\n", m.ID)
	fmt.Fprintf(&b, "Family: %s\n", m.Family)
	fmt.Fprintf(&b, "Horizon: %d bars\n", m.Horizon)
	fmt.Fprintf(&b, "Features: %d\n", len(m.Schema))
	fmt.Fprintf(&b, "Rows: %d train / %d test\n", m.Meta.TrainRows, m.Meta.TestRows)
	fmt.Fprintf(&b, "MSE: %.3g train / %.3g test\n", m.Meta.TrainMSE, m.Meta.TestMSE)
	fmt.Fprintf(&b, "Fitted: %s\n", m.Meta.FittedAt.Format("2006-01-02 15:04 MST"))
	return b.String()
}

// FormatError explains a failed operation in user terms.
func FormatError(op string, err error) string {
	var (
		hist     *model.InsufficientHistoryError
		data     *model.InsufficientDataError
		mismatch *model.SchemaMismatchError
		corrupt  *model.CorruptModelError
		detail   string
	)
	switch {
	case errors.Is(err, model.ErrEmptySeries):
		detail = "the data source returned no bars"
	case errors.As(err, &hist):
		detail = fmt.Sprintf("only %d bars of history, need %d", hist.Have, hist.Need)
	case errors.As(err, &data):
		detail = fmt.Sprintf("only %d %s rows, need %d", data.Rows, data.Partition, data.Need)
	case errors.As(err, &mismatch):
		detail = "indicator features no longer match the model; retrain required"
	case errors.As(err, &corrupt):
		detail = "stored model is unreadable: " + corrupt.Reason
	default:
		detail = err.Error()
	}
	return fmt.Sprintf("❌ <b>%s failed</b>: %s", html.EscapeString(op), html.EscapeString(detail))
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Commands:\n• /forecast  latest forecast\n• /model  current model\n• /retrain  refit now"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

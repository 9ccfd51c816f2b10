package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"MarketForecaster/internal/model"
)

// FileFetcher reads bars from a local CSV or Parquet file. The symbol in the request is
// ignored; one file holds one instrument. Weekly requests aggregate daily rows.
type FileFetcher struct {
	Path string
}

func NewFileFetcher(path string) *FileFetcher { return &FileFetcher{Path: path} }

func (f *FileFetcher) Name() string { return "file" }

// ParquetBar is the on-disk row layout for Parquet bar files. Timestamps are Unix
// milliseconds.
type ParquetBar struct {
	Timestamp int64   `parquet:"t"`
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
}

func (f *FileFetcher) FetchBars(_ context.Context, req Request) ([]model.PriceBar, error) {
	var (
		bars []model.PriceBar
		err  error
	)
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".csv":
		bars, err = readCSV(f.Path)
	case ".parquet":
		bars, err = readParquet(f.Path)
	default:
		return nil, fmt.Errorf("unsupported bar file %q (use .csv or .parquet)", f.Path)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if req.Interval == IntervalWeekly {
		bars = AggregateWeekly(bars)
	}
	return bars, nil
}

func readParquet(path string) ([]model.PriceBar, error) {
	rows, err := parquet.ReadFile[ParquetBar](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	bars := make([]model.PriceBar, len(rows))
	for i, r := range rows {
		bars[i] = model.PriceBar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return bars, nil
}

var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

// readCSV parses a headed CSV with date,open,high,low,close[,volume] columns in any
// order. Dates are YYYY-MM-DD or RFC 3339.
func readCSV(path string) ([]model.PriceBar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns[:5] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csv %s: missing column %q", path, col)
		}
	}

	var bars []model.PriceBar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv %s line %d: %w", path, line, err)
		}
		bar, err := parseCSVRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("csv %s line %d: %w", path, line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCSVRecord(rec []string, idx map[string]int) (model.PriceBar, error) {
	var bar model.PriceBar
	ts, err := parseDate(rec[idx["date"]])
	if err != nil {
		return bar, err
	}
	bar.Time = ts

	fields := map[string]*float64{"open": &bar.Open, "high": &bar.High, "low": &bar.Low, "close": &bar.Close, "volume": &bar.Volume}
	for _, col := range csvColumns[1:] {
		i, ok := idx[col]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return bar, fmt.Errorf("column %s: %w", col, err)
		}
		*fields[col] = v
	}
	return bar, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return t.UTC(), nil
}

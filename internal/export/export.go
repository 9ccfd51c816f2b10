// Package export writes built datasets to disk for offline inspection.
package export

import (
	"fmt"
	"strings"
	"time"

	"MarketForecaster/internal/dataset"
)

const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// DatasetSaver writes a dataset to path in one format.
type DatasetSaver interface {
	Save(ds *dataset.Dataset, path string) error
	Extension() string
}

// NewDatasetSaver returns a saver for csv, parquet or json, or nil for anything else.
func NewDatasetSaver(format string) DatasetSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}

// Formats lists the names accepted by NewDatasetSaver.
func Formats() []string { return []string{"csv", "parquet", "json"} }

type labeled struct {
	split string
	s     dataset.Sample
}

// rows flattens both partitions in chronological order.
func rows(ds *dataset.Dataset) []labeled {
	out := make([]labeled, 0, len(ds.Train)+len(ds.Test))
	for _, s := range ds.Train {
		out = append(out, labeled{SplitTrain, s})
	}
	for _, s := range ds.Test {
		out = append(out, labeled{SplitTest, s})
	}
	return out
}

func check(ds *dataset.Dataset) error {
	if ds == nil || len(ds.Schema) == 0 {
		return fmt.Errorf("export: empty dataset")
	}
	return nil
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

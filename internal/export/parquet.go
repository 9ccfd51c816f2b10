package export

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"MarketForecaster/internal/dataset"
)

// ParquetRow is the long layout: one row per sample and feature.
type ParquetRow struct {
	Timestamp int64   `parquet:"t"`
	Split     string  `parquet:"split"`
	Feature   string  `parquet:"feature"`
	Value     float64 `parquet:"value"`
	Target    float64 `parquet:"target"`
}

// ParquetSaver stores the dataset as Parquet in long layout so the file schema does
// not depend on the feature set.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(ds *dataset.Dataset, path string) error {
	if err := check(ds); err != nil {
		return err
	}
	all := rows(ds)
	out := make([]ParquetRow, 0, len(all)*len(ds.Schema))
	for _, r := range all {
		vec, err := dataset.Vector(ds.Schema, r.s.Row)
		if err != nil {
			return fmt.Errorf("export parquet: %w", err)
		}
		ts := r.s.Row.Time.UnixMilli()
		for j, name := range ds.Schema {
			out = append(out, ParquetRow{
				Timestamp: ts,
				Split:     r.split,
				Feature:   name,
				Value:     vec[j],
				Target:    r.s.Target,
			})
		}
	}
	return parquet.WriteFile(path, out)
}

package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"MarketForecaster/internal/dataset"
)

// CSVSaver writes one wide row per sample: time, split, every feature, target.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(ds *dataset.Dataset, path string) error {
	if err := check(ds); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"time", "split"}, ds.Schema...)
	header = append(header, "target")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows(ds) {
		vec, err := dataset.Vector(ds.Schema, r.s.Row)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		rec := make([]string, 0, len(header))
		rec = append(rec, stamp(r.s.Row.Time), r.split)
		for _, v := range vec {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rec = append(rec, strconv.FormatFloat(r.s.Target, 'g', -1, 64))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

package export

import (
	"encoding/json"
	"fmt"
	"os"

	"MarketForecaster/internal/dataset"
)

type jsonSample struct {
	Time     string             `json:"time"`
	Split    string             `json:"split"`
	Features map[string]float64 `json:"features"`
	Target   float64            `json:"target"`
}

type jsonDataset struct {
	Schema  []string     `json:"schema"`
	Samples []jsonSample `json:"samples"`
}

// JSONSaver writes the schema and all samples as one indented document.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(ds *dataset.Dataset, path string) error {
	if err := check(ds); err != nil {
		return err
	}
	doc := jsonDataset{Schema: ds.Schema}
	for _, r := range rows(ds) {
		vec, err := dataset.Vector(ds.Schema, r.s.Row)
		if err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		feats := make(map[string]float64, len(vec))
		for j, name := range ds.Schema {
			feats[name] = vec[j]
		}
		doc.Samples = append(doc.Samples, jsonSample{
			Time:     stamp(r.s.Row.Time),
			Split:    r.split,
			Features: feats,
			Target:   r.s.Target,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Package modelstore serializes trained models to a versioned JSON artifact and back.
//
// Encoding is deterministic: Save(Load(Save(m))) yields the same bytes as Save(m).
package modelstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"MarketForecaster/internal/calculator"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/regression"
	"MarketForecaster/internal/trainer"
)

// FormatVersion is the artifact layout written by Save.
const FormatVersion = 1

type artifact struct {
	FormatVersion int                        `json:"format_version"`
	ID            string                     `json:"id"`
	Family        string                     `json:"family"`
	Schema        []string                   `json:"schema"`
	Indicators    calculator.IndicatorConfig `json:"indicators"`
	Horizon       int                        `json:"horizon"`
	Params        json.RawMessage            `json:"params"`
	Meta          *artifactMeta              `json:"meta"`
}

type artifactMeta struct {
	FittedAt  time.Time `json:"fitted_at"`
	TrainMSE  float64   `json:"train_mse"`
	TestMSE   float64   `json:"test_mse"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
}

// Save encodes m.
func Save(m *trainer.TrainedModel) ([]byte, error) {
	if m == nil || m.Params == nil {
		return nil, fmt.Errorf("save model: no parameters")
	}
	if math.IsNaN(m.Meta.TestMSE) || math.IsNaN(m.Meta.TrainMSE) {
		return nil, fmt.Errorf("save model %s: undefined error metrics", m.ID)
	}
	params, err := json.Marshal(m.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	a := artifact{
		FormatVersion: FormatVersion,
		ID:            m.ID,
		Family:        m.Family,
		Schema:        m.Schema,
		Indicators:    m.Indicators,
		Horizon:       m.Horizon,
		Params:        params,
		Meta: &artifactMeta{
			FittedAt:  m.Meta.FittedAt.UTC(),
			TrainMSE:  m.Meta.TrainMSE,
			TestMSE:   m.Meta.TestMSE,
			TrainRows: m.Meta.TrainRows,
			TestRows:  m.Meta.TestRows,
		},
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return data, nil
}

// Load restores a model saved by Save. Any artifact that cannot be turned back into a
// usable model yields a *model.CorruptModelError.
func Load(blob []byte) (*trainer.TrainedModel, error) {
	var a artifact
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, &model.CorruptModelError{Reason: "unparseable artifact", Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &model.CorruptModelError{Reason: "trailing data after artifact", Err: err}
	}
	if a.FormatVersion != FormatVersion {
		return nil, &model.CorruptModelError{Reason: fmt.Sprintf("unsupported format version %d", a.FormatVersion)}
	}
	if a.ID == "" {
		return nil, &model.CorruptModelError{Reason: "missing model id"}
	}
	if a.Meta == nil {
		return nil, &model.CorruptModelError{Reason: "missing training metadata"}
	}
	if a.Meta.FittedAt.IsZero() {
		return nil, &model.CorruptModelError{Reason: "missing fit time"}
	}
	if !finite(a.Meta.TestMSE) || !finite(a.Meta.TrainMSE) || a.Meta.TestMSE < 0 || a.Meta.TrainMSE < 0 {
		return nil, &model.CorruptModelError{Reason: "invalid error metrics"}
	}
	if a.Family != regression.FamilyLinear && a.Family != regression.FamilyTree {
		return nil, &model.CorruptModelError{Reason: fmt.Sprintf("unknown family %q", a.Family)}
	}
	if len(a.Schema) == 0 {
		return nil, &model.CorruptModelError{Reason: "empty feature schema"}
	}
	seen := make(map[string]bool, len(a.Schema))
	for _, name := range a.Schema {
		if name == "" || seen[name] {
			return nil, &model.CorruptModelError{Reason: fmt.Sprintf("invalid feature name %q in schema", name)}
		}
		seen[name] = true
	}
	if a.Horizon <= 0 {
		return nil, &model.CorruptModelError{Reason: fmt.Sprintf("invalid horizon %d", a.Horizon)}
	}
	if err := calculator.ValidateConfig(a.Indicators); err != nil {
		return nil, &model.CorruptModelError{Reason: "invalid indicator config", Err: err}
	}
	if len(a.Params) == 0 || string(a.Params) == "null" {
		return nil, &model.CorruptModelError{Reason: "missing params"}
	}

	params, err := regression.DecodeParams(a.Family, a.Params)
	if err != nil {
		return nil, &model.CorruptModelError{Reason: "invalid params", Err: err}
	}
	if params.Features() != len(a.Schema) {
		return nil, &model.CorruptModelError{
			Reason: fmt.Sprintf("params expect %d features, schema has %d", params.Features(), len(a.Schema)),
		}
	}

	m := &trainer.TrainedModel{
		ID:         a.ID,
		Family:     a.Family,
		Schema:     model.FeatureSchema(a.Schema),
		Params:     params,
		Indicators: a.Indicators,
		Horizon:    a.Horizon,
		Meta: trainer.Meta{
			FittedAt:  a.Meta.FittedAt,
			TrainMSE:  a.Meta.TrainMSE,
			TestMSE:   a.Meta.TestMSE,
			TrainRows: a.Meta.TrainRows,
			TestRows:  a.Meta.TestRows,
		},
	}
	if a.Family == regression.FamilyLinear && !m.RequiresBias() {
		return nil, &model.CorruptModelError{Reason: "linear model without the bias feature"}
	}
	return m, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

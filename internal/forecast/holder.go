package forecast

import (
	"sync/atomic"

	"MarketForecaster/internal/model"
	"MarketForecaster/internal/trainer"
)

// Holder publishes the current model to concurrent readers. A retrain swaps in a new
// model; readers that already loaded the old one keep using it unchanged.
type Holder struct {
	current atomic.Pointer[trainer.TrainedModel]
}

// Load returns the current model or nil.
func (h *Holder) Load() *trainer.TrainedModel { return h.current.Load() }

// Swap installs m and returns the model it replaced.
func (h *Holder) Swap(m *trainer.TrainedModel) *trainer.TrainedModel { return h.current.Swap(m) }

// Iterate runs a multi-step forecast with the current model and returns the model it
// used, which stays valid even if a retrain swaps in another one meanwhile.
func (h *Holder) Iterate(series *model.PriceSeries, k int) (*trainer.TrainedModel, []model.Forecast, error) {
	m := h.Load()
	if m == nil {
		return nil, nil, ErrNoModel
	}
	steps, err := Iterate(m, series, k)
	if err != nil {
		return nil, nil, err
	}
	return m, steps, nil
}

package recorder

import "time"

// TrainingRun records one completed fit.
type TrainingRun struct {
	ModelID   string
	Symbol    string
	Family    string
	Features  int
	TrainRows int
	TestRows  int
	TrainMSE  float64
	TestMSE   float64
	FittedAt  time.Time
}

// ForecastEvent records one published forecast.
type ForecastEvent struct {
	ModelID   string
	Symbol    string
	Anchor    time.Time
	Horizon   int
	PctChange float64
	Price     float64
}

// Recorder persists pipeline history for later analysis.
type Recorder interface {
	RecordTrainingRun(run *TrainingRun) error
	RecordForecast(evt *ForecastEvent) error
	Close() error
}

// cmd/forecast fits a model on one price history and prints its forecast, without
// scheduling or notifications.
//
// Usage:
//
//	go run ./cmd/forecast --input=data/spx.csv --steps=3 --describe
//	go run ./cmd/forecast --model=data/models/latest.json --input=data/spx.parquet
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"MarketForecaster/internal/collector"
	"MarketForecaster/internal/config"
	"MarketForecaster/internal/dataset"
	"MarketForecaster/internal/export"
	"MarketForecaster/internal/forecast"
	"MarketForecaster/internal/logging"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/modelstore"
	"MarketForecaster/internal/notifier"
	"MarketForecaster/internal/pipeline"
	"MarketForecaster/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", config.Path(), "Path to config YAML")
	input := flag.String("input", "", "CSV or Parquet bar file (overrides data_source)")
	family := flag.String("family", "", "Model family: linear or tree (overrides model.family)")
	steps := flag.Int("steps", 0, "Forecast steps of one horizon each (overrides forecast.steps)")
	modelPath := flag.String("model", "", "Forecast with this saved artifact instead of fitting")
	savePath := flag.String("save", "", "Write the fitted model artifact here")
	exportPath := flag.String("export", "", "Write the built dataset here (.csv, .parquet or .json)")
	describe := flag.Bool("describe", false, "Print training feature statistics")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.Setup("info")
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Log.Level)

	if *input != "" {
		cfg.DataSource.Source = "file"
		cfg.DataSource.FilePath = *input
	}
	if *family != "" {
		cfg.Model.Family = *family
	}
	if *steps > 0 {
		cfg.Forecast.Steps = *steps
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fetcher, err := collector.NewFetcher(cfg.DataSource.Source, cfg.DataSource.BaseURL,
		cfg.DataSource.APIKey, cfg.DataSource.FilePath, cfg.Proxy)
	if err != nil {
		log.Fatal().Err(err).Msg("init fetcher")
	}
	req := collector.NewRequest(cfg.DataSource.Symbol, cfg.DataSource.Interval, cfg.DataSource.HistoryDays)
	if cfg.DataSource.Source == "file" {
		// Files are replayed in full regardless of their dates.
		req.From = time.Time{}
	}
	series, err := collector.NewCollector(fetcher).Collect(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("collect")
	}

	pipe, err := pipeline.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline")
	}

	var m *trainer.TrainedModel
	if *modelPath != "" {
		blob, err := os.ReadFile(*modelPath)
		if err != nil {
			log.Fatal().Err(err).Msg("read model")
		}
		if m, err = modelstore.Load(blob); err != nil {
			log.Fatal().Err(err).Msg("load model")
		}
	}

	if m == nil || *exportPath != "" || *describe {
		ds, err := pipe.BuildDataset(series)
		if err != nil {
			log.Fatal().Err(err).Msg("build dataset")
		}
		if *exportPath != "" {
			if err := exportDataset(ds, *exportPath); err != nil {
				log.Fatal().Err(err).Msg("export dataset")
			}
			log.Info().Str("path", *exportPath).Int("rows", len(ds.Train)+len(ds.Test)).Msg("dataset exported")
		}
		if *describe {
			stats, err := export.Describe(ds)
			if err != nil {
				log.Fatal().Err(err).Msg("describe dataset")
			}
			export.WriteStats(os.Stdout, stats)
			fmt.Println()
		}
		if m == nil {
			if m, err = trainer.Train(ds, pipe.Regressor, trainer.Options{
				MinTrainRows: pipe.MinTrainRows,
				Indicators:   pipe.Indicators,
				Horizon:      pipe.Dataset.Horizon,
			}); err != nil {
				log.Fatal().Err(err).Msg("train")
			}
		}
	}

	if *savePath != "" {
		blob, err := modelstore.Save(m)
		if err != nil {
			log.Fatal().Err(err).Msg("encode model")
		}
		if err := os.WriteFile(*savePath, blob, 0o644); err != nil {
			log.Fatal().Err(err).Msg("write model")
		}
		log.Info().Str("path", *savePath).Str("model_id", m.ID).Msg("model saved")
	}

	out, err := forecast.Iterate(m, series, cfg.Forecast.Steps)
	if err != nil {
		log.Fatal().Err(err).Msg("forecast")
	}
	printForecast(series.Symbol, series.Last().Close, m, out)
}

func exportDataset(ds *dataset.Dataset, path string) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	saver := export.NewDatasetSaver(format)
	if saver == nil {
		return fmt.Errorf("unsupported export format %q (use %s)", format, strings.Join(export.Formats(), ", "))
	}
	return saver.Save(ds, path)
}

func printForecast(symbol string, lastClose float64, m *trainer.TrainedModel, out []model.Forecast) {
	fmt.Printf("%s  model %s (%s)  test MSE %.3g\n", symbol, m.ID, m.Family, m.Meta.TestMSE)
	fmt.Printf("anchor %s  last close %s\n\n", out[0].Anchor.Format("2006-01-02"), notifier.FormatPrice(lastClose))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "horizon\tprice\tchange\t")
	for _, f := range out {
		fmt.Fprintf(tw, "+%d\t%s\t%s\t\n", f.Horizon, notifier.FormatPrice(f.PredictedPrice), notifier.FormatPct(f.PredictedPctChange))
	}
	tw.Flush()
}

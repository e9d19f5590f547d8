// Command loader compacts bronze NDJSON rate snapshots into the silver table
// and records the resulting snapshot pointer. One invocation is one unit of
// work for the external scheduler:
//
//	loader --mode daily    --start-date 2024-01-02
//	loader --mode backfill --start-date 2024-01-01 --end-date 2024-01-31
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ratesetl/internal/config"
	"ratesetl/internal/metastore"
	"ratesetl/internal/metrics"
	"ratesetl/internal/metrics/prompush"
	"ratesetl/internal/objstore"
	"ratesetl/internal/pipeline"
	"ratesetl/internal/resolve"
)

// Exit codes: 1 for any fatal stage failure, 2 when no candidate source path
// contains data.
const (
	exitFailure = 1
	exitNoData  = 2
)

func main() {
	var (
		modeFlg        string
		startFlg       string
		endFlg         string
		validate       bool
		metricsBackend string
		pushGatewayURL string
	)

	flag.StringVar(&modeFlg, "mode", "daily", "run mode: daily or backfill")
	flag.StringVar(&startFlg, "start-date", "", "target date YYYY-MM-DD (required)")
	flag.StringVar(&endFlg, "end-date", "", "end date YYYY-MM-DD (backfill only; defaults to start-date)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend (pushgateway, none; default env METRICS_BACKEND or pushgateway)")
	flag.StringVar(&pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Local development convenience; production supplies real env.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		logger.Error("configuration is invalid")
		os.Exit(exitFailure)
	}
	if validate {
		logger.Info("configuration is valid")
		os.Exit(0)
	}

	mode, err := config.ParseMode(modeFlg)
	if err != nil {
		logger.WithError(err).Error("bad --mode")
		os.Exit(exitFailure)
	}
	start, end, err := parseDates(startFlg, endFlg)
	if err != nil {
		logger.WithError(err).Error("bad date arguments")
		os.Exit(exitFailure)
	}

	setupMetrics(metricsBackend, pushGatewayURL, logger)
	defer func() {
		if err := metrics.Flush(); err != nil {
			logger.WithError(err).Warn("metrics flush failed")
		}
	}()

	deps, cleanup, err := connect(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect external services")
		os.Exit(exitFailure)
	}
	defer cleanup()

	p, err := pipeline.New(cfg, deps, logger)
	if err != nil {
		logger.WithError(err).Error("failed to build pipeline")
		os.Exit(exitFailure)
	}

	if err := p.Run(context.Background(), mode, start, end); err != nil {
		logger.WithError(err).Error("job failed")
		_ = metrics.Flush()
		cleanup()
		if errors.Is(err, resolve.ErrNoData) {
			os.Exit(exitNoData)
		}
		os.Exit(exitFailure)
	}
}

func parseDates(startFlg, endFlg string) (time.Time, time.Time, error) {
	if startFlg == "" {
		return time.Time{}, time.Time{}, errors.New("--start-date is required")
	}
	start, err := time.Parse("2006-01-02", startFlg)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "parse --start-date %q", startFlg)
	}
	end := start
	if endFlg != "" {
		end, err = time.Parse("2006-01-02", endFlg)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, "parse --end-date %q", endFlg)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.Errorf("--end-date %s is before --start-date %s", endFlg, startFlg)
	}
	return start, end, nil
}

// setupMetrics decides the metrics backend: flag → env → default.
func setupMetrics(backendName, gatewayURL string, logger logrus.FieldLogger) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = "pushgateway"
	}
	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("rates_loader", gatewayURL)
		if err != nil {
			logger.WithError(err).Warn("metrics: failed to init pushgateway backend; using nop")
			return
		}
		metrics.SetBackend(b)
	case "none":
		// metrics disabled; nop backend remains
	default:
		logger.WithField("backend", backendName).Warn("metrics: unknown backend; metrics disabled")
	}
}

// connect opens the object store buckets and the pointer store.
func connect(cfg config.Config, logger logrus.FieldLogger) (pipeline.Deps, func(), error) {
	source, err := objstore.NewS3Bucket(objstore.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.SourceBucket,
	})
	if err != nil {
		return pipeline.Deps{}, nil, errors.Wrap(err, "source bucket")
	}

	warehouse := source
	if cfg.WarehouseBucket != cfg.SourceBucket {
		warehouse, err = objstore.NewS3Bucket(objstore.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.WarehouseBucket,
		})
		if err != nil {
			return pipeline.Deps{}, nil, errors.Wrap(err, "warehouse bucket")
		}
	}

	pointers, err := metastore.New(context.Background(), cfg.Metastore)
	if err != nil {
		return pipeline.Deps{}, nil, errors.Wrap(err, "pointer store")
	}

	cleanup := func() {
		if err := pointers.Close(); err != nil {
			logger.WithError(err).Warn("closing pointer store")
		}
	}
	return pipeline.Deps{Source: source, Warehouse: warehouse, Pointers: pointers}, cleanup, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/river-gauge-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/river-gauge-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-gauge-etl/internal/adapter/usgs"
	"github.com/couchcryptid/river-gauge-etl/internal/cache"
	"github.com/couchcryptid/river-gauge-etl/internal/catalog"
	"github.com/couchcryptid/river-gauge-etl/internal/config"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
	"github.com/couchcryptid/river-gauge-etl/internal/pipeline"
)

func main() {
	var (
		site      = flag.String("site", "", "run once for this USGS site code, print the result, and exit")
		parameter = flag.String("parameter", "00060", "USGS parameter code or name (one-shot mode)")
		kind      = flag.String("kind", "iv", "series kind: iv or dv (one-shot mode)")
		days      = flag.Int("days", 7, "trailing window in days for iv (one-shot mode)")
		years     = flag.Int("years", 1, "trailing window in years for dv (one-shot mode)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := cache.Open(cfg.CacheDir, logger, metrics)
	if err != nil {
		logger.Error("failed to open cache", "dir", cfg.CacheDir, "error", err)
		os.Exit(1)
	}

	client := usgs.NewClient(cfg.USGSTimeout, logger, metrics)
	sites := catalog.Load(cfg.SitesConfig, logger)

	p := pipeline.New(store, client, cfg.Location, cfg.Features, cfg.GapTolerance, logger, metrics)

	// Anomaly publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		p.SetAnomalySink(writer)
		logger.Info("kafka anomaly sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAnomalyTopic)
	} else {
		logger.Info("kafka anomaly sink disabled")
	}

	if *site != "" {
		code := runOnce(p, logger, *site, *parameter, *kind, *days, *years)
		if writer != nil {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		os.Exit(code)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, sites, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// runOnce executes a single pipeline pass and prints the result as JSON.
func runOnce(p *pipeline.Pipeline, logger *slog.Logger, site, parameter, kind string, days, years int) int {
	param, err := domain.ParseParameter(parameter)
	if err != nil {
		logger.Error("invalid parameter", "error", err)
		return 1
	}
	k, err := domain.ParseKind(kind)
	if err != nil {
		logger.Error("invalid kind", "error", err)
		return 1
	}

	window := domain.LastDays(days)
	if k == domain.KindDaily {
		window = domain.LastYears(years)
	}

	req := domain.Request{Site: site, Parameter: param, Kind: k, Window: window}
	res, err := p.Run(context.Background(), req)
	if err != nil {
		logger.Error("run failed", "key", req.CacheKey(), "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"request":   res.Request,
		"summary":   res.Summary,
		"gaps":      res.Gaps,
		"daily":     res.Daily,
		"anomalies": len(res.Anomalies),
		"points":    len(res.Series.Points),
	}); err != nil {
		logger.Error("encode result", "error", err)
		return 1
	}
	return 0
}

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lexgo/statute-consult/internal/bootstrap"
	"github.com/lexgo/statute-consult/internal/config"
	"github.com/lexgo/statute-consult/internal/observability/logging"
	"github.com/lexgo/statute-consult/internal/observability/metrics"
)

const buildTimeout = 30 * time.Minute

func main() {
	rebuild := flag.Bool("rebuild", false, "rebuild the index even when artifacts already exist")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.Setup("statute-consult-indexer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewIndexer(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	indexerMetrics := metrics.NewIndexerMetrics("statute-consult-indexer")
	go serveMetrics(cfg.IndexerMetricsPort, indexerMetrics)

	runBuild := func(runCtx context.Context, reason string) error {
		buildCtx, cancel := context.WithTimeout(runCtx, buildTimeout)
		defer cancel()

		started := time.Now()
		report, err := app.BuildUC.Build(buildCtx)
		indexerMetrics.FinishBuild("statute-consult-indexer", report, time.Since(started), err)
		if err != nil {
			logger.Error("index build failed", "reason", reason, "error", err)
			return err
		}
		logger.Info("index build finished",
			"reason", reason,
			"documents", report.Documents,
			"dropped_documents", report.DroppedDocuments,
			"chunks", report.Chunks,
			"dimension", report.Dimension,
		)
		return nil
	}

	if *rebuild || !artifactsExist(cfg) {
		if err := runBuild(ctx, "startup"); err != nil {
			os.Exit(1)
		}
	} else {
		logger.Info("index artifacts present, skipping startup build")
	}

	if app.Queue == nil {
		logger.Info("no reindex queue configured, exiting after build")
		return
	}

	logger.Info("indexer subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReindexRequested(ctx, func(handlerCtx context.Context, reason string) error {
		return runBuild(handlerCtx, reason)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("indexer subscribe error: %v", err)
	}
}

func artifactsExist(cfg config.Config) bool {
	for _, path := range []string{cfg.IndexPath, cfg.MetadataPath} {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return false
		}
	}
	return true
}

func serveMetrics(port string, m *metrics.IndexerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("metrics server error: %v", err)
	}
}

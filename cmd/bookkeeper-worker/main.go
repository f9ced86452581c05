package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/cache"
	"bookkeeper/internal/cli"
	"bookkeeper/internal/log"
	"bookkeeper/internal/metrics"
	"bookkeeper/internal/worker"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)
	logger.Info("Starting bookkeeper-worker")

	if !cfg.EventsEnabled() {
		return errors.New("AMQP_URL is required to run the worker")
	}

	ctx, cancel := cli.GracefulShutdown(context.Background(), logger)
	defer cancel()

	journal, err := cli.InitJournal(logger, cfg.JournalDBPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	client, err := amqp.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPDialAttempts, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dedupe := cache.NewDedupe(cfg.DedupeCacheSize, cfg.DedupeTTL)
	manager := cache.NewManager(logger)
	manager.Register(dedupe)

	w := worker.NewJournalWorker(journal, dedupe, metrics.NewPrometheus(registry), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeLedgerEvents(gctx, w.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return manager.Run(gctx, cacheSweepInterval)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
			return metrics.Serve(gctx, cfg.MetricsAddr, registry, logger)
		})
	}

	err = g.Wait()
	logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown)
	return err
}

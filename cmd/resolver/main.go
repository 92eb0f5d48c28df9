// Command resolver runs the matching cascade over a supplier record
// stream: it wires the normalizer, registry querier, scorer, and
// coordinator together and reports progress until the stream or a
// cancellation signal ends the run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/app/config"
	"github.com/supplier-resolver/resolver/internal/checkpoint"
	"github.com/supplier-resolver/resolver/internal/coordinator"
	"github.com/supplier-resolver/resolver/internal/domain"
	"github.com/supplier-resolver/resolver/internal/export"
	"github.com/supplier-resolver/resolver/internal/ingest"
	"github.com/supplier-resolver/resolver/internal/llm"
	"github.com/supplier-resolver/resolver/internal/normalizer"
	"github.com/supplier-resolver/resolver/internal/registry"
	"github.com/supplier-resolver/resolver/internal/registry/duckdb"
	"github.com/supplier-resolver/resolver/internal/registry/meili"
	"github.com/supplier-resolver/resolver/internal/resolver"
)

var (
	configPath string
	inputPath  string
	outputPath string
)

func main() {
	root := &cobra.Command{
		Use:   "resolver",
		Short: "Resolve supplier records against the business registry",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "config/resolver.yaml", "path to the run configuration")
	root.Flags().StringVar(&inputPath, "input", "", "path to the input spreadsheet or CSV (required)")
	root.Flags().StringVar(&outputPath, "output", "export.csv", "path to write the exported results")
	root.MarkFlagRequired("input")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.Load(configPath); err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	store, err := checkpoint.Open(config.C.CheckpointPath, logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	ftsClient, err := meili.New(meili.Config{Host: config.C.Search.Host, APIKey: config.C.Search.APIKey}, logger)
	if err != nil {
		return fmt.Errorf("connect to fts backend: %w", err)
	}

	adapter := buildAdapter(logger)

	workers, err := buildWorkers(config.C.Workers, ftsClient, adapter, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, w := range workers {
			w.querier.Close()
		}
	}()

	// Fail fast on a missing/unreadable registry file rather than surfacing
	// it as a wall of per-record ERROR rows (§7 "Builder-provided files
	// missing / empty -> Fatal; non-zero exit").
	if err := workers[0].querier.Ping(context.Background()); err != nil {
		return fmt.Errorf("registry file unreadable: %w", err)
	}

	resolverWorkers := make([]coordinator.Worker, len(workers))
	for i, w := range workers {
		resolverWorkers[i] = w.resolver
	}

	coord := coordinator.New(coordinator.Config{
		Workers:     config.C.Workers,
		BatchSize:   config.C.BatchSize,
		Limit:       config.C.Limit,
		RetryErrors: config.C.RetryErrors,
	}, store, resolverWorkers, logger, func(p coordinator.Progress) {
		logger.Info("progress", zap.Int("processed", p.Processed), zap.Float64("rate_per_sec", p.Rate), zap.Duration("eta", p.ETA))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("cancellation requested, draining in-flight work")
		cancel()
	}()

	raw := make(chan domain.RawRecord, config.C.Workers*4)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readInput(inputPath, raw)
		close(raw)
	}()

	if err := coord.Run(ctx, raw); err != nil {
		return fmt.Errorf("coordinator run: %w", err)
	}
	// After cancellation nothing drains raw any more, so the reader may be
	// blocked on a send; only wait for it when the stream ran to its end.
	if ctx.Err() == nil {
		if err := <-readErr; err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create export file %q: %w", outputPath, err)
	}
	defer out.Close()
	if err := export.WriteCSV(store, out); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	logger.Info("run complete", zap.String("export", outputPath))
	return nil
}

func readInput(path string, out chan<- domain.RawRecord) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ingest.ReadXLSX(path, func(r domain.RawRecord) error {
			out <- r
			return nil
		})
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input %q: %w", path, err)
	}
	defer f.Close()
	return ingest.ReadCSV(f, func(r domain.RawRecord) error {
		out <- r
		return nil
	})
}

func buildAdapter(logger *zap.Logger) llm.Adapter {
	if !config.C.ModelBackedNormalization {
		return nil
	}
	base, ok := llm.NewHTTPAdapterFromEnv(config.C.LLM.Endpoint, config.C.LLM.Model)
	if !ok {
		logger.Info("no LLM credential configured, using heuristic normalization")
		return nil
	}
	return llm.NewRateLimited(base, config.C.LLMMinIntervalMs)
}

type workerHandle struct {
	querier  registry.ColumnStore
	resolver *resolver.Resolver
}

func buildWorkers(n int, fts registry.FullTextSearch, adapter llm.Adapter, logger *zap.Logger) ([]workerHandle, error) {
	handles := make([]workerHandle, 0, n)
	for i := 0; i < n; i++ {
		backend, err := duckdb.Open(duckdb.Config{
			EstablishmentsFile: config.C.Registry.EstablishmentsFile,
			PartitionsDir:      config.C.Registry.PartitionsDir,
			MaxRetries:         config.C.Registry.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("open worker %d registry handle: %w", i, err)
		}
		querier := registry.Compose(backend, fts)
		norm := normalizer.New(logger, normalizer.WithAdapter(adapter), normalizer.WithCacheSize(config.C.NormalizerCacheSize))
		handles = append(handles, workerHandle{
			querier:  backend,
			resolver: resolver.New(norm, querier, adapter),
		})
	}
	return handles, nil
}

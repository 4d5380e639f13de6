package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/vaas-cert-export/internal/config"
	"github.com/Sternrassler/vaas-cert-export/pkg/client"
	"github.com/Sternrassler/vaas-cert-export/pkg/export"
	"github.com/Sternrassler/vaas-cert-export/pkg/logging"
	"github.com/Sternrassler/vaas-cert-export/pkg/metrics"
	"github.com/Sternrassler/vaas-cert-export/pkg/pagination"
)

// run performs one export: fetch every page, then write the CSV.
//
// A failed page still produces a file with the records gathered so far and
// returns nil. A transport fault returns an error and writes no file.
func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logCfg := cfg.LoggerConfig(uuid.NewString())
	logCfg.Output = stderr
	logging.Setup(logCfg)
	logger := logging.NewLogger("cli")

	if cfg.Output.MetricsFile != "" {
		defer writeMetrics(cfg.Output.MetricsFile, logger)
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	clientCfg.UserAgent = "vaas-cert-export/" + version

	searchClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create search client: %w", err)
	}

	criteria, err := cfg.Criteria()
	if err != nil {
		return err
	}

	fetcher, err := pagination.NewFetcher(searchClient, criteria)
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Info().
		Str("endpoint", searchClient.Endpoint()).
		Str("version", version).
		Msg("Export started")

	result, err := fetcher.FetchAll(ctx)
	if err != nil {
		logger.Error().
			Err(err).
			Int("pages", result.Pages).
			Int("records", len(result.Records)).
			Msg("Export aborted, no file written")
		return fmt.Errorf("export aborted: %w", err)
	}

	path, err := export.NewExporter(cfg.Output.Dir).Export(result.Records)
	if err != nil {
		logger.Error().Err(err).Msg("CSV export failed")
		return fmt.Errorf("write csv: %w", err)
	}

	printSummary(stdout, cfg.Search.StatusFilter, result)

	logger.Info().
		Str("path", path).
		Int("records", len(result.Records)).
		Int("pages", result.Pages).
		Bool("truncated", result.Truncated()).
		Dur("duration", time.Since(start)).
		Msg("Export finished")

	return nil
}

func printSummary(w io.Writer, status string, result *pagination.Result) {
	if result.Truncated() {
		color.New(color.FgRed).Fprintf(w, "///// Search failed: %v /////\n", result.Failure)
	}
	color.New(color.FgGreen).Fprintf(w, "Found %d %s certificates.\n", len(result.Records), strings.ToLower(status))
	color.New(color.FgCyan).Fprintf(w, "Total paging operations: %d\n", result.Pages)
}

func writeMetrics(path string, logger zerolog.Logger) {
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics file")
		return
	}
	logger.Debug().Str("path", path).Msg("Metrics file written")
}

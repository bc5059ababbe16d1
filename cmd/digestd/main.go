// Command digestd performs one incremental ingestion run: scrape the
// configured feeds, enrich new items via Gemini, and update the snapshot
// file. Scheduling (cron, CI) is external; the scheduler must not start a
// run while one is in flight, since the snapshot assumes a single writer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/newsdigest/digest-pipeline/internal/config"
	"github.com/newsdigest/digest-pipeline/internal/enrich/gemini"
	"github.com/newsdigest/digest-pipeline/internal/logging"
	"github.com/newsdigest/digest-pipeline/internal/pipeline"
	"github.com/newsdigest/digest-pipeline/internal/snapshot"
	"github.com/newsdigest/digest-pipeline/internal/source"
	"github.com/newsdigest/digest-pipeline/internal/source/rss"
	"github.com/newsdigest/digest-pipeline/internal/util"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("digestd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var configPath string
	var snapshotPath string
	var maxPerRun int
	var retentionDays int
	fs.StringVar(&configPath, "config", "", "YAML config file path (env: DIGEST_CONFIG)")
	fs.StringVar(&snapshotPath, "snapshot", "", "Snapshot file path override (env: SNAPSHOT_PATH)")
	fs.IntVar(&maxPerRun, "max-per-run", -1, "Per-run enrichment call cap override, 0 disables (env: MAX_PER_RUN)")
	fs.IntVar(&retentionDays, "retention-days", -1, "Archive retention window in days override, 0 disables (env: RETENTION_DAYS)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	if snapshotPath != "" {
		cfg.Snapshot.Path = snapshotPath
	}
	if maxPerRun >= 0 {
		cfg.Enrich.MaxPerRun = maxPerRun
	}
	if retentionDays >= 0 {
		cfg.Archive.RetentionDays = retentionDays
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	enricher, err := gemini.New(ctx, gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		BaseURL:        cfg.Gemini.BaseURL,
		TargetLanguage: cfg.Enrich.TargetLanguage,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "gemini config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	readers := make([]source.Reader, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		readers = append(readers, rss.New(rss.Feed{
			Name:     feed.Name,
			URL:      feed.URL,
			Category: feed.Category,
		}, logger.WithField("component", "source.rss")))
	}

	runner := &pipeline.Runner{
		Sources:  readers,
		Enricher: enricher,
		Store:    snapshot.NewStore(cfg.Snapshot.Path),
		Log:      logger.WithField("component", "pipeline"),
		Options: pipeline.Options{
			RetentionDays:  cfg.Archive.RetentionDays,
			MaxCallsPerRun: cfg.Enrich.MaxPerRun,
			Orchestrator: pipeline.OrchestratorOptions{
				BatchSize:      cfg.Enrich.BatchSize,
				MaxRetries:     cfg.Enrich.MaxRetries,
				RequestTimeout: cfg.Enrich.RequestTimeout(),
				CallsPerSecond: cfg.Enrich.CallsPerSecond,
			},
		},
	}

	if _, err := runner.Run(ctx); err != nil {
		logger.WithField("component", "main").Error(util.RedactSecrets(err.Error()))
		return 1
	}
	return 0
}

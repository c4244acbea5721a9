// Command chatgrep-migrate backfills the archive from the legacy record
// store. The run is idempotent and safe to re-invoke after an interruption.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"chatgrep/internal/archive"
	"chatgrep/internal/config"
	"chatgrep/internal/legacy"
	"chatgrep/internal/logging"
	"chatgrep/internal/migrate"
	"chatgrep/internal/store/es"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to the configuration file")
	dryRun := flag.Bool("dry-run", false, "Run every step except the writes")
	batchSize := flag.Int("batch", 0, "Records per bulk write (overrides config)")
	kind := flag.String("kind", "", "Restrict migration to one message kind (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Logging error: %v", err)
	}
	defer logging.Shutdown()

	if *dryRun {
		cfg.Migration.DryRun = true
	}
	if *batchSize > 0 {
		cfg.Migration.BatchSize = *batchSize
	}
	if *kind != "" {
		k := archive.ParseKind(*kind)
		if string(k) != *kind {
			log.Fatalf("Unknown message kind %q", *kind)
		}
		cfg.Migration.Kind = k
	}

	ctx := context.Background()

	store, err := es.New(cfg.Store)
	if err != nil {
		slog.Error("Failed to create store client", "error", err)
		os.Exit(1)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	source, err := legacy.Connect(connectCtx, cfg.Legacy)
	cancel()
	if err != nil {
		slog.Error("Failed to connect to legacy store", "error", err)
		os.Exit(1)
	}
	defer source.Close(ctx)

	runner := migrate.NewRunner(store, source, cfg.Migration)
	report, err := runner.Run(ctx)
	if err != nil {
		slog.Error("Migration aborted", "error", err)
		os.Exit(1)
	}

	printReport(report)
}

func printReport(report *migrate.Report) {
	fmt.Printf("\nMigration report (run %s)\n", report.RunID)
	if report.DryRun {
		fmt.Println("Mode: DRY RUN, no documents were written")
	}
	for _, group := range report.Groups {
		fmt.Printf("  chat %d: watermark=%d matched=%d accepted=%d errors=%d\n",
			group.ChatID, group.Watermark, group.Matched, group.Accepted, group.Errors)
	}
	fmt.Printf("Total: %d chats, %d accepted, %d errors\n",
		len(report.Groups), report.Accepted, report.Errors)
}

// Package migrate backfills the archive from the legacy record store. A run
// is idempotent end to end: every write is keyed by the deterministic
// document id and only message ids strictly below each chat's watermark are
// touched, so an interrupted run is simply re-invoked.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"chatgrep/internal/archive"
	"chatgrep/internal/legacy"
	"chatgrep/internal/store"
)

// Config holds migration tuning knobs.
type Config struct {
	// BatchSize is the number of records per bulk write.
	BatchSize int `yaml:"batch_size"`
	// DryRun performs every step except the writes and counts batches as if
	// they succeeded.
	DryRun bool `yaml:"dry_run"`
	// Kind restricts the backfill to one message kind; empty migrates all.
	Kind archive.Kind `yaml:"kind"`
}

// DefaultConfig returns the migration defaults.
func DefaultConfig() Config {
	return Config{BatchSize: 500}
}

// Store is the slice of the document store the runner needs.
type Store interface {
	store.WatermarkReader
	store.BulkWriter
}

// Source is the slice of the legacy store the runner needs.
type Source interface {
	Count(ctx context.Context, f legacy.Filter) (int64, error)
	Stream(ctx context.Context, f legacy.Filter) (legacy.Cursor, error)
}

// GroupReport accumulates one chat's backfill counts.
type GroupReport struct {
	ChatID    int64
	Watermark int64
	Matched   int64
	Accepted  int
	Errors    int
}

// Report accumulates a whole run.
type Report struct {
	RunID    string
	DryRun   bool
	Groups   []GroupReport
	Accepted int
	Errors   int
}

// Runner drives the backfill. Chats are processed sequentially; each chat's
// state is independent, so one chat's failure never aborts the others.
type Runner struct {
	store  Store
	source Source
	cfg    Config
}

// NewRunner builds a runner.
func NewRunner(st Store, src Source, cfg Config) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Runner{store: st, source: src, cfg: cfg}
}

// Run resolves the per-chat watermarks and backfills each chat. It returns
// an error only when the watermark resolution itself fails; everything past
// that point is absorbed into the report's counters.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:  uuid.NewString(),
		DryRun: r.cfg.DryRun,
	}

	logger := slog.With("run_id", report.RunID)
	if r.cfg.DryRun {
		logger.Info("Running in dry-run mode, no documents will be written")
	}

	watermarks, err := r.store.GroupWatermarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watermarks: %w", err)
	}
	if len(watermarks) == 0 {
		logger.Info("No chats with archived messages, nothing to migrate")
		return report, nil
	}
	logger.Info("Resolved watermarks", "chats", len(watermarks))

	for i, wm := range watermarks {
		logger.Info("Processing chat",
			"progress", fmt.Sprintf("%d/%d", i+1, len(watermarks)),
			"chat_id", wm.ChatID,
			"watermark", wm.MinMessageID,
		)
		group := r.migrateGroup(ctx, logger, wm)
		report.Groups = append(report.Groups, group)
		report.Accepted += group.Accepted
		report.Errors += group.Errors
	}

	logger.Info("Migration complete",
		"chats", len(report.Groups),
		"accepted", report.Accepted,
		"errors", report.Errors,
	)
	return report, nil
}

func (r *Runner) migrateGroup(ctx context.Context, logger *slog.Logger, wm store.GroupWatermark) GroupReport {
	group := GroupReport{ChatID: wm.ChatID, Watermark: wm.MinMessageID}
	logger = logger.With("chat_id", wm.ChatID)

	filter := legacy.Filter{
		ChatID:          wm.ChatID,
		BeforeMessageID: wm.MinMessageID,
		Kind:            r.cfg.Kind,
	}

	matched, err := r.source.Count(ctx, filter)
	if err != nil {
		logger.Error("Failed to count legacy records, skipping chat", "error", err)
		group.Errors++
		return group
	}
	group.Matched = matched
	if matched == 0 {
		logger.Info("No legacy records below watermark, skipping chat")
		return group
	}
	logger.Info("Found legacy records to migrate", "count", matched)

	cursor, err := r.source.Stream(ctx, filter)
	if err != nil {
		logger.Error("Failed to open legacy cursor, skipping chat", "error", err)
		group.Errors++
		return group
	}
	defer cursor.Close(ctx)

	batch := make([]archive.Message, 0, r.cfg.BatchSize)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			logger.Warn("Failed to decode legacy record", "error", err)
			group.Errors++
			continue
		}
		msg, err := legacy.ParseRecord(doc)
		if err != nil {
			logger.Warn("Failed to parse legacy record", "error", err)
			group.Errors++
			continue
		}
		batch = append(batch, msg)
		if len(batch) >= r.cfg.BatchSize {
			r.flush(ctx, logger, &batch, &group)
		}
	}
	if err := cursor.Err(); err != nil {
		// Partial progress stands; a re-run fills the rest.
		logger.Error("Legacy cursor failed", "error", err)
		group.Errors++
	}
	if len(batch) > 0 {
		r.flush(ctx, logger, &batch, &group)
	}

	logger.Info("Chat complete", "accepted", group.Accepted, "errors", group.Errors)
	return group
}

// flush writes one batch and folds the outcome into the group counters. The
// batch is truncated afterwards regardless of outcome.
func (r *Runner) flush(ctx context.Context, logger *slog.Logger, batch *[]archive.Message, group *GroupReport) {
	count := len(*batch)
	defer func() { *batch = (*batch)[:0] }()

	if r.cfg.DryRun {
		group.Accepted += count
		logger.Info("Dry run, skipping bulk write", "count", count)
		return
	}

	result, err := r.store.BulkIndex(ctx, *batch)
	if err != nil {
		logger.Error("Bulk write failed, batch counted as errors", "count", count, "error", err)
		group.Errors += count
		return
	}
	group.Accepted += result.Accepted
	group.Errors += result.Failed
	logger.Info("Migrated batch", "accepted", result.Accepted, "failed", result.Failed)
}

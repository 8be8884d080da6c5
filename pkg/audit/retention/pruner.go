package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"originware/guardrail/pkg/audit"
)

// Config configures the retention pruner.
type Config struct {
	// RetentionDays is how many days of records to keep.
	// 0 disables age-based pruning.
	RetentionDays int

	// Schedule is a cron expression for automatic pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables the scheduler.
	Schedule string

	// MaxRecords caps the total record count; the oldest records beyond
	// it are pruned. 0 disables count-based pruning.
	MaxRecords int64

	// ArchiveBeforeDelete exports records to JSON before deleting them.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory archived records are written to.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		Schedule:      "0 3 * * *",
		MaxRecords:    0,
		ArchivePath:   "data/archives",
	}
}

// Pruner enforces the retention policy on an audit store.
type Pruner struct {
	store     audit.Store
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a pruner over store.
func NewPruner(store audit.Store, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default().With("component", "audit.retention")
	}

	p := &Pruner{
		store:  store,
		config: config,
		logger: logger,
	}
	p.scheduler = NewScheduler(p, logger)
	return p
}

// Prune runs one pruning cycle: age-based first, then count-based.
// Returns the total number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords)
	} else {
		p.logger.Debug("audit pruning completed, nothing to delete")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
	query := &audit.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, query, "age"); err != nil {
			return 0, err
		}
	}
	return p.store.Delete(ctx, query)
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.store.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, err
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	// The oldest records beyond the cap; the last one's timestamp is the
	// deletion cutoff.
	toDelete := count - p.config.MaxRecords
	oldest, err := p.store.Query(ctx, &audit.Query{
		OldestFirst: true,
		Limit:       int(toDelete),
	})
	if err != nil {
		return 0, err
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	cutoff := oldest[len(oldest)-1].EvaluatedAt
	query := &audit.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, query, "count"); err != nil {
			return 0, err
		}
	}
	return p.store.Delete(ctx, query)
}

// archive exports the records a query matches to a timestamped JSON file
// under ArchivePath.
func (p *Pruner) archive(ctx context.Context, query *audit.Query, reason string) error {
	records, err := p.store.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query records for archiving: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("audit-%s-%s.json", reason, time.Now().Format("2006-01-02-150405"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	exporter := audit.NewJSONExporter(true)
	if err := exporter.Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to archive records: %w", err)
	}

	p.logger.Info("audit records archived",
		"archive_file", path,
		"records", len(records))
	return nil
}

// Start begins scheduled pruning per the configured cron expression.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning, waiting for a running cycle to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns when the next scheduled cycle runs, or nil when the
// scheduler is idle.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

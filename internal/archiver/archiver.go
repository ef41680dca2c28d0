// Package archiver compacts aged system logs: rows older than the retention
// age are written to compressed NDJSON archives on disk and purged from the
// hot table, keeping the table the logging middleware writes into small.
package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"recordstack/internal/types"
)

// LogSource reads and purges aged log rows. Implemented by
// db.SystemLogRepository.
type LogSource interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, batchSize int) ([]*types.SystemLog, error)
	DeleteByPublicIDs(ctx context.Context, publicIDs []string) (int64, error)
}

// Config holds archiver settings, taken from config.ArchiveConfig.
type Config struct {
	Dir          string
	RetentionAge time.Duration
	BatchSize    int
}

// Archiver moves aged system logs from the database into compressed files.
type Archiver struct {
	source LogSource
	cfg    Config
	clock  types.Clock
	logger *slog.Logger
}

func New(source LogSource, cfg Config, clock types.Clock, logger *slog.Logger) *Archiver {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{source: source, cfg: cfg, clock: clock, logger: logger}
}

// Run archives batches until no aged rows remain or the context is
// cancelled. Returns the total number of rows archived.
//
// Each batch is written and fsynced BEFORE its rows are deleted, so a crash
// mid-run can duplicate rows across archive files but never lose them.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	cutoff := a.clock.Now().Add(-a.cfg.RetentionAge)
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := a.source.ListOlderThan(ctx, cutoff, a.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		path, err := a.writeArchive(batch)
		if err != nil {
			return total, err
		}

		publicIDs := make([]string, len(batch))
		for i, entry := range batch {
			publicIDs[i] = entry.PublicID
		}
		deleted, err := a.source.DeleteByPublicIDs(ctx, publicIDs)
		if err != nil {
			return total, err
		}

		total += int(deleted)
		a.logger.Info("log batch archived",
			"file", path, "rows", len(batch), "deleted", deleted)
	}

	a.logger.Info("archive run complete", "cutoff", cutoff, "total_rows", total)
	return total, nil
}

// writeArchive writes one batch as zstd-compressed NDJSON. The filename
// carries the write timestamp so repeated runs never collide.
func (a *Archiver) writeArchive(batch []*types.SystemLog) (string, error) {
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("archiver: failed to create archive dir: %w", err)
	}

	name := fmt.Sprintf("system-logs-%s.ndjson.zst",
		a.clock.Now().UTC().Format("20060102T150405.000000000"))
	path := filepath.Join(a.cfg.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("archiver: failed to create archive file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return "", fmt.Errorf("archiver: failed to init compressor: %w", err)
	}

	enc := json.NewEncoder(zw)
	for _, entry := range batch {
		if err := enc.Encode(entry); err != nil {
			zw.Close()
			return "", fmt.Errorf("archiver: failed to encode log row: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("archiver: failed to flush archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("archiver: failed to sync archive: %w", err)
	}
	return path, nil
}

// Package export implements the one-shot full-table migration path from
// the local store to the remote store.
//
// Export is for initial seeding and recovery, not steady-state sync: it
// copies rows wholesale with their local ids (seeding the shared id
// space) and deliberately never reads or writes sync metadata.
package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tidemark-app/tidemark/internal/model"
)

// LocalStore is the local read surface the exporter needs.
type LocalStore interface {
	QueryAll(ctx context.Context, table string) ([]map[string]any, error)
}

// RemoteStore is the remote write surface the exporter needs.
type RemoteStore interface {
	Select(ctx context.Context, table string) ([]map[string]any, error)
	Insert(ctx context.Context, table string, fields map[string]any) (map[string]any, error)
	DeleteAll(ctx context.Context, table string) error
}

// Options configures an export run.
type Options struct {
	// ClearRemoteFirst deletes all rows in every tracked remote table
	// before exporting, dependents before parents.
	ClearRemoteFirst bool

	// SkipExisting skips local rows whose id already exists remotely
	// instead of attempting an insert.
	SkipExisting bool

	// BatchSize is the number of records between progress log lines
	// (default: 100). It does not change what gets exported.
	BatchSize int

	// OnProgress, if set, is invoked after every record with running totals.
	OnProgress func(Progress)
}

// Progress carries running totals during an export.
type Progress struct {
	Table    string
	Exported int
	Skipped  int
	Failed   int
	Total    int
}

// TableStats are the per-table counts of an export run.
type TableStats struct {
	Exported int
	Skipped  int
	Failed   int
}

// Report is the aggregate outcome of an export run.
type Report struct {
	Tables   map[string]TableStats
	Exported int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Exporter copies whole tables from the local store to the remote store.
type Exporter struct {
	local  LocalStore
	remote RemoteStore
	logger *log.Logger
}

// New creates an Exporter.
// If logger is nil, a default logger writing to stderr is used.
func New(local LocalStore, remote RemoteStore, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(os.Stderr, "[export] ", log.LstdFlags)
	}
	return &Exporter{local: local, remote: remote, logger: logger}
}

// ExportAll copies every tracked table to the remote store in forward
// dependency order. Per-record failures are counted and do not stop the
// run; only a failed remote clear aborts, since continuing would mix old
// and new rows.
func (x *Exporter) ExportAll(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}

	report := &Report{Tables: make(map[string]TableStats, len(model.Tables))}

	if opts.ClearRemoteFirst {
		// Dependents before parents, the opposite of the insert order,
		// so remote foreign keys never dangle mid-clear.
		for _, table := range model.TablesReversed() {
			x.logger.Printf("Clearing remote %s", table)
			if err := x.remote.DeleteAll(ctx, table); err != nil {
				return nil, fmt.Errorf("failed to clear remote %s: %w", table, err)
			}
		}
	}

	for _, table := range model.Tables {
		stats := x.exportTable(ctx, table, opts, batch)
		report.Tables[table] = stats
		report.Exported += stats.Exported
		report.Skipped += stats.Skipped
		report.Failed += stats.Failed
	}

	report.Duration = time.Since(start)
	x.logger.Printf("Export complete: %d exported, %d skipped, %d failed in %v",
		report.Exported, report.Skipped, report.Failed,
		report.Duration.Round(time.Millisecond))
	return report, nil
}

// exportTable copies one table. Failures to read the table count as one
// failure and skip the table; per-record insert failures are counted and
// the remaining records still run.
func (x *Exporter) exportTable(ctx context.Context, table string, opts Options, batch int) TableStats {
	var stats TableStats

	rows, err := x.local.QueryAll(ctx, table)
	if err != nil {
		x.logger.Printf("WARNING: failed to read local %s, skipping table: %v", table, err)
		stats.Failed++
		return stats
	}

	var existing map[int64]bool
	if opts.SkipExisting {
		existing, err = x.remoteIDs(ctx, table)
		if err != nil {
			x.logger.Printf("WARNING: failed to list remote %s ids, skipping table: %v", table, err)
			stats.Failed++
			return stats
		}
	}

	for i, row := range rows {
		id, _ := asInt64(row["id"])

		if opts.SkipExisting && existing[id] {
			stats.Skipped++
		} else if _, err := x.remote.Insert(ctx, table, row); err != nil {
			x.logger.Printf("WARNING: failed to export %s id=%d: %v", table, id, err)
			stats.Failed++
		} else {
			stats.Exported++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Table:    table,
				Exported: stats.Exported,
				Skipped:  stats.Skipped,
				Failed:   stats.Failed,
				Total:    len(rows),
			})
		}
		if (i+1)%batch == 0 {
			x.logger.Printf("Exporting %s: %d/%d", table, i+1, len(rows))
		}
	}

	return stats
}

// remoteIDs returns the set of ids already present in the remote table.
func (x *Exporter) remoteIDs(ctx context.Context, table string) (map[int64]bool, error) {
	rows, err := x.remote.Select(ctx, table)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if id, ok := asInt64(row["id"]); ok {
			ids[id] = true
		}
	}
	return ids, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

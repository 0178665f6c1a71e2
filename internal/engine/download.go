package engine

import (
	"context"
	"errors"

	"github.com/tidemark-app/tidemark/internal/localdb"
	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/tracker"
)

// downloadTables pulls every remote table into the local store, parents
// before dependents so foreign keys are satisfied on insert.
//
// Remote rows with a local counterpart overwrite the local columns
// unconditionally (last write wins at record granularity; there is no
// timestamp comparison). Rows with no counterpart are inserted with the
// remote id preserved, keeping the two id spaces aligned.
//
// Returns the number of newly created local records and the number of
// rows that failed. Per-record and per-table failures never stop the
// remaining work.
func (e *Engine) downloadTables(ctx context.Context) (downloaded, failed int) {
	for _, table := range model.Tables {
		remoteRows, err := e.remote.Select(ctx, table)
		if err != nil {
			e.logger.Printf("WARNING: failed to fetch remote %s, skipping table: %v", table, err)
			failed++
			continue
		}

		localCols, err := e.tracker.ColumnsOf(ctx, table)
		if err != nil {
			e.logger.Printf("WARNING: failed to introspect %s, skipping table: %v", table, err)
			failed++
			continue
		}

		for _, remoteRow := range remoteRows {
			created, err := e.applyRemoteRow(ctx, table, remoteRow, localCols)
			if err != nil {
				e.logger.Printf("WARNING: failed to apply remote %s row: %v", table, err)
				failed++
				continue
			}
			if created {
				downloaded++
			}
		}
	}
	return downloaded, failed
}

// applyRemoteRow merges one remote row into the local table and marks its
// metadata synced. Reports whether a new local record was created.
func (e *Engine) applyRemoteRow(ctx context.Context, table string, remoteRow map[string]any, localCols map[string]bool) (created bool, err error) {
	id, ok := asInt64(remoteRow["id"])
	if !ok || id == 0 {
		return false, errors.New("remote row has no usable id")
	}

	// Only columns that exist in both schemas cross over; remote-only
	// audit columns are dropped here.
	fields := make(map[string]any, len(remoteRow))
	for col, v := range remoteRow {
		if col == "id" || !localCols[col] {
			continue
		}
		fields[col] = v
	}

	_, err = e.local.QueryOne(ctx, table, id)
	switch {
	case err == nil:
		if len(fields) > 0 {
			if err := e.local.Update(ctx, table, id, fields); err != nil {
				return false, err
			}
		}

	case errors.Is(err, localdb.ErrNotFound):
		fields["id"] = id
		if _, err := e.local.Insert(ctx, table, fields); err != nil {
			return false, err
		}
		created = true

	default:
		return false, err
	}

	// Bookkeeping: best effort, the merge itself already succeeded.
	if err := e.tracker.UpdateStatus(ctx, table, id, tracker.StatusSynced, &id); err != nil {
		e.logger.Printf("WARNING: failed to mark %s id=%d synced after download: %v", table, id, err)
	}
	return created, nil
}

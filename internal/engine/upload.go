package engine

import (
	"context"
	"errors"

	"github.com/tidemark-app/tidemark/internal/localdb"
	"github.com/tidemark-app/tidemark/internal/tracker"
)

// uploadPending drains up to batchSize pending-or-error records to the
// remote store, oldest first. Each record is processed independently:
// a failure marks that record's metadata error and moves on.
//
// Returns the number of records uploaded and the number that failed.
func (e *Engine) uploadPending(ctx context.Context) (uploaded, failed int) {
	pending, err := e.tracker.ListPending(ctx, e.batchSize)
	if err != nil {
		// Bookkeeping unavailable: pending records stay invisible until
		// the metadata table recovers. Degrade, don't fail the pass.
		e.logger.Printf("WARNING: failed to list pending records, skipping upload: %v", err)
		return 0, 0
	}

	for _, meta := range pending {
		if e.uploadOne(ctx, meta) {
			uploaded++
		} else {
			failed++
		}
	}
	return uploaded, failed
}

// uploadOne pushes a single record to the remote store and settles its
// metadata. Reports whether the record counts as uploaded.
func (e *Engine) uploadOne(ctx context.Context, meta tracker.Meta) bool {
	record, err := e.local.QueryOne(ctx, meta.TableName, meta.RecordID)

	// Tombstone: the record was deleted locally after being marked
	// pending. Remove the remote counterpart if one exists, then settle
	// the metadata as synced either way.
	if errors.Is(err, localdb.ErrNotFound) {
		if meta.RemoteID != nil {
			if err := e.remote.Delete(ctx, meta.TableName, *meta.RemoteID); err != nil {
				e.logger.Printf("WARNING: failed to delete remote %s id=%d: %v",
					meta.TableName, *meta.RemoteID, err)
				e.markError(ctx, meta)
				return false
			}
		}
		e.markSynced(ctx, meta, meta.RemoteID)
		return true
	}
	if err != nil {
		e.logger.Printf("WARNING: failed to load %s id=%d: %v", meta.TableName, meta.RecordID, err)
		e.markError(ctx, meta)
		return false
	}

	// The local identity never crosses the wire on upload: inserts let
	// the remote assign an id, updates address the stored remote_id.
	fields := make(map[string]any, len(record))
	for col, v := range record {
		if col == "id" {
			continue
		}
		fields[col] = v
	}

	if meta.RemoteID != nil {
		if _, err := e.remote.Update(ctx, meta.TableName, *meta.RemoteID, fields); err != nil {
			e.logger.Printf("WARNING: failed to update remote %s id=%d: %v",
				meta.TableName, *meta.RemoteID, err)
			e.markError(ctx, meta)
			return false
		}
		e.markSynced(ctx, meta, meta.RemoteID)
		return true
	}

	stored, err := e.remote.Insert(ctx, meta.TableName, fields)
	if err != nil {
		e.logger.Printf("WARNING: failed to insert remote %s for local id=%d: %v",
			meta.TableName, meta.RecordID, err)
		e.markError(ctx, meta)
		return false
	}

	var remoteID *int64
	if rid, ok := asInt64(stored["id"]); ok {
		remoteID = &rid
	} else {
		e.logger.Printf("WARNING: remote insert into %s returned no id for local id=%d",
			meta.TableName, meta.RecordID)
	}
	e.markSynced(ctx, meta, remoteID)
	return true
}

func (e *Engine) markSynced(ctx context.Context, meta tracker.Meta, remoteID *int64) {
	if err := e.tracker.UpdateStatus(ctx, meta.TableName, meta.RecordID, tracker.StatusSynced, remoteID); err != nil {
		e.logger.Printf("WARNING: failed to mark %s id=%d synced: %v", meta.TableName, meta.RecordID, err)
	}
}

func (e *Engine) markError(ctx context.Context, meta tracker.Meta) {
	if err := e.tracker.UpdateStatus(ctx, meta.TableName, meta.RecordID, tracker.StatusError, nil); err != nil {
		e.logger.Printf("WARNING: failed to mark %s id=%d error: %v", meta.TableName, meta.RecordID, err)
	}
}

// asInt64 coerces the numeric types a generic row value can hold.
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

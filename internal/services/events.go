package services

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"groupfolderMetadata/internal/models"
)

// FileEventListener receives file lifecycle events dispatched by the host
type FileEventListener interface {
	OnFileCopied(ctx context.Context, ev models.FileEvent) error
	OnFileCreated(ctx context.Context, ev models.FileEvent) error
	OnFileDeleted(ctx context.Context, ev models.FileEvent) error
	OnFileRestored(ctx context.Context, ev models.FileEvent) error
}

// EventService keeps metadata in step with file copies, creations and deletions
type EventService struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ FileEventListener = (*EventService)(nil)

// NewEventService creates a new file event listener
func NewEventService(db *sql.DB, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{db: db, logger: logger}
}

// OnFileCopied copies the source file's values to the new file. Values the target context
// does not accept (unassigned field, constraint violated by an override) are skipped.
func (s *EventService) OnFileCopied(ctx context.Context, ev models.FileEvent) error {
	if err := validateFileID(ev.FileID); err != nil {
		return err
	}
	if err := validateFileID(ev.SourceFileID); err != nil {
		return err
	}

	var copied, skipped int
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		sourceTarget, sourceSchema, ok, err := eventContext(ctx, tx, ev.SourceGroupfolderID, ev.SourceFileID)
		if err != nil || !ok {
			return err
		}
		target, targetSchema, ok, err := eventContext(ctx, tx, ev.GroupfolderID, ev.FileID)
		if err != nil || !ok {
			return err
		}

		stored, err := readStoredValues(ctx, tx, sourceTarget)
		if err != nil {
			return err
		}

		ops := make([]valueOp, 0, len(stored))
		for id, raw := range stored {
			sourceField, known := sourceSchema[id]
			targetField, accepted := targetSchema[id]
			if !known || !accepted {
				skipped++
				continue
			}
			value, clear, err := NormalizeValue(targetField, DecodeValue(sourceField, raw))
			if err != nil || clear {
				skipped++
				continue
			}
			ops = append(ops, valueOp{fieldID: id, stored: value})
		}
		copied = len(ops)
		return writeValues(ctx, tx, target, ops)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("copied file metadata",
		zap.Int64("source_file_id", ev.SourceFileID),
		zap.Int64("file_id", ev.FileID),
		zap.Int("copied", copied),
		zap.Int("skipped", skipped))
	return nil
}

// OnFileCreated seeds a new groupfolder file with the default values of the groupfolder's fields
func (s *EventService) OnFileCreated(ctx context.Context, ev models.FileEvent) error {
	if err := validateFileID(ev.FileID); err != nil {
		return err
	}
	if ev.GroupfolderID == nil {
		return nil
	}

	var seeded int
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM deleted_files WHERE file_id = ?`, ev.FileID); err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to clear delete marker", err)
		}

		target, schema, ok, err := eventContext(ctx, tx, ev.GroupfolderID, ev.FileID)
		if err != nil || !ok {
			return err
		}

		ts := now()
		for _, field := range schema {
			if field.DefaultValue == "" {
				continue
			}
			stored, clear, err := NormalizeValue(field, field.DefaultValue)
			if err != nil || clear {
				continue
			}
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO groupfolder_file_metadata (groupfolder_id, file_id, field_id, value, updated_at)
				VALUES (?, ?, ?, ?, ?)
			`, target.keyVals[0], target.keyVals[1], field.ID, stored, ts)
			if err != nil {
				return WrapDatabaseError(ErrTypeQuery, "failed to apply default value", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				seeded++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("seeded default metadata", zap.Int64("file_id", ev.FileID), zap.Int("values", seeded))
	return nil
}

// OnFileDeleted marks the file as deleted. Its values are kept until the cleanup job purges
// them, so a restore from the trash gets its metadata back.
func (s *EventService) OnFileDeleted(ctx context.Context, ev models.FileEvent) error {
	if err := validateFileID(ev.FileID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deleted_files (file_id, groupfolder_id, deleted_at) VALUES (?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET groupfolder_id = excluded.groupfolder_id, deleted_at = excluded.deleted_at
	`, ev.FileID, ev.GroupfolderID, now())
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to record deleted file", err)
	}
	return nil
}

// OnFileRestored removes the delete marker of a file
func (s *EventService) OnFileRestored(ctx context.Context, ev models.FileEvent) error {
	if err := validateFileID(ev.FileID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deleted_files WHERE file_id = ?`, ev.FileID); err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to clear delete marker", err)
	}
	return nil
}

// PurgeDeleted removes all metadata of files deleted before cutoff and returns how many files were purged
func (s *EventService) PurgeDeleted(ctx context.Context, cutoff time.Time) (int, error) {
	cutoff = cutoff.UTC().Truncate(time.Second)

	var purged int
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM deleted_files WHERE deleted_at < ?`, cutoff).Scan(&purged); err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to count deleted files", err)
		}
		if purged == 0 {
			return nil
		}

		stale := `(SELECT file_id FROM deleted_files WHERE deleted_at < ?)`
		for _, stmt := range []string{
			`DELETE FROM file_metadata WHERE file_id IN ` + stale,
			`DELETE FROM groupfolder_file_metadata WHERE file_id IN ` + stale,
			`DELETE FROM metadata_search_index WHERE file_id IN ` + stale,
			`DELETE FROM deleted_files WHERE deleted_at < ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, cutoff); err != nil {
				return WrapDatabaseError(ErrTypeQuery, "failed to purge deleted file metadata", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// eventContext returns the value target and schema for a file. ok is false when the file
// lives in a groupfolder that is not registered, in which case the event is ignored.
func eventContext(ctx context.Context, q queryer, gid *int64, fileID int64) (valueTarget, map[string]models.Field, bool, error) {
	if gid == nil {
		schema, err := globalSchema(ctx, q)
		if err != nil {
			return valueTarget{}, nil, false, err
		}
		return fileTarget(fileID), schema, true, nil
	}

	if err := requireGroupfolder(ctx, q, *gid); err != nil {
		if KindOf(err) == KindNotFound {
			return valueTarget{}, nil, false, nil
		}
		return valueTarget{}, nil, false, err
	}
	schema, err := groupfolderSchema(ctx, q, *gid)
	if err != nil {
		return valueTarget{}, nil, false, err
	}
	return groupfolderFileTarget(*gid, fileID), schema, true, nil
}

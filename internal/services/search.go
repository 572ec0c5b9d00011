package services

import (
	"context"
	"database/sql"
	"strings"
	"unicode/utf8"

	"groupfolderMetadata/internal/models"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxQueryLength     = 255
)

// SearchService maintains the metadata search index and answers queries against it
type SearchService struct {
	db *sql.DB
}

// NewSearchService creates a new search provider
func NewSearchService(db *sql.DB) *SearchService {
	return &SearchService{db: db}
}

// RebuildIndex replaces the search index with the current values of all live files
// and returns the number of indexed values
func (s *SearchService) RebuildIndex(ctx context.Context) (int, error) {
	var indexed int
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM metadata_search_index`); err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to clear search index", err)
		}

		global, err := globalSchema(ctx, tx)
		if err != nil {
			return err
		}
		n, err := indexRows(ctx, tx, nil, global, `
			SELECT file_id, field_id, value FROM file_metadata
			WHERE file_id NOT IN (SELECT file_id FROM deleted_files)
		`)
		if err != nil {
			return err
		}
		indexed += n

		gids, err := groupfolderIDs(ctx, tx)
		if err != nil {
			return err
		}
		for _, gid := range gids {
			schema, err := groupfolderSchema(ctx, tx, gid)
			if err != nil {
				return err
			}
			id := gid
			n, err := indexRows(ctx, tx, &id, schema, `
				SELECT file_id, field_id, value FROM groupfolder_file_metadata
				WHERE groupfolder_id = ? AND file_id NOT IN (SELECT file_id FROM deleted_files)
			`, gid)
			if err != nil {
				return err
			}
			indexed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return indexed, nil
}

type indexRow struct {
	fileID  int64
	fieldID string
	value   string
}

func indexRows(ctx context.Context, tx *sql.Tx, gid *int64, schema map[string]models.Field, query string, args ...interface{}) (int, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, WrapDatabaseError(ErrTypeQuery, "failed to read values for indexing", err)
	}
	var pending []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.fileID, &r.fieldID, &r.value); err != nil {
			rows.Close()
			return 0, WrapDatabaseError(ErrTypeQuery, "failed to scan value for indexing", err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, WrapDatabaseError(ErrTypeQuery, "failed to read values for indexing", err)
	}

	n := 0
	for _, r := range pending {
		field, ok := schema[r.fieldID]
		if !ok {
			continue
		}
		text := strings.ToLower(field.Name + " " + SearchText(field, r.value))
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metadata_search_index (file_id, groupfolder_id, field_id, field_name, value, search_text)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.fileID, gid, r.fieldID, field.Name, SearchText(field, r.value), text)
		if err != nil {
			return 0, WrapDatabaseError(ErrTypeQuery, "failed to index value", err)
		}
		n++
	}
	return n, nil
}

// Search returns indexed values whose field name or value contains query, case-insensitively
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)

	v := NewValidator()
	v.ValidateRequired(query, "q")
	if utf8.RuneCountInString(query) > maxQueryLength {
		v.AddError("q", "is too long")
	}
	if err := v.Err("invalid search"); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, groupfolder_id, field_id, field_name, value
		FROM metadata_search_index
		WHERE search_text LIKE ? ESCAPE '\'
			AND file_id NOT IN (SELECT file_id FROM deleted_files)
		ORDER BY file_id, field_name, field_id
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to search metadata", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0)
	for rows.Next() {
		var (
			r   models.SearchResult
			gid sql.NullInt64
		)
		if err := rows.Scan(&r.FileID, &gid, &r.FieldID, &r.FieldName, &r.Value); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan search result", err)
		}
		if gid.Valid {
			id := gid.Int64
			r.GroupfolderID = &id
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to read search results", err)
	}
	return results, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func groupfolderIDs(ctx context.Context, q queryer) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM groupfolders ORDER BY id`)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query groupfolders", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan groupfolder id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/models"
)

func TestFieldService_ListStorageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM metadata_fields").WillReturnError(errors.New("disk I/O error"))

	_, err = NewFieldService(db, nil, DeletePolicyCascade).ListFields(context.Background())
	require.Error(t, err)

	var dbErr *DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.Equal(t, ErrorKind(""), KindOf(err), "storage failures are not client errors")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataService_SaveRollsBackOnWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := now()
	rows := sqlmock.NewRows([]string{"id", "name", "type", "description", "options", "required", "default_value",
		"sort_order", "constraints", "scope", "groupfolder_id", "created_at", "updated_at"}).
		AddRow("title", "Title", "text", "", "[]", false, "", 0, "{}", "global", nil, ts, ts).
		AddRow("pages", "Pages", "number", "", "[]", false, "", 1, "{}", "global", nil, ts, ts)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM metadata_fields").WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO file_metadata").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO file_metadata").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err = NewMetadataService(db).SaveFileMetadata(context.Background(), 42, models.Values{"title": "Report", "pages": 3.0})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var timetableRowColumns = []string{"id", "semester", "version", "status", "options", "catalog", "entries", "report", "completion", "created_at", "updated_at"}

func TestTimetableRepositoryCreateVersioned(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM semester_timetables WHERE semester = $1")).
		WithArgs("2025-後期").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO semester_timetables")).
		WithArgs(sqlmock.AnyArg(), "2025-後期", 3, string(models.TimetableStatusDraft), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 0.75, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload := &models.SemesterTimetable{
		Semester:   "2025-後期",
		Options:    types.JSONText(`{"startDate":"2025-10-01","endDate":"2026-01-31"}`),
		Catalog:    types.JSONText(`{"teachers":[]}`),
		Entries:    types.JSONText(`{}`),
		Completion: 0.75,
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, payload))
	assert.Equal(t, 3, payload.Version)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, types.JSONText(`{}`), payload.Report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateVersionedRequiresSemester(t *testing.T) {
	db, _ := newRepoMock(t)
	err := NewTimetableRepository(db).CreateVersioned(context.Background(), nil, &models.SemesterTimetable{})
	assert.Error(t, err)
}

func TestTimetableRepositoryListBySemester(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "semester", "version", "status", "completion", "created_at"}).
		AddRow("tt-2", "2025-後期", 2, "DRAFT", 1.0, time.Now()).
		AddRow("tt-1", "2025-後期", 1, "PUBLISHED", 0.9, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM semester_timetables WHERE semester = $1 ORDER BY version DESC")).
		WithArgs("2025-後期").
		WillReturnRows(rows)

	list, err := repo.ListBySemester(context.Background(), "2025-後期")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tt-2", list[0].ID)
	assert.Equal(t, models.TimetableStatusPublished, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindForUpdateLocksRow(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM semester_timetables WHERE id = $1 FOR UPDATE")).
		WithArgs("tt-1").
		WillReturnRows(sqlmock.NewRows(timetableRowColumns).
			AddRow("tt-1", "2025-後期", 1, "DRAFT", `{}`, `{}`, `{"機械-1年":[]}`, `{}`, 1.0, time.Now(), time.Now()))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	record, err := repo.FindForUpdate(context.Background(), tx, "tt-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "tt-1", record.ID)
	assert.JSONEq(t, `{"機械-1年":[]}`, string(record.Entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM semester_timetables WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewTimetableRepository(db).FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTimetableRepositoryUpdateEntries(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE semester_timetables SET entries = $1, report = $2, completion = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(types.JSONText(`{"a":[]}`), types.JSONText(`{}`), 0.5, sqlmock.AnyArg(), "tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateEntries(context.Background(), nil, "tt-1", types.JSONText(`{"a":[]}`), types.JSONText(`{}`), 0.5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE semester_timetables SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(string(models.TimetableStatusPublished), sqlmock.AnyArg(), "tt-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewTimetableRepository(db).UpdateStatus(context.Background(), nil, "tt-9", models.TimetableStatusPublished)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDelete(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM semester_timetables WHERE id = $1")).
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewTimetableRepository(db).Delete(context.Background(), "tt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

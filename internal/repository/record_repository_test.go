package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records-api/internal/models"
)

var recordColumnNames = []string{"id", "owner_id", "payload", "status", "reviewer_id", "review_comments", "created_at", "updated_at", "decided_at"}

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecordRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects (id, owner_id, payload")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &models.Record{
		Kind:    models.KindProject,
		OwnerID: "student-1",
		Payload: json.RawMessage(`{"title":"Navigator","teamSize":2}`),
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	require.NotEmpty(t, rec.ID)
	require.Equal(t, models.RecordStatusPending, rec.Status)

	decidedAt := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(recordColumnNames).
		AddRow(rec.ID, "student-1", []byte(rec.Payload), "APPROVED", "tutor-1", "ok", rec.CreatedAt, decidedAt, decidedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, payload")).
		WithArgs(rec.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), models.KindProject, rec.ID)
	require.NoError(t, err)
	require.Equal(t, models.KindProject, found.Kind)
	require.Equal(t, models.RecordStatusApproved, found.Status)
	require.Equal(t, "tutor-1", *found.ReviewerID)
	require.Equal(t, "ok", *found.ReviewComments)
	require.True(t, decidedAt.Equal(*found.DecidedAt))
	require.JSONEq(t, string(rec.Payload), string(found.Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM publications WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(recordColumnNames))

	_, err := repo.GetByID(context.Background(), models.KindPublication, "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(recordColumnNames).
		AddRow("rec-1", "student-1", []byte(`{}`), "PENDING", nil, nil, now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM hackathon_events WHERE owner_id = ? AND status IN (?) ORDER BY created_at DESC, id ASC LIMIT 20 OFFSET 40")).
		WithArgs("student-1", "PENDING").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM hackathon_events WHERE owner_id = ? AND status IN (?)")).
		WithArgs("student-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))

	records, total, err := repo.List(context.Background(), models.RecordFilter{
		Kind:    models.KindHackathonEvent,
		OwnerID: "student-1",
		Status:  []models.RecordStatus{models.RecordStatusPending},
		Limit:   20,
		Offset:  40,
	})
	require.NoError(t, err)
	require.Equal(t, 41, total)
	require.Len(t, records, 1)
	require.Nil(t, records[0].ReviewerID)
	require.Nil(t, records[0].DecidedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryConditionalWrites(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	ctx := context.Background()
	decidedAt := time.Now().UTC()
	comments := "looks good"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE non_cgpa_courses SET status = ?, reviewer_id = ?")).
		WithArgs("APPROVED", "tutor-1", comments, decidedAt, decidedAt, "rec-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE non_cgpa_courses SET status = ?, reviewer_id = ?")).
		WithArgs("REJECTED", "tutor-2", nil, decidedAt, decidedAt, "rec-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Decide(ctx, models.RecordDecision{
		Kind: models.KindNonCGPACourse, ID: "rec-1", Outcome: models.RecordStatusApproved,
		ReviewerID: "tutor-1", Comments: &comments, DecidedAt: decidedAt,
	}))
	err := repo.Decide(ctx, models.RecordDecision{
		Kind: models.KindNonCGPACourse, ID: "rec-1", Outcome: models.RecordStatusRejected,
		ReviewerID: "tutor-2", DecidedAt: decidedAt,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE non_cgpa_courses SET payload = ?, updated_at = ? WHERE id = ? AND owner_id = ? AND status = ?")).
		WithArgs(`{"courseName":"x"}`, decidedAt, "rec-1", "student-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdatePending(ctx, models.RecordEdit{
		Kind: models.KindNonCGPACourse, ID: "rec-1", OwnerID: "student-1",
		Payload: json.RawMessage(`{"courseName":"x"}`), UpdatedAt: decidedAt,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM non_cgpa_courses WHERE id = ? AND owner_id = ? AND status = ?")).
		WithArgs("rec-2", "student-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeletePending(ctx, models.KindNonCGPACourse, "rec-2", "student-1"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDeleteMany(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM education_profiles WHERE id IN (?, ?, ?)")).
		WithArgs("a", "b", "c").
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := repo.DeleteMany(context.Background(), models.KindEducationProfile, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteMany(context.Background(), models.KindEducationProfile, nil)
	require.NoError(t, err)
	require.Zero(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryRejectsUnknownKind(t *testing.T) {
	db, _, cleanup := newRecordRepoMock(t)
	defer cleanup()

	_, err := NewRecordRepository(db).Snapshot(context.Background(), models.RecordKind("THESIS"))
	require.Error(t, err)
}

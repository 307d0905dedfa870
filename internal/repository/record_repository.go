package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-records-api/internal/models"
)

const recordColumns = "id, owner_id, payload, status, reviewer_id, review_comments, created_at, updated_at, decided_at"

// recordRow is the scan target; payload is read as raw bytes so TEXT and JSONB columns both work.
type recordRow struct {
	ID             string         `db:"id"`
	OwnerID        string         `db:"owner_id"`
	Payload        []byte         `db:"payload"`
	Status         string         `db:"status"`
	ReviewerID     sql.NullString `db:"reviewer_id"`
	ReviewComments sql.NullString `db:"review_comments"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	DecidedAt      sql.NullTime   `db:"decided_at"`
}

func (row recordRow) toModel(kind models.RecordKind) models.Record {
	rec := models.Record{
		ID:        row.ID,
		Kind:      kind,
		OwnerID:   row.OwnerID,
		Payload:   json.RawMessage(row.Payload),
		Status:    models.RecordStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.ReviewerID.Valid {
		v := row.ReviewerID.String
		rec.ReviewerID = &v
	}
	if row.ReviewComments.Valid {
		v := row.ReviewComments.String
		rec.ReviewComments = &v
	}
	if row.DecidedAt.Valid {
		v := row.DecidedAt.Time
		rec.DecidedAt = &v
	}
	return rec
}

// RecordRepository persists records of every kind, one table per kind.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func tableFor(kind models.RecordKind) (string, error) {
	table := kind.Table()
	if table == "" {
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
	return table, nil
}

// Create inserts a new record row.
func (r *RecordRepository) Create(ctx context.Context, rec *models.Record) error {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.RecordStatusPending
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	query := r.db.Rebind(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, recordColumns))
	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, string(rec.Payload), rec.Status,
		rec.ReviewerID, rec.ReviewComments, rec.CreatedAt, rec.UpdatedAt, rec.DecidedAt,
	); err != nil {
		return fmt.Errorf("create %s record: %w", table, err)
	}
	return nil
}

// GetByID fetches a record; sql.ErrNoRows when absent.
func (r *RecordRepository) GetByID(ctx context.Context, kind models.RecordKind, id string) (*models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, recordColumns, table))
	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	rec := row.toModel(kind)
	return &rec, nil
}

// List returns records matching the filter, newest first, plus the unpaged total.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, int, error) {
	table, err := tableFor(filter.Kind)
	if err != nil {
		return nil, 0, err
	}
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d`,
		recordColumns, table, where, limit, offset))
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}

	countQuery := r.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, where))
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	records := make([]models.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toModel(filter.Kind)
	}
	return records, total, nil
}

// Snapshot returns every record of the kind in a single statement.
func (r *RecordRepository) Snapshot(ctx context.Context, kind models.RecordKind) ([]models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var rows []recordRow
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id ASC`, recordColumns, table)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", table, err)
	}
	records := make([]models.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toModel(kind)
	}
	return records, nil
}

// UpdatePending overwrites the payload only while the row is still pending and owned by the editor.
func (r *RecordRepository) UpdatePending(ctx context.Context, edit models.RecordEdit) error {
	table, err := tableFor(edit.Kind)
	if err != nil {
		return err
	}
	query := r.db.Rebind(fmt.Sprintf(`UPDATE %s SET payload = ?, updated_at = ? WHERE id = ? AND owner_id = ? AND status = ?`, table))
	result, err := r.db.ExecContext(ctx, query,
		string(edit.Payload), edit.UpdatedAt, edit.ID, edit.OwnerID, models.RecordStatusPending)
	if err != nil {
		return fmt.Errorf("update %s record: %w", table, err)
	}
	return expectOneRow(result, table)
}

// Decide transitions a pending row to its terminal status in a single conditional statement.
func (r *RecordRepository) Decide(ctx context.Context, decision models.RecordDecision) error {
	table, err := tableFor(decision.Kind)
	if err != nil {
		return err
	}
	query := r.db.Rebind(fmt.Sprintf(`UPDATE %s SET status = ?, reviewer_id = ?, review_comments = ?, decided_at = ?, updated_at = ?
	WHERE id = ? AND status = ?`, table))
	result, err := r.db.ExecContext(ctx, query,
		decision.Outcome, decision.ReviewerID, decision.Comments, decision.DecidedAt, decision.DecidedAt,
		decision.ID, models.RecordStatusPending)
	if err != nil {
		return fmt.Errorf("decide %s record: %w", table, err)
	}
	return expectOneRow(result, table)
}

// DeletePending removes the row only while pending and owned by the caller.
func (r *RecordRepository) DeletePending(ctx context.Context, kind models.RecordKind, id, ownerID string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := r.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND owner_id = ? AND status = ?`, table))
	result, err := r.db.ExecContext(ctx, query, id, ownerID, models.RecordStatusPending)
	if err != nil {
		return fmt.Errorf("delete %s record: %w", table, err)
	}
	return expectOneRow(result, table)
}

// DeleteMany removes the given rows regardless of status and returns how many were deleted.
func (r *RecordRepository) DeleteMany(ctx context.Context, kind models.RecordKind, ids []string) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE id IN (?)`, table), ids)
	if err != nil {
		return 0, fmt.Errorf("build %s bulk delete: %w", table, err)
	}
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check %s bulk delete rows: %w", table, err)
	}
	return rows, nil
}

func expectOneRow(result sql.Result, table string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", table, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

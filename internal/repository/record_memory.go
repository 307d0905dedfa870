package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-records-api/internal/models"
)

// memoryTable indexes one kind's records. The lock guards the index only; each
// record's state lives behind its own atomic pointer so transitions on unrelated
// records never contend.
type memoryTable struct {
	mu   sync.RWMutex
	rows map[string]*atomic.Pointer[models.Record]
}

// MemoryRecordStore keeps records in process memory for development and tests.
type MemoryRecordStore struct {
	tables map[models.RecordKind]*memoryTable
}

// NewMemoryRecordStore constructs an empty store with one table per kind.
func NewMemoryRecordStore() *MemoryRecordStore {
	tables := make(map[models.RecordKind]*memoryTable, len(models.AllRecordKinds))
	for _, kind := range models.AllRecordKinds {
		tables[kind] = &memoryTable{rows: make(map[string]*atomic.Pointer[models.Record])}
	}
	return &MemoryRecordStore{tables: tables}
}

func (s *MemoryRecordStore) table(kind models.RecordKind) (*memoryTable, error) {
	t, ok := s.tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	return t, nil
}

func (t *memoryTable) slot(id string) *atomic.Pointer[models.Record] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows[id]
}

// Create inserts a new record.
func (s *MemoryRecordStore) Create(ctx context.Context, rec *models.Record) error {
	t, err := s.table(rec.Kind)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.RecordStatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	ptr := &atomic.Pointer[models.Record]{}
	ptr.Store(rec.Clone())

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rows[rec.ID]; exists {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	t.rows[rec.ID] = ptr
	return nil
}

// GetByID returns a copy of the record or sql.ErrNoRows.
func (s *MemoryRecordStore) GetByID(ctx context.Context, kind models.RecordKind, id string) (*models.Record, error) {
	t, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	ptr := t.slot(id)
	if ptr == nil {
		return nil, sql.ErrNoRows
	}
	current := ptr.Load()
	if current == nil {
		return nil, sql.ErrNoRows
	}
	return current.Clone(), nil
}

// List filters records, newest first, and returns the unpaged total.
func (s *MemoryRecordStore) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, int, error) {
	all, err := s.Snapshot(ctx, filter.Kind)
	if err != nil {
		return nil, 0, err
	}
	statuses := make(map[models.RecordStatus]struct{}, len(filter.Status))
	for _, st := range filter.Status {
		statuses[st] = struct{}{}
	}
	matched := make([]models.Record, 0, len(all))
	for _, rec := range all {
		if filter.OwnerID != "" && rec.OwnerID != filter.OwnerID {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[rec.Status]; !ok {
				continue
			}
		}
		matched = append(matched, rec)
	}
	total := len(matched)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.Record{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Snapshot returns copies of every record of the kind, newest first.
func (s *MemoryRecordStore) Snapshot(ctx context.Context, kind models.RecordKind) ([]models.Record, error) {
	t, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	records := make([]models.Record, 0, len(t.rows))
	for _, ptr := range t.rows {
		if current := ptr.Load(); current != nil {
			records = append(records, *current.Clone())
		}
	}
	t.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// swapIf replaces the record when guard accepts the current value. The swap
// retries only when another writer replaced the value between load and swap.
func (s *MemoryRecordStore) swapIf(kind models.RecordKind, id string, guard func(*models.Record) bool, mutate func(*models.Record)) error {
	t, err := s.table(kind)
	if err != nil {
		return err
	}
	ptr := t.slot(id)
	if ptr == nil {
		return sql.ErrNoRows
	}
	for {
		current := ptr.Load()
		if current == nil || !guard(current) {
			return sql.ErrNoRows
		}
		next := current.Clone()
		mutate(next)
		if ptr.CompareAndSwap(current, next) {
			return nil
		}
	}
}

// UpdatePending overwrites the payload while the record is pending and owned by the editor.
func (s *MemoryRecordStore) UpdatePending(ctx context.Context, edit models.RecordEdit) error {
	return s.swapIf(edit.Kind, edit.ID,
		func(rec *models.Record) bool {
			return rec.OwnerID == edit.OwnerID && rec.Status == models.RecordStatusPending
		},
		func(rec *models.Record) {
			rec.Payload = append(rec.Payload[:0:0], edit.Payload...)
			rec.UpdatedAt = edit.UpdatedAt
		})
}

// Decide moves a pending record to its terminal status.
func (s *MemoryRecordStore) Decide(ctx context.Context, decision models.RecordDecision) error {
	return s.swapIf(decision.Kind, decision.ID,
		func(rec *models.Record) bool { return rec.Status == models.RecordStatusPending },
		func(rec *models.Record) {
			reviewer := decision.ReviewerID
			decidedAt := decision.DecidedAt
			rec.Status = decision.Outcome
			rec.ReviewerID = &reviewer
			if decision.Comments != nil {
				comments := *decision.Comments
				rec.ReviewComments = &comments
			}
			rec.DecidedAt = &decidedAt
			rec.UpdatedAt = decidedAt
		})
}

// DeletePending removes a record while pending and owned by the caller. The
// slot is tombstoned with a nil pointer via CAS before the index entry is dropped,
// so a concurrent Decide either wins first or observes the deletion.
func (s *MemoryRecordStore) DeletePending(ctx context.Context, kind models.RecordKind, id, ownerID string) error {
	return s.remove(kind, id, func(rec *models.Record) bool {
		return rec.OwnerID == ownerID && rec.Status == models.RecordStatusPending
	})
}

// DeleteMany removes the given records regardless of status.
func (s *MemoryRecordStore) DeleteMany(ctx context.Context, kind models.RecordKind, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		err := s.remove(kind, id, func(*models.Record) bool { return true })
		if err == nil {
			deleted++
			continue
		}
		if err != sql.ErrNoRows {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *MemoryRecordStore) remove(kind models.RecordKind, id string, guard func(*models.Record) bool) error {
	t, err := s.table(kind)
	if err != nil {
		return err
	}
	ptr := t.slot(id)
	if ptr == nil {
		return sql.ErrNoRows
	}
	for {
		current := ptr.Load()
		if current == nil || !guard(current) {
			return sql.ErrNoRows
		}
		if ptr.CompareAndSwap(current, nil) {
			break
		}
	}
	t.mu.Lock()
	if t.rows[id] == ptr {
		delete(t.rows, id)
	}
	t.mu.Unlock()
	return nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

// RecordStore is the persistence contract for records. Every mutating method
// applies its precondition in the same atomic step as the write and reports a
// failed precondition as sql.ErrNoRows.
type RecordStore interface {
	Create(ctx context.Context, rec *models.Record) error
	GetByID(ctx context.Context, kind models.RecordKind, id string) (*models.Record, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Record, int, error)
	Snapshot(ctx context.Context, kind models.RecordKind) ([]models.Record, error)
	UpdatePending(ctx context.Context, edit models.RecordEdit) error
	Decide(ctx context.Context, decision models.RecordDecision) error
	DeletePending(ctx context.Context, kind models.RecordKind, id, ownerID string) error
	DeleteMany(ctx context.Context, kind models.RecordKind, ids []string) (int64, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Lifecycle action labels used for metrics.
const (
	actionCreate      = "create"
	actionUpdate      = "update"
	actionDelete      = "delete"
	actionAdminDelete = "admin_delete"
	actionBulkDelete  = "bulk_delete"
	actionDecide      = "decide"
)

// RecordService is the lifecycle engine shared by every record kind.
type RecordService struct {
	store           RecordStore
	registry        *RecordRegistry
	policy          *AccessPolicy
	audit           auditLogger
	cache           *CacheService
	metrics         *MetricsService
	logger          *zap.Logger
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int
	maxBulkDelete   int
}

// RecordServiceOption configures the service.
type RecordServiceOption func(*RecordService)

// WithRecordAudit enables the audit trail.
func WithRecordAudit(audit auditLogger) RecordServiceOption {
	return func(s *RecordService) { s.audit = audit }
}

// WithRecordCache invalidates cached statistics after each mutation.
func WithRecordCache(cache *CacheService) RecordServiceOption {
	return func(s *RecordService) { s.cache = cache }
}

// WithRecordMetrics counts lifecycle outcomes.
func WithRecordMetrics(metrics *MetricsService) RecordServiceOption {
	return func(s *RecordService) { s.metrics = metrics }
}

// WithRecordClock overrides the time source.
func WithRecordClock(now func() time.Time) RecordServiceOption {
	return func(s *RecordService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecordPaging sets the default and maximum page sizes.
func WithRecordPaging(defaultSize, maxSize int) RecordServiceOption {
	return func(s *RecordService) {
		if defaultSize > 0 {
			s.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// WithMaxBulkDelete caps the number of ids accepted by BulkDelete.
func WithMaxBulkDelete(limit int) RecordServiceOption {
	return func(s *RecordService) {
		if limit > 0 {
			s.maxBulkDelete = limit
		}
	}
}

// NewRecordService constructs the lifecycle engine.
func NewRecordService(store RecordStore, registry *RecordRegistry, policy *AccessPolicy, logger *zap.Logger, opts ...RecordServiceOption) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewAccessPolicy(nil)
	}
	svc := &RecordService{
		store:           store,
		registry:        registry,
		policy:          policy,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
		defaultPageSize: 20,
		maxPageSize:     100,
		maxBulkDelete:   100,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates the payload and stores a new pending record owned by the actor.
func (s *RecordService) Create(ctx context.Context, kind models.RecordKind, raw json.RawMessage, actor *models.JWTClaims) (*models.Record, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.registry.Definition(kind); err != nil {
		return nil, err
	}
	if !s.policy.CanCreate(actor.Role) {
		s.observe(kind, actionCreate, TransitionResultRejected)
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only students may submit records")
	}
	payload, err := s.registry.Decode(ctx, kind, raw)
	if err != nil {
		s.observe(kind, actionCreate, TransitionResultRejected)
		return nil, err
	}
	now := s.now()
	rec := &models.Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   actor.UserID,
		Payload:   payload,
		Status:    models.RecordStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.observe(kind, actionCreate, TransitionResultError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}
	s.afterMutation(ctx, kind, actionCreate, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRecordCreate,
		Resource:   string(kind),
		ResourceID: &rec.ID,
		NewValues:  rec.Payload,
	})
	return rec, nil
}

// Update replaces the payload of a pending record owned by the actor.
func (s *RecordService) Update(ctx context.Context, kind models.RecordKind, id string, raw json.RawMessage, actor *models.JWTClaims) (*models.Record, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	current, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.ownerGuard(actor, current); err != nil {
		s.observe(kind, actionUpdate, TransitionResultRejected)
		return nil, err
	}
	payload, err := s.registry.Decode(ctx, kind, raw)
	if err != nil {
		s.observe(kind, actionUpdate, TransitionResultRejected)
		return nil, err
	}
	edit := models.RecordEdit{
		Kind:      kind,
		ID:        id,
		OwnerID:   actor.UserID,
		Payload:   payload,
		UpdatedAt: s.now(),
	}
	if err := s.store.UpdatePending(ctx, edit); err != nil {
		return nil, s.conditionalFailure(ctx, kind, id, actionUpdate, err)
	}
	oldPayload := current.Payload
	updated := current.Clone()
	updated.Payload = payload
	updated.UpdatedAt = edit.UpdatedAt
	s.afterMutation(ctx, kind, actionUpdate, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRecordUpdate,
		Resource:   string(kind),
		ResourceID: &updated.ID,
		OldValues:  oldPayload,
		NewValues:  payload,
	})
	return updated, nil
}

// Delete removes a pending record owned by the actor.
func (s *RecordService) Delete(ctx context.Context, kind models.RecordKind, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	current, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.ownerGuard(actor, current); err != nil {
		s.observe(kind, actionDelete, TransitionResultRejected)
		return err
	}
	if err := s.store.DeletePending(ctx, kind, id, actor.UserID); err != nil {
		return s.conditionalFailure(ctx, kind, id, actionDelete, err)
	}
	s.afterMutation(ctx, kind, actionDelete, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRecordDelete,
		Resource:   string(kind),
		ResourceID: &current.ID,
		OldValues:  current.Payload,
	})
	return nil
}

// AdminDelete removes a record regardless of its status.
func (s *RecordService) AdminDelete(ctx context.Context, kind models.RecordKind, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if _, err := s.registry.Definition(kind); err != nil {
		return err
	}
	current, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if !s.policy.CanMutate(actor, current, true) {
		s.observe(kind, actionAdminDelete, TransitionResultRejected)
		return appErrors.Clone(appErrors.ErrNotAuthorized, "only admins may delete records of other users")
	}
	deleted, err := s.store.DeleteMany(ctx, kind, []string{id})
	if err != nil {
		s.observe(kind, actionAdminDelete, TransitionResultError)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}
	if deleted == 0 {
		return appErrors.ErrNotFound
	}
	s.afterMutation(ctx, kind, actionAdminDelete, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRecordAdminPurge,
		Resource:   string(kind),
		ResourceID: &current.ID,
		OldValues:  current.Payload,
	})
	return nil
}

// BulkDelete removes a batch of records regardless of status and reports how many existed.
func (s *RecordService) BulkDelete(ctx context.Context, kind models.RecordKind, ids []string, actor *models.JWTClaims) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if _, err := s.registry.Definition(kind); err != nil {
		return 0, err
	}
	if !s.policy.CanPurge(actor.Role) {
		s.observe(kind, actionBulkDelete, TransitionResultRejected)
		return 0, appErrors.Clone(appErrors.ErrNotAuthorized, "only admins may bulk delete records")
	}
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "ids must contain at least one id")
	}
	if len(unique) > s.maxBulkDelete {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d ids may be deleted at once", s.maxBulkDelete))
	}
	deleted, err := s.store.DeleteMany(ctx, kind, unique)
	if err != nil {
		s.observe(kind, actionBulkDelete, TransitionResultError)
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete records")
	}
	idsJSON, _ := json.Marshal(unique)
	s.afterMutation(ctx, kind, actionBulkDelete, &models.AuditLog{
		UserID:    &actor.UserID,
		Action:    models.AuditActionRecordAdminPurge,
		Resource:  string(kind),
		OldValues: idsJSON,
	})
	return deleted, nil
}

// Decide approves or rejects a pending record. Exactly one concurrent decision wins.
func (s *RecordService) Decide(ctx context.Context, kind models.RecordKind, id string, outcome models.RecordStatus, comments string, actor *models.JWTClaims) (*models.Record, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.registry.Definition(kind); err != nil {
		return nil, err
	}
	if !s.policy.CanReview(actor.Role, kind) {
		s.observe(kind, actionDecide, TransitionResultRejected)
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "role may not review this record kind")
	}
	if outcome != models.RecordStatusApproved && outcome != models.RecordStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be APPROVED or REJECTED")
	}
	current, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.RecordStatusPending {
		s.observe(kind, actionDecide, TransitionResultRejected)
		return nil, appErrors.ErrInvalidState
	}
	decision := models.RecordDecision{
		Kind:       kind,
		ID:         id,
		Outcome:    outcome,
		ReviewerID: actor.UserID,
		Comments:   optionalString(comments),
		DecidedAt:  s.now(),
	}
	if err := s.store.Decide(ctx, decision); err != nil {
		return nil, s.conditionalFailure(ctx, kind, id, actionDecide, err)
	}
	decided := current.Clone()
	decided.Status = outcome
	decided.ReviewerID = &decision.ReviewerID
	decided.ReviewComments = decision.Comments
	decided.DecidedAt = &decision.DecidedAt
	decided.UpdatedAt = decision.DecidedAt

	action := models.AuditActionRecordApprove
	if outcome == models.RecordStatusRejected {
		action = models.AuditActionRecordReject
	}
	oldState, _ := json.Marshal(map[string]models.RecordStatus{"status": current.Status})
	newState, _ := json.Marshal(map[string]interface{}{"status": outcome, "comments": decision.Comments})
	s.afterMutation(ctx, kind, actionDecide, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   string(kind),
		ResourceID: &decided.ID,
		OldValues:  oldState,
		NewValues:  newState,
	})
	return decided, nil
}

// Get returns the record when the actor may view it. Invisible records are reported as not found.
func (s *RecordService) Get(ctx context.Context, kind models.RecordKind, id string, actor *models.JWTClaims) (*models.Record, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(actor, rec) {
		return nil, appErrors.ErrNotFound
	}
	return rec, nil
}

// ListForOwner returns the owner's records newest first. A nil kind merges all kinds.
func (s *RecordService) ListForOwner(ctx context.Context, ownerID string, kind *models.RecordKind, page dto.RecordPage) (*dto.RecordList, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	kinds, err := s.resolveKinds(kind)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, kinds, models.RecordFilter{OwnerID: ownerID}, page)
}

// ListPendingForReview returns pending records of the kinds the actor reviews.
func (s *RecordService) ListPendingForReview(ctx context.Context, kind *models.RecordKind, actor *models.JWTClaims, page dto.RecordPage) (*dto.RecordList, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	kinds, err := s.resolveKinds(kind)
	if err != nil {
		return nil, err
	}
	reviewable := make([]models.RecordKind, 0, len(kinds))
	for _, k := range kinds {
		if s.policy.CanReview(actor.Role, k) {
			reviewable = append(reviewable, k)
		}
	}
	if len(reviewable) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "role may not review records")
	}
	return s.list(ctx, reviewable, models.RecordFilter{Status: []models.RecordStatus{models.RecordStatusPending}}, page)
}

func (s *RecordService) list(ctx context.Context, kinds []models.RecordKind, base models.RecordFilter, page dto.RecordPage) (*dto.RecordList, error) {
	size := page.PageSize
	if size <= 0 {
		size = s.defaultPageSize
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}
	number := page.Page
	if number <= 0 {
		number = 1
	}
	// offset+size must stay representable, otherwise the merged window slices out of bounds
	if number > math.MaxInt/size {
		return nil, appErrors.Clone(appErrors.ErrValidation, "page is out of range")
	}
	offset := (number - 1) * size

	if len(kinds) == 1 {
		filter := base
		filter.Kind = kinds[0]
		filter.Limit = size
		filter.Offset = offset
		items, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
		}
		return &dto.RecordList{Items: items, Pagination: &models.Pagination{Page: number, PageSize: size, TotalCount: total}}, nil
	}

	// each kind contributes at most offset+size rows to the merged window
	merged := make([]models.Record, 0, size)
	total := 0
	for _, k := range kinds {
		filter := base
		filter.Kind = k
		filter.Limit = offset + size
		items, count, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
		}
		merged = append(merged, items...)
		total += count
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if offset >= len(merged) {
		merged = merged[:0]
	} else {
		end := offset + size
		if end > len(merged) {
			end = len(merged)
		}
		merged = merged[offset:end]
	}
	return &dto.RecordList{Items: merged, Pagination: &models.Pagination{Page: number, PageSize: size, TotalCount: total}}, nil
}

func (s *RecordService) resolveKinds(kind *models.RecordKind) ([]models.RecordKind, error) {
	if kind == nil {
		return s.registry.Kinds(), nil
	}
	if _, err := s.registry.Definition(*kind); err != nil {
		return nil, err
	}
	return []models.RecordKind{*kind}, nil
}

func (s *RecordService) load(ctx context.Context, kind models.RecordKind, id string) (*models.Record, error) {
	if _, err := s.registry.Definition(kind); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.ErrNotFound
	}
	rec, err := s.store.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	rec.Kind = kind
	return rec, nil
}

// ownerGuard checks ownership before state so a stranger never learns the record's status.
func (s *RecordService) ownerGuard(actor *models.JWTClaims, rec *models.Record) error {
	if rec.OwnerID != actor.UserID {
		return appErrors.ErrNotOwner
	}
	if !s.policy.CanMutate(actor, rec, false) {
		return appErrors.ErrInvalidState
	}
	return nil
}

// conditionalFailure classifies a conditional write that matched no row by re-reading the record.
func (s *RecordService) conditionalFailure(ctx context.Context, kind models.RecordKind, id, action string, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		s.observe(kind, action, TransitionResultError)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s record", strings.ReplaceAll(action, "_", " ")))
	}
	s.observe(kind, action, TransitionResultRejected)
	if _, loadErr := s.store.GetByID(ctx, kind, id); loadErr != nil {
		if errors.Is(loadErr, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(loadErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return appErrors.ErrInvalidState
}

func (s *RecordService) afterMutation(ctx context.Context, kind models.RecordKind, action string, log *models.AuditLog) {
	s.observe(kind, action, TransitionResultOK)
	if s.cache != nil {
		if err := s.cache.InvalidateKind(ctx, kind); err != nil {
			s.logger.Warn("failed to invalidate record statistics", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	s.emitAudit(ctx, log)
}

func (s *RecordService) observe(kind models.RecordKind, action, result string) {
	s.metrics.ObserveTransition(kind, action, result)
}

func (s *RecordService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	stampOrigin(ctx, log, "record-service")
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

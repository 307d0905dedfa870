package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/models"
	"github.com/noah-isme/campus-records-api/internal/repository"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

type recordAuditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (s *recordAuditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *recordAuditStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

// steppingClock returns strictly increasing instants so listing order is deterministic.
func steppingClock() func() time.Time {
	var tick int64
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		n := atomic.AddInt64(&tick, 1)
		return base.Add(time.Duration(n) * time.Minute)
	}
}

var (
	studentA = &models.JWTClaims{UserID: "student-a", Role: models.RoleStudent}
	studentB = &models.JWTClaims{UserID: "student-b", Role: models.RoleStudent}
	tutor    = &models.JWTClaims{UserID: "tutor-1", Role: models.RoleTutor}
	admin    = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
)

const projectPayload = `{"title":"Campus Navigator","teamSize":3,"domain":"Mobile"}`

func newTestRecordService(t *testing.T, opts ...RecordServiceOption) (*RecordService, *repository.MemoryRecordStore, *recordAuditStub) {
	t.Helper()
	store := repository.NewMemoryRecordStore()
	audit := &recordAuditStub{}
	opts = append([]RecordServiceOption{WithRecordAudit(audit), WithRecordClock(steppingClock())}, opts...)
	svc := NewRecordService(store, newTestRegistry(), NewAccessPolicy(nil), nil, opts...)
	return svc, store, audit
}

func requireCode(t *testing.T, err error, sentinel *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, sentinel), "expected %s, got %v", sentinel.Code, err)
}

func TestRecordServiceProjectLifecycle(t *testing.T) {
	svc, _, audit := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)
	require.Equal(t, models.RecordStatusPending, rec.Status)
	require.Equal(t, studentA.UserID, rec.OwnerID)
	require.Nil(t, rec.ReviewerID)

	updated, err := svc.Update(ctx, models.KindProject, rec.ID, json.RawMessage(`{"title":"Campus Navigator v2","teamSize":4}`), studentA)
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"Campus Navigator v2","teamSize":4}`, string(updated.Payload))

	decided, err := svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "  well done ", tutor)
	require.NoError(t, err)
	require.Equal(t, models.RecordStatusApproved, decided.Status)
	require.NotNil(t, decided.ReviewerID)
	require.Equal(t, tutor.UserID, *decided.ReviewerID)
	require.NotNil(t, decided.ReviewComments)
	require.Equal(t, "well done", *decided.ReviewComments)
	require.NotNil(t, decided.DecidedAt)

	stored, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
	require.NoError(t, err)
	require.Equal(t, models.RecordStatusApproved, stored.Status)

	require.Equal(t, []string{
		models.AuditActionRecordCreate,
		models.AuditActionRecordUpdate,
		models.AuditActionRecordApprove,
	}, audit.actions())

	stats := NewStatisticsService(svc.store, svc.registry, nil, nil, nil, 0)
	summary, _, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ApprovedCount)
	require.Equal(t, 1, summary.TotalCount)
}

func TestRecordServiceTerminalRecordsAreFrozen(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusRejected, "missing proof", tutor)
	require.NoError(t, err)

	_, err = svc.Update(ctx, models.KindProject, rec.ID, json.RawMessage(projectPayload), studentA)
	requireCode(t, err, appErrors.ErrInvalidState)

	err = svc.Delete(ctx, models.KindProject, rec.ID, studentA)
	requireCode(t, err, appErrors.ErrInvalidState)

	_, err = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", admin)
	requireCode(t, err, appErrors.ErrInvalidState)

	stored, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
	require.NoError(t, err)
	require.Equal(t, models.RecordStatusRejected, stored.Status)
	require.Equal(t, tutor.UserID, *stored.ReviewerID)
}

func TestRecordServiceConcurrentDecisionsHaveOneWinner(t *testing.T) {
	svc, _, audit := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	const reviewers = 16
	var (
		wg       sync.WaitGroup
		winners  int32
		conflict int32
	)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := models.RecordStatusApproved
			if i%2 == 1 {
				outcome = models.RecordStatusRejected
			}
			_, err := svc.Decide(ctx, models.KindProject, rec.ID, outcome, "", tutor)
			switch {
			case err == nil:
				atomic.AddInt32(&winners, 1)
			case errors.Is(err, appErrors.ErrInvalidState):
				atomic.AddInt32(&conflict, 1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), winners)
	require.Equal(t, int32(reviewers-1), conflict)
	require.Len(t, audit.actions(), 2)
}

func TestRecordServiceConcurrentDeleteAndDecide(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var deleteErr, decideErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		deleteErr = svc.Delete(ctx, models.KindProject, rec.ID, studentA)
	}()
	go func() {
		defer wg.Done()
		_, decideErr = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", tutor)
	}()
	wg.Wait()

	if deleteErr == nil {
		require.Error(t, decideErr)
		require.True(t, errors.Is(decideErr, appErrors.ErrNotFound) || errors.Is(decideErr, appErrors.ErrInvalidState))
		_, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
		requireCode(t, err, appErrors.ErrNotFound)
		return
	}
	require.NoError(t, decideErr)
	requireCode(t, deleteErr, appErrors.ErrInvalidState)
}

func TestRecordServiceAuthorization(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), tutor)
	requireCode(t, err, appErrors.ErrNotAuthorized)

	_, err = svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), nil)
	requireCode(t, err, appErrors.ErrUnauthorized)

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	_, err = svc.Update(ctx, models.KindProject, rec.ID, json.RawMessage(projectPayload), studentB)
	requireCode(t, err, appErrors.ErrNotOwner)

	err = svc.Delete(ctx, models.KindProject, rec.ID, studentB)
	requireCode(t, err, appErrors.ErrNotOwner)

	_, err = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", studentA)
	requireCode(t, err, appErrors.ErrNotAuthorized)

	_, err = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatus("ARCHIVED"), "", tutor)
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.Get(ctx, models.KindProject, rec.ID, studentB)
	requireCode(t, err, appErrors.ErrNotFound)

	viewed, err := svc.Get(ctx, models.KindProject, rec.ID, tutor)
	require.NoError(t, err)
	require.Equal(t, rec.ID, viewed.ID)

	err = svc.AdminDelete(ctx, models.KindProject, rec.ID, tutor)
	requireCode(t, err, appErrors.ErrNotAuthorized)

	_, err = svc.Decide(ctx, models.KindProject, "missing", models.RecordStatusApproved, "", tutor)
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestRecordServiceCustomReviewerRoles(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	policy := NewAccessPolicy(map[models.RecordKind][]models.UserRole{
		models.KindEducationProfile: {models.RoleAdmin},
	})
	svc := NewRecordService(store, newTestRegistry(), policy, nil)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindEducationProfile,
		json.RawMessage(`{"level":"HSC","institution":"State School","yearOfPassing":2021,"cgpa":8.4}`), studentA)
	require.NoError(t, err)

	_, err = svc.Decide(ctx, models.KindEducationProfile, rec.ID, models.RecordStatusApproved, "", tutor)
	requireCode(t, err, appErrors.ErrNotAuthorized)

	_, err = svc.Decide(ctx, models.KindEducationProfile, rec.ID, models.RecordStatusApproved, "", admin)
	require.NoError(t, err)
}

func TestRecordServiceValidationLeavesNoRecord(t *testing.T) {
	svc, store, audit := newTestRecordService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.KindExtracurricularActivity,
		json.RawMessage(`{"activityName":"Chess","status":"Winning","fromDate":"2024-02-01","toDate":"2024-02-02"}`), studentA)
	requireCode(t, err, appErrors.ErrValidation)

	all, err := store.Snapshot(ctx, models.KindExtracurricularActivity)
	require.NoError(t, err)
	require.Empty(t, all)
	require.Empty(t, audit.actions())
}

func TestRecordServiceGetIsIdempotent(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	first, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
	require.NoError(t, err)
	second, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRecordServiceAdminDeleteIgnoresStatus(t *testing.T) {
	svc, _, audit := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", tutor)
	require.NoError(t, err)

	require.NoError(t, svc.AdminDelete(ctx, models.KindProject, rec.ID, admin))
	_, err = svc.Get(ctx, models.KindProject, rec.ID, admin)
	requireCode(t, err, appErrors.ErrNotFound)

	err = svc.AdminDelete(ctx, models.KindProject, rec.ID, admin)
	requireCode(t, err, appErrors.ErrNotFound)
	require.Contains(t, audit.actions(), models.AuditActionRecordAdminPurge)
}

func TestRecordServiceBulkDelete(t *testing.T) {
	svc, store, _ := newTestRecordService(t, WithMaxBulkDelete(3))
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	_, err := svc.Decide(ctx, models.KindProject, ids[0], models.RecordStatusApproved, "", tutor)
	require.NoError(t, err)

	_, err = svc.BulkDelete(ctx, models.KindProject, []string{"a", "b", "c", "d"}, admin)
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.BulkDelete(ctx, models.KindProject, []string{" ", ""}, admin)
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.BulkDelete(ctx, models.KindProject, ids, tutor)
	requireCode(t, err, appErrors.ErrNotAuthorized)

	deleted, err := svc.BulkDelete(ctx, models.KindProject, []string{ids[0], ids[1], ids[0], "missing"}, admin)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	remaining, err := store.Snapshot(ctx, models.KindProject)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, ids[2], remaining[0].ID)
}

func TestRecordServiceListsMergeKindsNewestFirst(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)
	publication, err := svc.Create(ctx, models.KindPublication,
		json.RawMessage(`{"title":"On Graphs","publicationType":"Journal"}`), studentA)
	require.NoError(t, err)
	course, err := svc.Create(ctx, models.KindNonCGPACourse,
		json.RawMessage(`{"categoryId":"value-added","courseName":"Ethics","fromDate":"2024-03-01","toDate":"2024-03-02"}`), studentA)
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentB)
	require.NoError(t, err)

	mine, err := svc.ListForOwner(ctx, studentA.UserID, nil, dto.RecordPage{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 3, mine.Pagination.TotalCount)
	require.Len(t, mine.Items, 2)
	require.Equal(t, course.ID, mine.Items[0].ID)
	require.Equal(t, publication.ID, mine.Items[1].ID)

	next, err := svc.ListForOwner(ctx, studentA.UserID, nil, dto.RecordPage{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	require.Equal(t, project.ID, next.Items[0].ID)

	kind := models.KindProject
	onlyProjects, err := svc.ListForOwner(ctx, studentA.UserID, &kind, dto.RecordPage{})
	require.NoError(t, err)
	require.Len(t, onlyProjects.Items, 1)

	_, err = svc.Decide(ctx, models.KindProject, project.ID, models.RecordStatusApproved, "", tutor)
	require.NoError(t, err)

	pending, err := svc.ListPendingForReview(ctx, nil, tutor, dto.RecordPage{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 3, pending.Pagination.TotalCount)
	for _, rec := range pending.Items {
		require.Equal(t, models.RecordStatusPending, rec.Status)
	}

	_, err = svc.ListPendingForReview(ctx, nil, studentA, dto.RecordPage{})
	requireCode(t, err, appErrors.ErrNotAuthorized)
}

// beforeUpdateStore runs beforeUpdate once between the service's read and its conditional write.
type beforeUpdateStore struct {
	RecordStore
	beforeUpdate func()
}

func (s *beforeUpdateStore) UpdatePending(ctx context.Context, edit models.RecordEdit) error {
	if fn := s.beforeUpdate; fn != nil {
		s.beforeUpdate = nil
		fn()
	}
	return s.RecordStore.UpdatePending(ctx, edit)
}

func TestRecordServiceDecisionBetweenUpdateReadAndWrite(t *testing.T) {
	store := &beforeUpdateStore{RecordStore: repository.NewMemoryRecordStore()}
	audit := &recordAuditStub{}
	svc := NewRecordService(store, newTestRegistry(), NewAccessPolicy(nil), nil, WithRecordAudit(audit), WithRecordClock(steppingClock()))
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	store.beforeUpdate = func() {
		_, decideErr := svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", tutor)
		require.NoError(t, decideErr)
	}
	_, err = svc.Update(ctx, models.KindProject, rec.ID, json.RawMessage(`{"title":"Late edit","teamSize":2}`), studentA)
	requireCode(t, err, appErrors.ErrInvalidState)

	stored, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
	require.NoError(t, err)
	require.Equal(t, models.RecordStatusApproved, stored.Status)
	require.JSONEq(t, projectPayload, string(stored.Payload))
	require.NotContains(t, audit.actions(), models.AuditActionRecordUpdate)
}

func TestRecordServiceConcurrentUpdateAndDecide(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()
	const edited = `{"title":"Campus Navigator v2","teamSize":5}`

	for i := 0; i < 25; i++ {
		rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var updateErr, decideErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, updateErr = svc.Update(ctx, models.KindProject, rec.ID, json.RawMessage(edited), studentA)
		}()
		go func() {
			defer wg.Done()
			_, decideErr = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", tutor)
		}()
		wg.Wait()

		require.NoError(t, decideErr)
		stored, err := svc.Get(ctx, models.KindProject, rec.ID, studentA)
		require.NoError(t, err)
		require.Equal(t, models.RecordStatusApproved, stored.Status)
		if updateErr == nil {
			// the edit committed while the record was still pending
			require.JSONEq(t, edited, string(stored.Payload))
			continue
		}
		requireCode(t, updateErr, appErrors.ErrInvalidState)
		require.JSONEq(t, projectPayload, string(stored.Payload))
	}
}

func TestRecordServiceRejectsOverflowingPage(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	huge := dto.RecordPage{Page: 100000000000000000, PageSize: 100}
	_, err = svc.ListForOwner(ctx, studentA.UserID, nil, huge)
	requireCode(t, err, appErrors.ErrValidation)

	kind := models.KindProject
	_, err = svc.ListForOwner(ctx, studentA.UserID, &kind, huge)
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.ListPendingForReview(ctx, nil, tutor, huge)
	requireCode(t, err, appErrors.ErrValidation)

	beyond, err := svc.ListForOwner(ctx, studentA.UserID, nil, dto.RecordPage{Page: 1000, PageSize: 100})
	require.NoError(t, err)
	require.Empty(t, beyond.Items)
	require.Equal(t, 1, beyond.Pagination.TotalCount)
}

func TestRecordServiceAdminDeleteGoesThroughPolicy(t *testing.T) {
	svc, _, _ := newTestRecordService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	err = svc.AdminDelete(ctx, models.KindProject, rec.ID, studentA)
	requireCode(t, err, appErrors.ErrNotAuthorized)
	err = svc.AdminDelete(ctx, models.KindProject, "missing", admin)
	requireCode(t, err, appErrors.ErrNotFound)

	_, err = svc.Get(ctx, models.KindProject, rec.ID, studentA)
	require.NoError(t, err)
	require.NoError(t, svc.AdminDelete(ctx, models.KindProject, rec.ID, admin))
}

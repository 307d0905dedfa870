package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

type cacheRepoStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, pattern)
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *cacheRepoStub) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if raw, ok := c.entries[key]; ok {
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, err
		}
	}
	n++
	raw, err := json.Marshal(n)
	if err != nil {
		return 0, err
	}
	c.entries[key] = raw
	return n, nil
}

// snapshotHook runs afterSnapshot once, after the snapshot was read but before it is returned.
type snapshotHook struct {
	inner         recordSnapshotter
	afterSnapshot func()
}

func (h *snapshotHook) Snapshot(ctx context.Context, kind models.RecordKind) ([]models.Record, error) {
	records, err := h.inner.Snapshot(ctx, kind)
	if fn := h.afterSnapshot; fn != nil {
		h.afterSnapshot = nil
		fn()
	}
	return records, err
}

func seedHackathons(t *testing.T, svc *RecordService) {
	t.Helper()
	ctx := context.Background()
	submit := func(actor *models.JWTClaims, rounds, level int, approve bool) {
		raw, err := json.Marshal(map[string]interface{}{
			"eventName":    "HackIndia",
			"organizer":    "IEEE",
			"eventDate":    "2024-04-12",
			"mode":         "Online",
			"rounds":       rounds,
			"levelCleared": level,
		})
		require.NoError(t, err)
		rec, err := svc.Create(ctx, models.KindHackathonEvent, raw, actor)
		require.NoError(t, err)
		if approve {
			_, err = svc.Decide(ctx, models.KindHackathonEvent, rec.ID, models.RecordStatusApproved, "", tutor)
			require.NoError(t, err)
		}
	}
	// student-b and student-c tie on levelCleared; student-a has a higher pending entry
	submit(studentA, 3, 2, true)
	submit(studentA, 5, 9, false)
	submit(studentB, 4, 4, true)
	submit(&models.JWTClaims{UserID: "student-c", Role: models.RoleStudent}, 6, 4, true)
}

func TestStatisticsTopPerformersTieBreak(t *testing.T) {
	svc, store, _ := newTestRecordService(t)
	seedHackathons(t, svc)
	stats := NewStatisticsService(store, svc.registry, nil, nil, nil, 0)
	ctx := context.Background()

	top, cached, err := stats.TopPerformers(ctx, models.KindHackathonEvent, "levelCleared", 0)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, []models.Performer{
		{OwnerID: "student-b", Value: 4},
		{OwnerID: "student-c", Value: 4},
		{OwnerID: "student-a", Value: 2},
	}, top)

	rounds, _, err := stats.TopPerformers(ctx, models.KindHackathonEvent, "rounds", 1)
	require.NoError(t, err)
	require.Equal(t, []models.Performer{{OwnerID: "student-c", Value: 6}}, rounds)

	counts, _, err := stats.TopPerformers(ctx, models.KindHackathonEvent, "", 10)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	require.Equal(t, "student-a", counts[0].OwnerID)

	_, _, err = stats.TopPerformers(ctx, models.KindHackathonEvent, "prizeMoney", 10)
	requireCode(t, err, appErrors.ErrValidation)
}

func TestStatisticsByLevelReturnsApprovedOnly(t *testing.T) {
	svc, store, _ := newTestRecordService(t)
	seedHackathons(t, svc)
	stats := NewStatisticsService(store, svc.registry, nil, nil, nil, 0)
	ctx := context.Background()

	level9, _, err := stats.ByLevel(ctx, models.KindHackathonEvent, "9")
	require.NoError(t, err)
	require.Empty(t, level9)

	level4, _, err := stats.ByLevel(ctx, models.KindHackathonEvent, "4")
	require.NoError(t, err)
	require.Len(t, level4, 2)

	_, _, err = stats.ByLevel(ctx, models.KindProject, "1")
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, models.KindExtracurricularActivity,
		json.RawMessage(`{"activityName":"Chess","status":"Participated","level":"National","fromDate":"2024-02-01","toDate":"2024-02-01"}`), studentA)
	require.NoError(t, err)
	national, _, err := stats.ByLevel(ctx, models.KindExtracurricularActivity, "national")
	require.NoError(t, err)
	require.Empty(t, national)
}

func TestStatisticsSumsApprovedBreakdownsAll(t *testing.T) {
	svc, store, _ := newTestRecordService(t)
	ctx := context.Background()

	approved, err := svc.Create(ctx, models.KindExtracurricularActivity,
		json.RawMessage(`{"activityName":"Chess","status":"Winning","prize":"1","category":"Sports","fromDate":"2024-02-01","toDate":"2024-02-03"}`), studentA)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, models.KindExtracurricularActivity, approved.ID, models.RecordStatusApproved, "", tutor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.KindExtracurricularActivity,
		json.RawMessage(`{"activityName":"Dance","status":"Participated","category":"Cultural","fromDate":"2024-03-01","toDate":"2024-03-10"}`), studentA)
	require.NoError(t, err)

	stats := NewStatisticsService(store, svc.registry, nil, nil, nil, 0)
	summary, _, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindExtracurricularActivity)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalCount)
	require.Equal(t, 1, summary.ApprovedCount)
	require.Equal(t, 1, summary.PendingCount)
	require.Equal(t, float64(3), summary.Sums["numberOfDays"])
	require.Equal(t, float64(1), summary.Sums["wins"])
	require.Equal(t, map[string]int{"Sports": 1, "Cultural": 1}, summary.Breakdowns["category"])
	require.Empty(t, summary.Breakdowns["level"])

	empty, _, err := stats.StatisticsFor(ctx, "nobody", models.KindExtracurricularActivity)
	require.NoError(t, err)
	require.Zero(t, empty.TotalCount)

	_, _, err = stats.StatisticsFor(ctx, " ", models.KindExtracurricularActivity)
	requireCode(t, err, appErrors.ErrValidation)
}

func TestStatisticsCacheInvalidatedByTransitions(t *testing.T) {
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc, store, _ := newTestRecordService(t, WithRecordCache(cache))
	stats := NewStatisticsService(store, svc.registry, cache, nil, nil, time.Minute)
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	first, cached, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, first.PendingCount)

	again, cached, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, first.PendingCount, again.PendingCount)

	_, err = svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", tutor)
	require.NoError(t, err)
	require.Contains(t, repo.deletes, "records:project:*")

	fresh, cached, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, fresh.ApprovedCount)
	require.Equal(t, 0, fresh.PendingCount)
}

func TestStatisticsCacheDropsWritesFromBeforeInvalidation(t *testing.T) {
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc, store, _ := newTestRecordService(t, WithRecordCache(cache))
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.KindProject, json.RawMessage(projectPayload), studentA)
	require.NoError(t, err)

	hook := &snapshotHook{inner: store}
	hook.afterSnapshot = func() {
		_, decideErr := svc.Decide(ctx, models.KindProject, rec.ID, models.RecordStatusApproved, "", tutor)
		require.NoError(t, decideErr)
	}
	stats := NewStatisticsService(hook, svc.registry, cache, nil, nil, time.Minute)

	// computed from the pre-decision snapshot and written back after the invalidation
	stale, cached, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, stale.PendingCount)
	require.Equal(t, int64(1), cache.Generation(ctx, models.KindProject))

	fresh, cached, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, fresh.ApprovedCount)
	require.Equal(t, 0, fresh.PendingCount)

	again, cached, err := stats.StatisticsFor(ctx, studentA.UserID, models.KindProject)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 1, again.ApprovedCount)
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

const (
	defaultTopPerformers = 10
	maxTopPerformers     = 100
)

type recordSnapshotter interface {
	Snapshot(ctx context.Context, kind models.RecordKind) ([]models.Record, error)
}

// StatisticsService projects read-only aggregates from a per-call snapshot of one kind.
type StatisticsService struct {
	store    recordSnapshotter
	registry *RecordRegistry
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	ttl      time.Duration
}

// NewStatisticsService constructs the aggregation service. cache may be nil.
func NewStatisticsService(store recordSnapshotter, registry *RecordRegistry, cache *CacheService, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{store: store, registry: registry, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// StatisticsFor summarises one owner's records of a kind. Sums cover approved
// records only; breakdowns count every record the owner holds.
func (s *StatisticsService) StatisticsFor(ctx context.Context, ownerID string, kind models.RecordKind) (*models.RecordStatistics, bool, error) {
	def, err := s.registry.Definition(kind)
	if err != nil {
		return nil, false, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "ownerId is required")
	}

	key := s.cache.RecordKey(ctx, kind, "stats", ownerID)
	var cached models.RecordStatistics
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	records, err := s.snapshot(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	stats := &models.RecordStatistics{
		OwnerID:    ownerID,
		Kind:       kind,
		Sums:       make(map[string]float64, len(def.Metrics)),
		Breakdowns: make(map[string]map[string]int, len(def.Breakdowns)),
	}
	for _, m := range def.Metrics {
		stats.Sums[m.Name] = 0
	}
	for _, b := range def.Breakdowns {
		stats.Breakdowns[b.Name] = map[string]int{}
	}
	for _, rec := range records {
		if rec.OwnerID != ownerID {
			continue
		}
		stats.TotalCount++
		switch rec.Status {
		case models.RecordStatusApproved:
			stats.ApprovedCount++
		case models.RecordStatusPending:
			stats.PendingCount++
		case models.RecordStatusRejected:
			stats.RejectedCount++
		}
		payload, err := s.registry.Parse(kind, rec.Payload)
		if err != nil {
			s.logger.Warn("skip unreadable record payload", zap.String("kind", string(kind)), zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		for _, b := range def.Breakdowns {
			if value := b.Key(payload); value != "" {
				stats.Breakdowns[b.Name][value]++
			}
		}
		if rec.Status != models.RecordStatusApproved {
			continue
		}
		for _, m := range def.Metrics {
			stats.Sums[m.Name] = fold(m.Aggregate, stats.Sums[m.Name], m.Value(payload))
		}
	}

	_ = s.cache.Set(ctx, key, stats, s.ttl)
	return stats, false, nil
}

// TopPerformers ranks owners by an approved-only metric, descending, ties by ownerId ascending.
func (s *StatisticsService) TopPerformers(ctx context.Context, kind models.RecordKind, metric string, limit int) ([]models.Performer, bool, error) {
	def, err := s.registry.Definition(kind)
	if err != nil {
		return nil, false, err
	}
	metric = strings.TrimSpace(metric)
	if metric == "" {
		metric = MetricCount
	}
	var definition MetricDefinition
	if metric != MetricCount {
		var ok bool
		if definition, ok = def.Metric(metric); !ok {
			return nil, false, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("unknown metric %q, expected one of [%s]", metric, strings.Join(def.MetricNames(), " ")))
		}
	}
	if limit <= 0 {
		limit = defaultTopPerformers
	}
	if limit > maxTopPerformers {
		limit = maxTopPerformers
	}

	key := s.cache.RecordKey(ctx, kind, "top", metric, strconv.Itoa(limit))
	var cached []models.Performer
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}

	records, err := s.snapshot(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	totals := make(map[string]float64)
	for _, rec := range records {
		if rec.Status != models.RecordStatusApproved {
			continue
		}
		if metric == MetricCount {
			totals[rec.OwnerID]++
			continue
		}
		payload, err := s.registry.Parse(kind, rec.Payload)
		if err != nil {
			s.logger.Warn("skip unreadable record payload", zap.String("kind", string(kind)), zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		value := definition.Value(payload)
		if current, seen := totals[rec.OwnerID]; seen {
			totals[rec.OwnerID] = fold(definition.Aggregate, current, value)
		} else {
			totals[rec.OwnerID] = value
		}
	}

	performers := make([]models.Performer, 0, len(totals))
	for owner, value := range totals {
		performers = append(performers, models.Performer{OwnerID: owner, Value: value})
	}
	sort.Slice(performers, func(i, j int) bool {
		if performers[i].Value == performers[j].Value {
			return performers[i].OwnerID < performers[j].OwnerID
		}
		return performers[i].Value > performers[j].Value
	})
	if len(performers) > limit {
		performers = performers[:limit]
	}

	_ = s.cache.Set(ctx, key, performers, s.ttl)
	return performers, false, nil
}

// ByLevel lists approved records whose achievement level matches, newest first.
func (s *StatisticsService) ByLevel(ctx context.Context, kind models.RecordKind, level string) ([]models.Record, bool, error) {
	def, err := s.registry.Definition(kind)
	if err != nil {
		return nil, false, err
	}
	if def.Level == nil {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s records have no level", def.Label))
	}
	level = strings.TrimSpace(level)
	if level == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "level is required")
	}

	key := s.cache.RecordKey(ctx, kind, "level", strings.ToLower(level))
	var cached []models.Record
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}

	records, err := s.snapshot(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	matched := make([]models.Record, 0)
	for _, rec := range records {
		if rec.Status != models.RecordStatusApproved {
			continue
		}
		payload, err := s.registry.Parse(kind, rec.Payload)
		if err != nil {
			s.logger.Warn("skip unreadable record payload", zap.String("kind", string(kind)), zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		if strings.EqualFold(def.Level(payload), level) {
			matched = append(matched, rec)
		}
	}

	_ = s.cache.Set(ctx, key, matched, s.ttl)
	return matched, false, nil
}

func (s *StatisticsService) snapshot(ctx context.Context, kind models.RecordKind) ([]models.Record, error) {
	start := time.Now()
	records, err := s.store.Snapshot(ctx, kind)
	s.metrics.ObserveDBQuery("records_snapshot", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}
	return records, nil
}

func fold(mode AggregateMode, acc, value float64) float64 {
	if mode == AggregateMax {
		if value > acc {
			return value
		}
		return acc
	}
	return acc + value
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/middleware"
	"github.com/noah-isme/campus-records-api/internal/models"
	"github.com/noah-isme/campus-records-api/internal/service"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
	"github.com/noah-isme/campus-records-api/pkg/response"
)

const (
	contextKindKey  = "record_kind"
	maxPayloadBytes = 1 << 20
)

type recordService interface {
	Create(ctx context.Context, kind models.RecordKind, raw json.RawMessage, actor *models.JWTClaims) (*models.Record, error)
	Update(ctx context.Context, kind models.RecordKind, id string, raw json.RawMessage, actor *models.JWTClaims) (*models.Record, error)
	Delete(ctx context.Context, kind models.RecordKind, id string, actor *models.JWTClaims) error
	AdminDelete(ctx context.Context, kind models.RecordKind, id string, actor *models.JWTClaims) error
	BulkDelete(ctx context.Context, kind models.RecordKind, ids []string, actor *models.JWTClaims) (int64, error)
	Decide(ctx context.Context, kind models.RecordKind, id string, outcome models.RecordStatus, comments string, actor *models.JWTClaims) (*models.Record, error)
	Get(ctx context.Context, kind models.RecordKind, id string, actor *models.JWTClaims) (*models.Record, error)
	ListForOwner(ctx context.Context, ownerID string, kind *models.RecordKind, page dto.RecordPage) (*dto.RecordList, error)
	ListPendingForReview(ctx context.Context, kind *models.RecordKind, actor *models.JWTClaims, page dto.RecordPage) (*dto.RecordList, error)
}

type statisticsService interface {
	StatisticsFor(ctx context.Context, ownerID string, kind models.RecordKind) (*models.RecordStatistics, bool, error)
	TopPerformers(ctx context.Context, kind models.RecordKind, metric string, limit int) ([]models.Performer, bool, error)
	ByLevel(ctx context.Context, kind models.RecordKind, level string) ([]models.Record, bool, error)
}

type exportService interface {
	Export(ctx context.Context, kind models.RecordKind, format dto.ExportFormat, actor *models.JWTClaims) (*service.ExportResult, error)
}

type reviewPolicy interface {
	CanReview(role models.UserRole, kind models.RecordKind) bool
}

// RecordHandler exposes the record lifecycle for every kind.
type RecordHandler struct {
	records recordService
	stats   statisticsService
	exports exportService
	policy  reviewPolicy
}

// NewRecordHandler constructs the handler. exports may be nil when export is disabled.
func NewRecordHandler(records recordService, stats statisticsService, exports exportService, policy reviewPolicy) *RecordHandler {
	return &RecordHandler{records: records, stats: stats, exports: exports, policy: policy}
}

// BindKind pins the record kind for every route in a per-kind group.
func BindKind(kind models.RecordKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKindKey, kind)
		c.Next()
	}
}

// Create godoc
// @Summary Submit a record for verification
// @Tags Records
// @Accept json
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param payload body object true "Kind-specific payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /{kind}/add [post]
func (h *RecordHandler) Create(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	raw, ok := readPayload(c)
	if !ok {
		return
	}
	rec, err := h.records.Create(c.Request.Context(), kind, raw, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rec)
}

// Update godoc
// @Summary Edit a pending record
// @Tags Records
// @Accept json
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param id path string true "Record ID"
// @Param payload body object true "Kind-specific payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{kind}/update/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	raw, ok := readPayload(c)
	if !ok {
		return
	}
	rec, err := h.records.Update(c.Request.Context(), kind, c.Param("id"), raw, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// Delete godoc
// @Summary Withdraw a pending record
// @Tags Records
// @Param kind path string true "Record kind slug"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /{kind}/delete/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), kind, c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Approve godoc
// @Summary Approve a pending record
// @Tags Review
// @Accept json
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param id path string true "Record ID"
// @Param payload body dto.DecideRecordRequest false "Reviewer comments"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{kind}/approve/{id} [put]
func (h *RecordHandler) Approve(c *gin.Context) {
	h.decide(c, models.RecordStatusApproved)
}

// Reject godoc
// @Summary Reject a pending record
// @Tags Review
// @Accept json
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param id path string true "Record ID"
// @Param payload body dto.DecideRecordRequest false "Reviewer comments"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{kind}/reject/{id} [put]
func (h *RecordHandler) Reject(c *gin.Context) {
	h.decide(c, models.RecordStatusRejected)
}

func (h *RecordHandler) decide(c *gin.Context, outcome models.RecordStatus) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	var req dto.DecideRecordRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
			return
		}
	}
	rec, err := h.records.Decide(c.Request.Context(), kind, c.Param("id"), outcome, req.Comments, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// Get godoc
// @Summary Fetch a single record
// @Tags Records
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{kind}/records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	rec, err := h.records.Get(c.Request.Context(), kind, c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// MyRecords godoc
// @Summary List the caller's records of a kind
// @Tags Records
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /{kind}/my-records [get]
func (h *RecordHandler) MyRecords(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	h.respondList(c, func(page dto.RecordPage) (*dto.RecordList, error) {
		return h.records.ListForOwner(c.Request.Context(), claims.UserID, &kind, page)
	})
}

// Pending godoc
// @Summary List pending records of a kind awaiting review
// @Tags Review
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /{kind}/pending [get]
func (h *RecordHandler) Pending(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	h.respondList(c, func(page dto.RecordPage) (*dto.RecordList, error) {
		return h.records.ListPendingForReview(c.Request.Context(), &kind, claims, page)
	})
}

// AllMine godoc
// @Summary List the caller's records across all kinds
// @Tags Records
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /records/mine [get]
func (h *RecordHandler) AllMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.respondList(c, func(page dto.RecordPage) (*dto.RecordList, error) {
		return h.records.ListForOwner(c.Request.Context(), claims.UserID, nil, page)
	})
}

// AllPending godoc
// @Summary List pending records across every reviewable kind
// @Tags Review
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /records/pending [get]
func (h *RecordHandler) AllPending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.respondList(c, func(page dto.RecordPage) (*dto.RecordList, error) {
		return h.records.ListPendingForReview(c.Request.Context(), nil, claims, page)
	})
}

// Statistics godoc
// @Summary Aggregate statistics for a student's records of a kind
// @Tags Statistics
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param ownerId query string false "Student ID (reviewers only)"
// @Success 200 {object} response.Envelope
// @Router /{kind}/statistics [get]
func (h *RecordHandler) Statistics(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	ownerID := claims.UserID
	if requested := strings.TrimSpace(c.Query("ownerId")); requested != "" && requested != claims.UserID {
		if !h.policy.CanReview(claims.Role, kind) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotAuthorized, "only reviewers may view another student's statistics"))
			return
		}
		ownerID = requested
	}
	stats, cacheHit, err := h.stats.StatisticsFor(c.Request.Context(), ownerID, kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// TopPerformers godoc
// @Summary Leaderboard over approved records
// @Tags Statistics
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param metric query string false "Metric name, defaults to count"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /{kind}/top [get]
func (h *RecordHandler) TopPerformers(c *gin.Context) {
	kind, _, ok := h.scope(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	performers, cacheHit, err := h.stats.TopPerformers(c.Request.Context(), kind, c.Query("metric"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, performers, nil, middleware.ExtractMeta(c))
}

// ByLevel godoc
// @Summary Approved records at an achievement level
// @Tags Statistics
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param level path string true "Level"
// @Success 200 {object} response.Envelope
// @Router /{kind}/level/{level} [get]
func (h *RecordHandler) ByLevel(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	if !h.policy.CanReview(claims.Role, kind) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotAuthorized, "role may not search records by level"))
		return
	}
	records, cacheHit, err := h.stats.ByLevel(c.Request.Context(), kind, c.Param("level"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, records, nil, middleware.ExtractMeta(c))
}

// AdminDelete godoc
// @Summary Delete any record regardless of status
// @Tags Admin
// @Param kind path string true "Record kind slug"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /{kind}/admin/delete/{id} [delete]
func (h *RecordHandler) AdminDelete(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.records.AdminDelete(c.Request.Context(), kind, c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkDelete godoc
// @Summary Delete a batch of records regardless of status
// @Tags Admin
// @Accept json
// @Produce json
// @Param kind path string true "Record kind slug"
// @Param payload body dto.BulkDeleteRequest true "Record IDs"
// @Success 200 {object} response.Envelope
// @Router /{kind}/admin/bulk-delete [post]
func (h *RecordHandler) BulkDelete(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk delete payload"))
		return
	}
	deleted, err := h.records.BulkDelete(c.Request.Context(), kind, req.IDs, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkDeleteResult{Requested: len(req.IDs), Deleted: deleted}, nil)
}

// Export godoc
// @Summary Download approved records as CSV or PDF
// @Tags Review
// @Produce text/csv
// @Produce application/pdf
// @Param kind path string true "Record kind slug"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /{kind}/export [get]
func (h *RecordHandler) Export(c *gin.Context) {
	kind, claims, ok := h.scope(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export is disabled"))
		return
	}
	result, err := h.exports.Export(c.Request.Context(), kind, dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV))), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

func (h *RecordHandler) scope(c *gin.Context) (models.RecordKind, *models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", nil, false
	}
	kind, ok := kindFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown record kind"))
		return "", nil, false
	}
	return kind, claims, true
}

func (h *RecordHandler) respondList(c *gin.Context, fetch func(dto.RecordPage) (*dto.RecordList, error)) {
	page := dto.RecordPage{}
	if value, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page.Page = value
	}
	if value, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		page.PageSize = value
	}
	list, err := fetch(page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list.Items, list.Pagination)
}

func kindFromContext(c *gin.Context) (models.RecordKind, bool) {
	if value, exists := c.Get(contextKindKey); exists {
		if kind, ok := value.(models.RecordKind); ok && kind.Valid() {
			return kind, true
		}
	}
	return models.ParseRecordKind(c.Param("kind"))
}

func readPayload(c *gin.Context) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unable to read request body"))
		return nil, false
	}
	if len(body) > maxPayloadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "payload too large"))
		return nil, false
	}
	return json.RawMessage(body), true
}

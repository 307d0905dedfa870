package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
	"github.com/noah-isme/campus-records-api/pkg/export"
)

// ExportResult is a rendered document ready to be streamed to the caller.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders approved records of one kind as CSV or PDF.
type ExportService struct {
	store     recordSnapshotter
	registry  *RecordRegistry
	policy    *AccessPolicy
	renderers map[dto.ExportFormat]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(store recordSnapshotter, registry *RecordRegistry, policy *AccessPolicy, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewAccessPolicy(nil)
	}
	return &ExportService{
		store:    store,
		registry: registry,
		policy:   policy,
		renderers: map[dto.ExportFormat]export.Renderer{
			dto.ExportFormatCSV: export.NewCSVExporter(),
			dto.ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every approved record of the kind. Reviewers only.
func (s *ExportService) Export(ctx context.Context, kind models.RecordKind, format dto.ExportFormat, actor *models.JWTClaims) (*ExportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	def, err := s.registry.Definition(kind)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanReview(actor.Role, kind) {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "role may not export records")
	}
	if format == "" {
		format = dto.ExportFormatCSV
	}
	renderer, ok := s.renderers[dto.ExportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	records, err := s.store.Snapshot(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Approved %s records", def.Label),
		Headers: append([]string{"id", "ownerId", "reviewerId", "decidedAt"}, def.ExportFields...),
	}
	for _, rec := range records {
		if rec.Status != models.RecordStatusApproved {
			continue
		}
		fields := map[string]interface{}{}
		if err := json.Unmarshal(rec.Payload, &fields); err != nil {
			s.logger.Warn("skip unreadable record payload", zap.String("kind", string(kind)), zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		row := map[string]string{"id": rec.ID, "ownerId": rec.OwnerID}
		if rec.ReviewerID != nil {
			row["reviewerId"] = *rec.ReviewerID
		}
		if rec.DecidedAt != nil {
			row["decidedAt"] = rec.DecidedAt.UTC().Format(time.RFC3339)
		}
		for _, field := range def.ExportFields {
			row[field] = formatCell(fields[field])
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("%s-approved-%s.%s", kind.Slug(), s.now().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
		Rows:        len(dataset.Rows),
	}, nil
}

func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, formatCell(item))
		}
		return strings.Join(parts, ", ")
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

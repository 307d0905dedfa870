package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

type categoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, category *models.Category) error
}

// CategoryService manages the non-CGPA course category catalogue.
type CategoryService struct {
	store     categoryStore
	policy    *AccessPolicy
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCategoryService constructs the service. audit may be nil.
func NewCategoryService(store categoryStore, policy *AccessPolicy, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewAccessPolicy(nil)
	}
	return &CategoryService{store: store, policy: policy, audit: audit, validator: validate, logger: logger}
}

// Exists implements CategoryLookup.
func (s *CategoryService) Exists(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	return s.store.Exists(ctx, id)
}

// List returns every category.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Create registers a category. Admin only.
func (s *CategoryService) Create(ctx context.Context, req dto.CreateCategoryRequest, actor *models.JWTClaims) (*models.Category, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.CanPurge(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only admins may manage categories")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	category := &models.Category{Name: req.Name, Description: req.Description}
	if err := s.store.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	if s.audit != nil {
		values, _ := json.Marshal(category)
		entry := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionCategoryCreate,
			Resource:   "non_cgpa_category",
			ResourceID: &category.ID,
			NewValues:  values,
		}
		stampOrigin(ctx, entry, "category-service")
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return category, nil
}

// Seed inserts categories that are not yet present.
func (s *CategoryService) Seed(ctx context.Context, categories []models.Category) (int, error) {
	inserted := 0
	for i := range categories {
		category := categories[i]
		exists, err := s.store.Exists(ctx, category.ID)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		if err := s.store.Create(ctx, &category); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

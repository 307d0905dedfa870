package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
	"github.com/noah-isme/campus-records-api/pkg/response"
)

type categoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, req dto.CreateCategoryRequest, actor *models.JWTClaims) (*models.Category, error)
}

// CategoryHandler exposes the non-CGPA course category catalogue.
type CategoryHandler struct {
	service categoryService
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(service categoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// List godoc
// @Summary List non-CGPA course categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Create godoc
// @Summary Register a non-CGPA course category
// @Tags Categories
// @Accept json
// @Produce json
// @Param payload body dto.CreateCategoryRequest true "Category"
// @Success 201 {object} response.Envelope
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req dto.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid category payload"))
		return
	}
	category, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/campus-records-api/internal/models"
)

// CategoryRepository persists non-CGPA course categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	const query = `SELECT id, name, description, created_at FROM non_cgpa_categories ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Exists reports whether a category id is known.
func (r *CategoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found int
	query := r.db.Rebind(`SELECT 1 FROM non_cgpa_categories WHERE id = ? LIMIT 1`)
	if err := r.db.GetContext(ctx, &found, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check category: %w", err)
	}
	return true, nil
}

// Create inserts a category, generating its id when empty.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO non_cgpa_categories (id, name, description, created_at) VALUES (:id, :name, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// MemoryCategoryStore keeps categories in memory.
type MemoryCategoryStore struct {
	mu         sync.RWMutex
	categories map[string]models.Category
}

// NewMemoryCategoryStore constructs an empty store.
func NewMemoryCategoryStore() *MemoryCategoryStore {
	return &MemoryCategoryStore{categories: make(map[string]models.Category)}
}

// List returns all categories ordered by name.
func (s *MemoryCategoryStore) List(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists reports whether a category id is known.
func (s *MemoryCategoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.categories[id]
	return ok, nil
}

// Create inserts a category.
func (s *MemoryCategoryStore) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.categories[category.ID]; exists {
		return fmt.Errorf("category %s already exists", category.ID)
	}
	s.categories[category.ID] = *category
	return nil
}

type categorySeedFile struct {
	Categories []models.Category `yaml:"categories"`
}

// LoadCategorySeed reads a YAML document of the form
//
//	categories:
//	  - id: value-added
//	    name: Value Added Course
func LoadCategorySeed(path string) ([]models.Category, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category seed: %w", err)
	}
	var doc categorySeedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse category seed: %w", err)
	}
	out := make([]models.Category, 0, len(doc.Categories))
	for i, c := range doc.Categories {
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("category seed entry %d: id and name are required", i)
		}
		out = append(out, c)
	}
	return out, nil
}

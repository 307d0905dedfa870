package repository

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records-api/internal/models"
)

func TestCategoryRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM non_cgpa_categories WHERE id = ?")).
		WithArgs("value-added").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM non_cgpa_categories WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	ok, err := repo.Exists(context.Background(), "value-added")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Exists(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewCategoryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO non_cgpa_categories")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	category := &models.Category{Name: "Soft Skills"}
	require.NoError(t, repo.Create(context.Background(), category))
	require.NotEmpty(t, category.ID)
	require.False(t, category.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCategorySeed(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "categories.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`categories:
  - id: value-added
    name: " Value Added Course "
    description: Credited outside CGPA
  - id: mooc
    name: MOOC
`), 0o600))

	categories, err := LoadCategorySeed(valid)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "Value Added Course", categories[0].Name)
	require.Equal(t, "Credited outside CGPA", categories[0].Description)

	invalid := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("categories:\n  - name: Missing id\n"), 0o600))
	_, err = LoadCategorySeed(invalid)
	require.Error(t, err)

	_, err = LoadCategorySeed(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
}

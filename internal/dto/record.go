package dto

import "github.com/noah-isme/campus-records-api/internal/models"

// DecideRecordRequest carries the reviewer's comments for approve/reject.
type DecideRecordRequest struct {
	Comments string `json:"comments"`
}

// BulkDeleteRequest lists the records an admin wants removed regardless of status.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// BulkDeleteResult reports how many rows were removed.
type BulkDeleteResult struct {
	Requested int   `json:"requested"`
	Deleted   int64 `json:"deleted"`
}

// RecordPage is a page request for listing endpoints.
type RecordPage struct {
	Page     int
	PageSize int
}

// RecordList is a listing result with pagination metadata.
type RecordList struct {
	Items      []models.Record
	Pagination *models.Pagination
}

// CreateCategoryRequest registers a non-CGPA course category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

// ExportFormat enumerates supported export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

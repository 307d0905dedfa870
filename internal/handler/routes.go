package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-records-api/internal/middleware"
	"github.com/noah-isme/campus-records-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Records    *RecordHandler
	Categories *CategoryHandler
	Auth       gin.HandlerFunc
	Kinds      []models.RecordKind
}

// Register mounts every record kind under /{slug} plus the cross-kind and catalogue routes.
func (r Routes) Register(api *gin.RouterGroup) {
	api.Use(r.Auth)

	admin := middleware.RequireRoles(models.RoleAdmin)
	reviewers := middleware.RequireRoles(models.RoleTutor, models.RoleAdmin)

	for _, kind := range r.Kinds {
		group := api.Group("/"+kind.Slug(), BindKind(kind))
		group.POST("/add", r.Records.Create)
		group.PUT("/update/:id", r.Records.Update)
		group.DELETE("/delete/:id", r.Records.Delete)
		group.PUT("/approve/:id", reviewers, r.Records.Approve)
		group.PUT("/reject/:id", reviewers, r.Records.Reject)
		group.GET("/my-records", r.Records.MyRecords)
		group.GET("/pending", reviewers, r.Records.Pending)
		group.GET("/statistics", r.Records.Statistics)
		group.GET("/records/:id", r.Records.Get)
		group.GET("/top", r.Records.TopPerformers)
		group.GET("/level/:level", reviewers, r.Records.ByLevel)
		group.GET("/export", reviewers, r.Records.Export)
		group.DELETE("/admin/delete/:id", admin, r.Records.AdminDelete)
		group.POST("/admin/bulk-delete", admin, r.Records.BulkDelete)
	}

	records := api.Group("/records")
	records.GET("/mine", r.Records.AllMine)
	records.GET("/pending", reviewers, r.Records.AllPending)

	if r.Categories != nil {
		api.GET("/categories", r.Categories.List)
		api.POST("/categories", admin, r.Categories.Create)
	}
}

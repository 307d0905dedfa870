package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records-api/internal/dto"
	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

func TestExportServiceCSVContainsApprovedOnly(t *testing.T) {
	svc, store, _ := newTestRecordService(t)
	ctx := context.Background()

	approved, err := svc.Create(ctx, models.KindProject,
		json.RawMessage(`{"title":"Campus Navigator","teamSize":3,"domain":"Mobile"}`), studentA)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, models.KindProject, approved.ID, models.RecordStatusApproved, "", tutor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.KindProject, json.RawMessage(`{"title":"Draft","teamSize":1}`), studentB)
	require.NoError(t, err)

	exporter := NewExportService(store, svc.registry, nil, nil)
	exporter.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }

	result, err := exporter.Export(ctx, models.KindProject, dto.ExportFormatCSV, tutor)
	require.NoError(t, err)
	require.Equal(t, "project-approved-20240630.csv", result.Filename)
	require.Equal(t, 1, result.Rows)
	require.True(t, strings.HasPrefix(result.ContentType, "text/csv"))

	rows, err := csv.NewReader(strings.NewReader(string(result.Body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"id", "ownerId", "reviewerId", "decidedAt", "title", "domain", "role", "teamSize", "guide", "startDate", "endDate", "projectUrl"}, rows[0])
	require.Equal(t, approved.ID, rows[1][0])
	require.Equal(t, studentA.UserID, rows[1][1])
	require.Equal(t, tutor.UserID, rows[1][2])
	require.Equal(t, "Campus Navigator", rows[1][4])
	require.Equal(t, "3", rows[1][7])
}

func TestExportServiceGuards(t *testing.T) {
	svc, store, _ := newTestRecordService(t)
	exporter := NewExportService(store, svc.registry, nil, nil)
	ctx := context.Background()

	_, err := exporter.Export(ctx, models.KindProject, dto.ExportFormatCSV, studentA)
	requireCode(t, err, appErrors.ErrNotAuthorized)

	_, err = exporter.Export(ctx, models.KindProject, dto.ExportFormat("xlsx"), tutor)
	requireCode(t, err, appErrors.ErrValidation)

	result, err := exporter.Export(ctx, models.KindProject, dto.ExportFormatPDF, admin)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", result.ContentType)
	require.True(t, strings.HasPrefix(string(result.Body), "%PDF"))
}

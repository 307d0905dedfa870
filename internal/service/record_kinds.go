package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

func defaultKindDefinitions() []KindDefinition {
	return []KindDefinition{
		courseEnrollmentDefinition(),
		projectDefinition(),
		hackathonEventDefinition(),
		publicationDefinition(),
		extracurricularActivityDefinition(),
		nonCGPACourseDefinition(),
		educationProfileDefinition(),
	}
}

func courseEnrollmentDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.CourseEnrollmentPayload { return p.(*models.CourseEnrollmentPayload) }
	return KindDefinition{
		Kind:         models.KindCourseEnrollment,
		Label:        "course enrollment",
		ExportFields: []string{"courseName", "platform", "courseCode", "credits", "status", "score", "startDate", "endDate", "durationDays"},
		Metrics: []MetricDefinition{
			{Name: "credits", Aggregate: AggregateSum, Value: func(p models.RecordPayload) float64 { return float64(as(p).Credits) }},
			{Name: "durationDays", Aggregate: AggregateSum, Value: func(p models.RecordPayload) float64 { return float64(as(p).DurationDays) }},
			{Name: "score", Aggregate: AggregateMax, Value: func(p models.RecordPayload) float64 {
				if s := as(p).Score; s != nil {
					return *s
				}
				return 0
			}},
		},
		Breakdowns: []BreakdownDefinition{
			{Name: "platform", Key: func(p models.RecordPayload) string { return as(p).Platform }},
			{Name: "status", Key: func(p models.RecordPayload) string { return as(p).Status }},
		},
		newPayload: func() models.RecordPayload { return &models.CourseEnrollmentPayload{} },
		rules: []payloadRule{
			func(_ ruleContext, p models.RecordPayload) error {
				c := as(p)
				return dateOrder("startDate", c.StartDate, "endDate", c.EndDate)
			},
			func(_ ruleContext, p models.RecordPayload) error {
				c := as(p)
				if c.Status == models.CourseStatusCompleted && c.Score == nil {
					return errors.New("score is required when status is Completed")
				}
				return nil
			},
		},
		derive: func(p models.RecordPayload) {
			c := as(p)
			c.DurationDays = c.StartDate.DaysInclusive(*c.EndDate)
		},
	}
}

func projectDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.ProjectPayload { return p.(*models.ProjectPayload) }
	return KindDefinition{
		Kind:         models.KindProject,
		Label:        "project",
		ExportFields: []string{"title", "domain", "role", "teamSize", "guide", "startDate", "endDate", "projectUrl"},
		Metrics: []MetricDefinition{
			{Name: "teamSize", Aggregate: AggregateMax, Value: func(p models.RecordPayload) float64 { return float64(as(p).TeamSize) }},
		},
		Breakdowns: []BreakdownDefinition{
			{Name: "domain", Key: func(p models.RecordPayload) string { return as(p).Domain }},
		},
		newPayload: func() models.RecordPayload { return &models.ProjectPayload{} },
		rules: []payloadRule{
			func(_ ruleContext, p models.RecordPayload) error {
				pr := as(p)
				if pr.StartDate == nil || pr.EndDate == nil {
					return nil
				}
				return dateOrder("startDate", pr.StartDate, "endDate", pr.EndDate)
			},
		},
	}
}

func hackathonEventDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.HackathonEventPayload { return p.(*models.HackathonEventPayload) }
	return KindDefinition{
		Kind:         models.KindHackathonEvent,
		Label:        "hackathon event",
		ExportFields: []string{"eventName", "organizer", "eventDate", "mode", "rounds", "levelCleared", "result", "teamName"},
		Metrics: []MetricDefinition{
			{Name: "levelCleared", Aggregate: AggregateMax, Value: func(p models.RecordPayload) float64 { return float64(as(p).LevelCleared) }},
			{Name: "rounds", Aggregate: AggregateSum, Value: func(p models.RecordPayload) float64 { return float64(as(p).Rounds) }},
		},
		Breakdowns: []BreakdownDefinition{
			{Name: "mode", Key: func(p models.RecordPayload) string { return as(p).Mode }},
			{Name: "result", Key: func(p models.RecordPayload) string { return as(p).Result }},
		},
		Level:      func(p models.RecordPayload) string { return strconv.Itoa(as(p).LevelCleared) },
		newPayload: func() models.RecordPayload { return &models.HackathonEventPayload{} },
	}
}

func publicationDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.PublicationPayload { return p.(*models.PublicationPayload) }
	return KindDefinition{
		Kind:         models.KindPublication,
		Label:        "publication",
		ExportFields: []string{"title", "publicationType", "publisherName", "publicationDate", "doi", "indexing"},
		Breakdowns: []BreakdownDefinition{
			{Name: "publicationType", Key: func(p models.RecordPayload) string { return as(p).PublicationType }},
			{Name: "indexing", Key: func(p models.RecordPayload) string { return as(p).Indexing }},
		},
		newPayload: func() models.RecordPayload { return &models.PublicationPayload{} },
		rules: []payloadRule{
			func(_ ruleContext, p models.RecordPayload) error {
				if strings.TrimSpace(as(p).Title) == "" {
					return errors.New("title is required")
				}
				return nil
			},
		},
	}
}

func extracurricularActivityDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.ExtracurricularActivityPayload {
		return p.(*models.ExtracurricularActivityPayload)
	}
	return KindDefinition{
		Kind:         models.KindExtracurricularActivity,
		Label:        "extracurricular activity",
		ExportFields: []string{"activityName", "category", "level", "status", "prize", "venue", "fromDate", "toDate", "numberOfDays"},
		Metrics: []MetricDefinition{
			{Name: "numberOfDays", Aggregate: AggregateSum, Value: func(p models.RecordPayload) float64 { return float64(as(p).NumberOfDays) }},
			{Name: "wins", Aggregate: AggregateSum, Value: func(p models.RecordPayload) float64 {
				if as(p).Status == models.ActivityStatusWinning {
					return 1
				}
				return 0
			}},
		},
		Breakdowns: []BreakdownDefinition{
			{Name: "status", Key: func(p models.RecordPayload) string { return as(p).Status }},
			{Name: "category", Key: func(p models.RecordPayload) string { return as(p).Category }},
			{Name: "level", Key: func(p models.RecordPayload) string { return as(p).Level }},
		},
		Level:      func(p models.RecordPayload) string { return as(p).Level },
		newPayload: func() models.RecordPayload { return &models.ExtracurricularActivityPayload{} },
		rules: []payloadRule{
			func(_ ruleContext, p models.RecordPayload) error {
				e := as(p)
				return dateOrder("fromDate", e.FromDate, "toDate", e.ToDate)
			},
			func(_ ruleContext, p models.RecordPayload) error {
				e := as(p)
				if e.Status == models.ActivityStatusWinning && strings.TrimSpace(e.Prize) == "" {
					return errors.New("prize is required when status is Winning")
				}
				return nil
			},
		},
		derive: func(p models.RecordPayload) {
			e := as(p)
			e.NumberOfDays = e.FromDate.DaysInclusive(*e.ToDate)
		},
	}
}

func nonCGPACourseDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.NonCGPACoursePayload { return p.(*models.NonCGPACoursePayload) }
	return KindDefinition{
		Kind:         models.KindNonCGPACourse,
		Label:        "non-CGPA course",
		ExportFields: []string{"categoryId", "courseName", "instructor", "fromDate", "toDate", "numberOfDays"},
		Metrics: []MetricDefinition{
			{Name: "numberOfDays", Aggregate: AggregateSum, Value: func(p models.RecordPayload) float64 { return float64(as(p).NumberOfDays) }},
		},
		Breakdowns: []BreakdownDefinition{
			{Name: "categoryId", Key: func(p models.RecordPayload) string { return as(p).CategoryID }},
		},
		newPayload: func() models.RecordPayload { return &models.NonCGPACoursePayload{} },
		rules: []payloadRule{
			func(_ ruleContext, p models.RecordPayload) error {
				n := as(p)
				return dateOrder("fromDate", n.FromDate, "toDate", n.ToDate)
			},
			func(rc ruleContext, p models.RecordPayload) error {
				n := as(p)
				if rc.categories == nil {
					return appErrors.Clone(appErrors.ErrInternal, "category lookup is not configured")
				}
				ok, err := rc.categories.Exists(rc.ctx, n.CategoryID)
				if err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve category")
				}
				if !ok {
					return fmt.Errorf("categoryId %q does not reference a known category", n.CategoryID)
				}
				return nil
			},
		},
		derive: func(p models.RecordPayload) {
			n := as(p)
			n.NumberOfDays = n.FromDate.DaysInclusive(*n.ToDate)
		},
	}
}

func educationProfileDefinition() KindDefinition {
	as := func(p models.RecordPayload) *models.EducationProfilePayload { return p.(*models.EducationProfilePayload) }
	return KindDefinition{
		Kind:         models.KindEducationProfile,
		Label:        "education profile",
		ExportFields: []string{"level", "institution", "board", "yearOfPassing", "percentage", "cgpa"},
		Metrics: []MetricDefinition{
			{Name: "percentage", Aggregate: AggregateMax, Value: func(p models.RecordPayload) float64 {
				if v := as(p).Percentage; v != nil {
					return *v
				}
				return 0
			}},
			{Name: "cgpa", Aggregate: AggregateMax, Value: func(p models.RecordPayload) float64 {
				if v := as(p).CGPA; v != nil {
					return *v
				}
				return 0
			}},
		},
		Breakdowns: []BreakdownDefinition{
			{Name: "level", Key: func(p models.RecordPayload) string { return as(p).Level }},
		},
		Level:      func(p models.RecordPayload) string { return as(p).Level },
		newPayload: func() models.RecordPayload { return &models.EducationProfilePayload{} },
		rules: []payloadRule{
			func(_ ruleContext, p models.RecordPayload) error {
				e := as(p)
				if e.Percentage == nil && e.CGPA == nil {
					return errors.New("either percentage or cgpa is required")
				}
				return nil
			},
		},
	}
}

func dateOrder(startName string, start *models.Date, endName string, end *models.Date) error {
	if start == nil || end == nil {
		return nil
	}
	if end.Before(start.Time) {
		return fmt.Errorf("%s must not be before %s", endName, startName)
	}
	return nil
}

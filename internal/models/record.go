package models

import (
	"encoding/json"
	"time"
)

// RecordKind identifies which verification workflow a record belongs to.
type RecordKind string

const (
	KindCourseEnrollment        RecordKind = "COURSE_ENROLLMENT"
	KindProject                 RecordKind = "PROJECT"
	KindHackathonEvent          RecordKind = "HACKATHON_EVENT"
	KindPublication             RecordKind = "PUBLICATION"
	KindExtracurricularActivity RecordKind = "EXTRACURRICULAR_ACTIVITY"
	KindNonCGPACourse           RecordKind = "NON_CGPA_COURSE"
	KindEducationProfile        RecordKind = "EDUCATION_PROFILE"
)

// AllRecordKinds lists every kind in a stable order.
var AllRecordKinds = []RecordKind{
	KindCourseEnrollment,
	KindProject,
	KindHackathonEvent,
	KindPublication,
	KindExtracurricularActivity,
	KindNonCGPACourse,
	KindEducationProfile,
}

var kindSlugs = map[RecordKind]string{
	KindCourseEnrollment:        "course-enrollment",
	KindProject:                 "project",
	KindHackathonEvent:          "hackathon-event",
	KindPublication:             "publication",
	KindExtracurricularActivity: "extracurricular-activity",
	KindNonCGPACourse:           "non-cgpa-course",
	KindEducationProfile:        "education-profile",
}

var kindTables = map[RecordKind]string{
	KindCourseEnrollment:        "course_enrollments",
	KindProject:                 "projects",
	KindHackathonEvent:          "hackathon_events",
	KindPublication:             "publications",
	KindExtracurricularActivity: "extracurricular_activities",
	KindNonCGPACourse:           "non_cgpa_courses",
	KindEducationProfile:        "education_profiles",
}

// Slug returns the URL path segment used for the kind.
func (k RecordKind) Slug() string {
	return kindSlugs[k]
}

// Table returns the SQL table backing the kind, empty for unknown kinds.
func (k RecordKind) Table() string {
	return kindTables[k]
}

// Valid reports whether the kind is one of the known kinds.
func (k RecordKind) Valid() bool {
	_, ok := kindSlugs[k]
	return ok
}

// ParseRecordKind accepts either the slug ("non-cgpa-course") or the constant ("NON_CGPA_COURSE").
func ParseRecordKind(raw string) (RecordKind, bool) {
	for kind, slug := range kindSlugs {
		if raw == slug || raw == string(kind) {
			return kind, true
		}
	}
	return "", false
}

// RecordStatus captures the verification lifecycle state.
type RecordStatus string

const (
	RecordStatusPending  RecordStatus = "PENDING"
	RecordStatusApproved RecordStatus = "APPROVED"
	RecordStatusRejected RecordStatus = "REJECTED"
)

// Terminal reports whether no further transitions are possible.
func (s RecordStatus) Terminal() bool {
	return s == RecordStatusApproved || s == RecordStatusRejected
}

// Record is one submitted claim awaiting or holding a reviewer decision.
type Record struct {
	ID             string          `db:"id" json:"id"`
	Kind           RecordKind      `db:"kind" json:"kind"`
	OwnerID        string          `db:"owner_id" json:"ownerId"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	Status         RecordStatus    `db:"status" json:"status"`
	ReviewerID     *string         `db:"reviewer_id" json:"reviewerId,omitempty"`
	ReviewComments *string         `db:"review_comments" json:"reviewComments,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
	DecidedAt      *time.Time      `db:"decided_at" json:"decidedAt,omitempty"`
}

// Clone returns a deep copy so callers never share payload buffers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = append(json.RawMessage(nil), r.Payload...)
	if r.ReviewerID != nil {
		v := *r.ReviewerID
		c.ReviewerID = &v
	}
	if r.ReviewComments != nil {
		v := *r.ReviewComments
		c.ReviewComments = &v
	}
	if r.DecidedAt != nil {
		v := *r.DecidedAt
		c.DecidedAt = &v
	}
	return &c
}

// RecordFilter constrains listing queries for a single kind.
type RecordFilter struct {
	Kind    RecordKind
	OwnerID string
	Status  []RecordStatus
	Limit   int
	Offset  int
}

// RecordDecision groups the columns written by a reviewer decision.
type RecordDecision struct {
	Kind       RecordKind
	ID         string
	Outcome    RecordStatus
	ReviewerID string
	Comments   *string
	DecidedAt  time.Time
}

// RecordEdit groups the columns written by an owner edit.
type RecordEdit struct {
	Kind      RecordKind
	ID        string
	OwnerID   string
	Payload   json.RawMessage
	UpdatedAt time.Time
}

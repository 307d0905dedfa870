package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates in record payloads.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return Date{Time: t}, nil
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts a YYYY-MM-DD string or the JSON null literal. Blank strings are rejected.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid date %s: expected YYYY-MM-DD", string(data))
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// DaysInclusive counts calendar days from d to end, both ends included.
func (d Date) DaysInclusive(end Date) int {
	return int(end.Sub(d.Time).Hours()/24) + 1
}

// RecordPayload is implemented by every kind-specific payload.
type RecordPayload interface {
	RecordKind() RecordKind
}

// CourseEnrollmentStatus values.
const (
	CourseStatusOngoing   = "Ongoing"
	CourseStatusCompleted = "Completed"
)

// CourseEnrollmentPayload describes an online/external course a student enrolled in.
type CourseEnrollmentPayload struct {
	CourseName     string   `json:"courseName" validate:"required,max=200"`
	Platform       string   `json:"platform" validate:"required,max=100"`
	CourseCode     string   `json:"courseCode,omitempty" validate:"max=50"`
	Semester       int      `json:"semester,omitempty" validate:"omitempty,min=1,max=10"`
	Credits        int      `json:"credits,omitempty" validate:"min=0,max=20"`
	Status         string   `json:"status" validate:"required,oneof=Ongoing Completed"`
	Score          *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	StartDate      *Date    `json:"startDate" validate:"required"`
	EndDate        *Date    `json:"endDate" validate:"required"`
	CertificateURL string   `json:"certificateUrl,omitempty" validate:"max=2048"`
	DurationDays   int      `json:"durationDays"`
}

func (CourseEnrollmentPayload) RecordKind() RecordKind { return KindCourseEnrollment }

// ProjectPayload describes an academic or personal project.
type ProjectPayload struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty" validate:"max=4000"`
	Domain      string   `json:"domain,omitempty" validate:"max=100"`
	TechStack   []string `json:"techStack,omitempty" validate:"max=30,dive,max=60"`
	Role        string   `json:"role,omitempty" validate:"max=100"`
	TeamSize    int      `json:"teamSize" validate:"required,min=1,max=50"`
	Guide       string   `json:"guide,omitempty" validate:"max=120"`
	ProjectURL  string   `json:"projectUrl,omitempty" validate:"max=2048"`
	StartDate   *Date    `json:"startDate,omitempty"`
	EndDate     *Date    `json:"endDate,omitempty"`
}

func (ProjectPayload) RecordKind() RecordKind { return KindProject }

// Hackathon participation modes.
const (
	EventModeOnline  = "Online"
	EventModeOffline = "Offline"
	EventModeHybrid  = "Hybrid"
)

// HackathonEventPayload describes participation in a hackathon or coding contest.
type HackathonEventPayload struct {
	EventName      string `json:"eventName" validate:"required,max=200"`
	Organizer      string `json:"organizer" validate:"required,max=200"`
	EventDate      *Date  `json:"eventDate" validate:"required"`
	Mode           string `json:"mode" validate:"required,oneof=Online Offline Hybrid"`
	Rounds         int    `json:"rounds" validate:"required,min=1"`
	LevelCleared   int    `json:"levelCleared" validate:"required,min=1,max=10"`
	Result         string `json:"result,omitempty" validate:"omitempty,oneof=Participated Finalist Winner RunnerUp"`
	TeamName       string `json:"teamName,omitempty" validate:"max=120"`
	CertificateURL string `json:"certificateUrl,omitempty" validate:"max=2048"`
}

func (HackathonEventPayload) RecordKind() RecordKind { return KindHackathonEvent }

// PublicationPayload describes a paper, chapter or patent.
type PublicationPayload struct {
	Title           string   `json:"title" validate:"required,max=300"`
	PublicationType string   `json:"publicationType" validate:"required,oneof=Journal Conference BookChapter Patent Other"`
	PublisherName   string   `json:"publisherName,omitempty" validate:"max=200"`
	PublicationDate *Date    `json:"publicationDate,omitempty"`
	DOI             string   `json:"doi,omitempty" validate:"max=200"`
	Indexing        string   `json:"indexing,omitempty" validate:"omitempty,oneof=Scopus WoS UGC None"`
	Authors         []string `json:"authors,omitempty" validate:"max=50,dive,max=120"`
	ProofURL        string   `json:"proofUrl,omitempty" validate:"max=2048"`
}

func (PublicationPayload) RecordKind() RecordKind { return KindPublication }

// Extracurricular activity outcomes.
const (
	ActivityStatusParticipated = "Participated"
	ActivityStatusWinning      = "Winning"
)

// ExtracurricularActivityPayload describes a sports, cultural or technical activity.
type ExtracurricularActivityPayload struct {
	ActivityName   string `json:"activityName" validate:"required,max=200"`
	Category       string `json:"category,omitempty" validate:"omitempty,oneof=Sports Cultural Technical Social Other"`
	Level          string `json:"level,omitempty" validate:"omitempty,oneof=College Zonal State National International"`
	Status         string `json:"status" validate:"required,oneof=Participated Winning"`
	Prize          string `json:"prize,omitempty" validate:"max=50"`
	Venue          string `json:"venue,omitempty" validate:"max=200"`
	FromDate       *Date  `json:"fromDate" validate:"required"`
	ToDate         *Date  `json:"toDate" validate:"required"`
	CertificateURL string `json:"certificateUrl,omitempty" validate:"max=2048"`
	NumberOfDays   int    `json:"numberOfDays"`
}

func (ExtracurricularActivityPayload) RecordKind() RecordKind { return KindExtracurricularActivity }

// NonCGPACoursePayload describes a value-added course credited outside the CGPA.
type NonCGPACoursePayload struct {
	CategoryID     string `json:"categoryId" validate:"required"`
	CourseName     string `json:"courseName" validate:"required,max=200"`
	Instructor     string `json:"instructor,omitempty" validate:"max=120"`
	FromDate       *Date  `json:"fromDate" validate:"required"`
	ToDate         *Date  `json:"toDate" validate:"required"`
	CertificateURL string `json:"certificateUrl,omitempty" validate:"max=2048"`
	NumberOfDays   int    `json:"numberOfDays"`
}

func (NonCGPACoursePayload) RecordKind() RecordKind { return KindNonCGPACourse }

// EducationProfilePayload describes a prior qualification.
type EducationProfilePayload struct {
	Level         string   `json:"level" validate:"required,oneof=SSLC HSC Diploma UG PG"`
	Institution   string   `json:"institution" validate:"required,max=200"`
	Board         string   `json:"board,omitempty" validate:"max=120"`
	YearOfPassing int      `json:"yearOfPassing" validate:"required,min=1950,max=2100"`
	Percentage    *float64 `json:"percentage,omitempty" validate:"omitempty,min=0,max=100"`
	CGPA          *float64 `json:"cgpa,omitempty" validate:"omitempty,min=0,max=10"`
	MarksheetURL  string   `json:"marksheetUrl,omitempty" validate:"max=2048"`
}

func (EducationProfilePayload) RecordKind() RecordKind { return KindEducationProfile }

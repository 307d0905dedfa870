package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

// CategoryLookup resolves non-CGPA category references during validation.
type CategoryLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// AggregateMode selects how a metric folds an owner's approved records.
type AggregateMode string

const (
	AggregateSum AggregateMode = "sum"
	AggregateMax AggregateMode = "max"
)

// MetricCount is available for every kind and counts approved records.
const MetricCount = "count"

// MetricDefinition extracts a numeric value from a payload.
type MetricDefinition struct {
	Name      string
	Aggregate AggregateMode
	Value     func(models.RecordPayload) float64
}

// BreakdownDefinition groups records by a categorical payload field.
type BreakdownDefinition struct {
	Name string
	Key  func(models.RecordPayload) string
}

// ruleContext carries the lookups cross-field rules may consult.
type ruleContext struct {
	ctx        context.Context
	categories CategoryLookup
}

type payloadRule func(rc ruleContext, payload models.RecordPayload) error

// KindDefinition declares how one record kind is validated, derived and aggregated.
type KindDefinition struct {
	Kind         models.RecordKind
	Label        string
	ExportFields []string
	Metrics      []MetricDefinition
	Breakdowns   []BreakdownDefinition
	// Level returns the achievement level used by level search; nil when the kind has none.
	Level func(models.RecordPayload) string

	newPayload func() models.RecordPayload
	rules      []payloadRule
	derive     func(models.RecordPayload)
}

// Metric looks up a metric by name.
func (d *KindDefinition) Metric(name string) (MetricDefinition, bool) {
	for _, m := range d.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricDefinition{}, false
}

// MetricNames lists the metrics accepted by leaderboards, count first.
func (d *KindDefinition) MetricNames() []string {
	names := []string{MetricCount}
	for _, m := range d.Metrics {
		names = append(names, m.Name)
	}
	return names
}

// RecordRegistry maps each kind to its schema so the lifecycle engine stays kind-agnostic.
type RecordRegistry struct {
	kinds      map[models.RecordKind]*KindDefinition
	validator  *validator.Validate
	categories CategoryLookup
}

// NewRecordRegistry constructs a registry with the given definitions.
func NewRecordRegistry(validate *validator.Validate, categories CategoryLookup, defs ...KindDefinition) *RecordRegistry {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	reg := &RecordRegistry{
		kinds:      make(map[models.RecordKind]*KindDefinition, len(defs)),
		validator:  validate,
		categories: categories,
	}
	for i := range defs {
		def := defs[i]
		reg.kinds[def.Kind] = &def
	}
	return reg
}

// NewDefaultRecordRegistry registers all seven record kinds.
func NewDefaultRecordRegistry(validate *validator.Validate, categories CategoryLookup) *RecordRegistry {
	return NewRecordRegistry(validate, categories, defaultKindDefinitions()...)
}

// Kinds lists registered kinds in their canonical order.
func (r *RecordRegistry) Kinds() []models.RecordKind {
	kinds := make([]models.RecordKind, 0, len(r.kinds))
	for _, kind := range models.AllRecordKinds {
		if _, ok := r.kinds[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Definition returns the schema for a kind.
func (r *RecordRegistry) Definition(kind models.RecordKind) (*KindDefinition, error) {
	def, ok := r.kinds[kind]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported record kind %q", kind))
	}
	return def, nil
}

// Validate decodes and checks a raw owner payload. Unknown fields are rejected.
func (r *RecordRegistry) Validate(ctx context.Context, kind models.RecordKind, raw []byte) (models.RecordPayload, error) {
	def, err := r.Definition(kind)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payload is required")
	}
	payload := def.newPayload()
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s payload: %s", def.Label, err.Error()))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s payload: trailing data", def.Label))
	}
	if err := r.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, describeValidation(err))
	}
	rc := ruleContext{ctx: ctx, categories: r.categories}
	for _, rule := range def.rules {
		if err := rule(rc, payload); err != nil {
			if appErrors.HasCode(err, appErrors.ErrInternal.Code) {
				return nil, err
			}
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}
	return payload, nil
}

// ComputeDerived recomputes server-owned fields, overwriting anything the caller sent.
func (r *RecordRegistry) ComputeDerived(kind models.RecordKind, payload models.RecordPayload) (models.RecordPayload, error) {
	def, err := r.Definition(kind)
	if err != nil {
		return nil, err
	}
	if def.derive != nil {
		def.derive(payload)
	}
	return payload, nil
}

// Decode validates, derives and returns the canonical JSON stored for the record.
func (r *RecordRegistry) Decode(ctx context.Context, kind models.RecordKind, raw []byte) (json.RawMessage, error) {
	payload, err := r.Validate(ctx, kind, raw)
	if err != nil {
		return nil, err
	}
	if payload, err = r.ComputeDerived(kind, payload); err != nil {
		return nil, err
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode payload")
	}
	return canonical, nil
}

// Parse decodes a stored payload without re-validating it.
func (r *RecordRegistry) Parse(kind models.RecordKind, stored json.RawMessage) (models.RecordPayload, error) {
	def, err := r.Definition(kind)
	if err != nil {
		return nil, err
	}
	payload := def.newPayload()
	if err := json.Unmarshal(stored, payload); err != nil {
		return nil, fmt.Errorf("decode stored %s payload: %w", kind, err)
	}
	return payload, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid payload"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

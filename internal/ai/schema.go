package ai

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Event is the event object the model is asked to produce.
type Event struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	StartDate   string `json:"startDate" validate:"required"`
	EndDate     string `json:"endDate" validate:"required"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	TimeZone    string `json:"timeZone,omitempty"`
	Location    string `json:"location"`
}

// Metadata is validated loosely: every field is optional and list fields
// accept a comma separated string.
type Metadata struct {
	EventCategory      string   `json:"eventCategory,omitempty"`
	EventType          string   `json:"eventType,omitempty"`
	PriceType          string   `json:"priceType,omitempty"`
	PriceMin           *float64 `json:"priceMin,omitempty" validate:"omitempty,gte=0"`
	PriceMax           *float64 `json:"priceMax,omitempty" validate:"omitempty,gte=0"`
	AgeRestriction     string   `json:"ageRestriction,omitempty"`
	Performers         []string `json:"performers,omitempty"`
	Accessibility      []string `json:"accessibility,omitempty"`
	AccessibilityNotes string   `json:"accessibilityNotes,omitempty"`
	Mentions           []string `json:"mentions,omitempty"`
	Source             string   `json:"source,omitempty"`
}

// Schema is a JSON Schema document sent to the model as the response format
// and used to validate what comes back.
type Schema struct {
	Name      string
	Document  json.RawMessage
	compiled  *gojsonschema.Schema
	normalize func(map[string]any)
}

var validate = validator.New()

var (
	EventSchema    = mustLoadSchema("event", "schemas/event.schema.json", dropNulls)
	MetadataSchema = mustLoadSchema("event_metadata", "schemas/metadata.schema.json", normalizeMetadata)
)

func mustLoadSchema(name, path string, normalize func(map[string]any)) *Schema {
	doc, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", path, err))
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", path, err))
	}
	return &Schema{Name: name, Document: doc, compiled: compiled, normalize: normalize}
}

// SchemaError lists the violations of a syntactically valid response.
type SchemaError struct {
	Schema     string
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response does not match schema %s: %s", e.Schema, strings.Join(e.Violations, "; "))
}

// Decode parses data, applies the schema's normalization, validates the
// result against the JSON Schema and then decodes it into target.
// A *json.SyntaxError means data was not JSON at all; a *SchemaError means it
// was JSON of the wrong shape.
func (s *Schema) Decode(data []byte, target any) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return &SchemaError{Schema: s.Name, Violations: []string{"top level value is not an object"}}
	}
	if s.normalize != nil {
		s.normalize(obj)
	}

	res, err := s.compiled.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return fmt.Errorf("validate against %s: %w", s.Name, err)
	}
	if !res.Valid() {
		violations := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			violations = append(violations, re.String())
		}
		return &SchemaError{Schema: s.Name, Violations: violations}
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("re-encode %s: %w", s.Name, err)
	}
	if err := json.Unmarshal(normalized, target); err != nil {
		return &SchemaError{Schema: s.Name, Violations: []string{err.Error()}}
	}
	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			violations := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				violations = append(violations, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return &SchemaError{Schema: s.Name, Violations: violations}
		}
		return err
	}
	return nil
}

var metadataListFields = []string{"performers", "accessibility", "mentions"}

// normalizeMetadata coerces the shapes models commonly get wrong.
func normalizeMetadata(obj map[string]any) {
	for _, key := range metadataListFields {
		switch v := obj[key].(type) {
		case nil:
			delete(obj, key)
		case string:
			obj[key] = splitList(v)
		case []any:
			items := make([]any, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					items = append(items, strings.TrimSpace(s))
				}
			}
			obj[key] = items
		}
	}

	for _, key := range []string{"priceMin", "priceMax"} {
		switch v := obj[key].(type) {
		case string:
			f, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(v), "$"), 64)
			if err != nil {
				delete(obj, key)
				continue
			}
			obj[key] = f
		case float64:
			if v < 0 {
				delete(obj, key)
			}
		}
	}

	dropNulls(obj)
}

// dropNulls removes explicit nulls so optional fields read as absent.
func dropNulls(obj map[string]any) {
	for key, v := range obj {
		if v == nil {
			delete(obj, key)
		}
	}
}

func splitList(s string) []any {
	parts := strings.Split(s, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FieldErrors runs the struct validation on v and reports failures by field
// name. It returns nil when v is valid.
func FieldErrors(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

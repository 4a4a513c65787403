package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Issue is one schema violation.
type Issue struct {
	Field   string `json:"field"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ValidationError lists every schema violation of a response.
type ValidationError struct {
	Stage  string  `json:"stage"`
	Issues []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Message)
	}
	return fmt.Sprintf("%s response failed validation: %s", e.Stage, strings.Join(parts, "; "))
}

// OnlyEmpty reports whether the sole problem is an empty array at field.
func (e *ValidationError) OnlyEmpty(field string) bool {
	if len(e.Issues) == 0 {
		return false
	}
	for _, is := range e.Issues {
		if is.Field != field || is.Type != "array_min_items" {
			return false
		}
	}
	return true
}

var schemas sync.Map // schema text -> *gojsonschema.Schema

func compileSchema(schema string) (*gojsonschema.Schema, error) {
	if s, ok := schemas.Load(schema); ok {
		return s.(*gojsonschema.Schema), nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	actual, _ := schemas.LoadOrStore(schema, s)
	return actual.(*gojsonschema.Schema), nil
}

// Validate checks doc against a JSON schema and decodes it into out when it
// conforms. Violations come back as *ValidationError.
func Validate(stage, schema string, doc json.RawMessage, out any) error {
	s, err := compileSchema(schema)
	if err != nil {
		return err
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrResponseMalformed, err.Error())
	}
	if !res.Valid() {
		ve := &ValidationError{Stage: stage}
		for _, re := range res.Errors() {
			ve.Issues = append(ve.Issues, Issue{
				Field:   re.Field(),
				Type:    re.Type(),
				Message: re.Description(),
			})
		}
		return ve
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %s", ErrResponseMalformed, stage, err.Error())
	}
	return nil
}

// Package schemas validates model responses against the JSON Schemas that
// define each stage's output contract. Schemas are embedded at compile time.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.json
var schemaFiles embed.FS

// Schema names for the pipeline stages.
const (
	ResumeResponse      = "resume_response.json"
	AuditResponse       = "audit_response.json"
	BulletResponse      = "bullet_response.json"
	CoverLetterResponse = "cover_letter_response.json"
)

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

// ValidationError reports schema violations with field paths
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is a single violation at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "response does not match %s:\n", ve.Schema)
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// SchemaLoadError reports a problem with the schema itself
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validate checks a JSON document against the named embedded schema.
// Returns nil when valid, a *ValidationError with field paths otherwise.
func Validate(name, document string) error {
	schema, err := load(name)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return &SchemaLoadError{Name: name, Message: "document could not be validated", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{
		Schema: name,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}

func load(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if schema, ok := compiled[name]; ok {
		return schema, nil
	}

	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "schema file not embedded", Cause: err}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "schema does not compile", Cause: err}
	}

	compiled[name] = schema
	return schema, nil
}

package validation

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names bundled with the binary.
const (
	AnalysisRequestSchema = "analysis_request"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	compiledMu sync.Mutex
	compiled   = map[string]*gojsonschema.Schema{}
)

func loadSchema(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	compiled[name] = s
	return s, nil
}

// ValidatePayload validates a raw JSON document against a bundled schema.
func ValidatePayload(schemaName string, payload []byte) (*ValidationResult, error) {
	s, err := loadSchema(schemaName)
	if err != nil {
		return nil, err
	}
	return toResult(s.Validate(gojsonschema.NewBytesLoader(payload)))
}

// ValidateInput validates an already decoded value, e.g. job variables.
func ValidateInput(schemaName string, input interface{}) (*ValidationResult, error) {
	s, err := loadSchema(schemaName)
	if err != nil {
		return nil, err
	}
	return toResult(s.Validate(gojsonschema.NewGoLoader(input)))
}

func toResult(result *gojsonschema.Result, err error) (*ValidationResult, error) {
	if err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/asaidimu/go-restful/core"
	"github.com/xeipuuv/gojsonschema"
)

// PasswordFormat is the "format" keyword value checked by PasswordFormatChecker.
const PasswordFormat = "password"

var registerFormats sync.Once

// PasswordFormatChecker accepts strings of at least eight characters with an
// upper case letter, a lower case letter, a digit and a symbol, and no
// whitespace.
type PasswordFormatChecker struct{}

// IsFormat implements gojsonschema.FormatChecker. Non-strings pass so that
// the "type" keyword reports them.
func (PasswordFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	return IsStrongPassword(s)
}

// IsStrongPassword applies the password rules outside of a JSON schema.
func IsStrongPassword(s string) bool {
	var upper, lower, digit, symbol bool
	n := 0
	for _, r := range s {
		n++
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case r != '_' && !unicode.IsLetter(r):
			symbol = true
		}
	}
	return n >= 8 && upper && lower && digit && symbol
}

// JSONValidator validates request payloads against a compiled JSON schema.
type JSONValidator struct {
	schema *gojsonschema.Schema
}

// NewJSONValidator compiles a schema given as a JSON string, a []byte or a
// Go value that marshals to one.
func NewJSONValidator(source any) (*JSONValidator, error) {
	registerFormats.Do(func() {
		gojsonschema.FormatCheckers.Add(PasswordFormat, PasswordFormatChecker{})
	})

	var loader gojsonschema.JSONLoader
	switch s := source.(type) {
	case nil:
		return nil, fmt.Errorf("json schema cannot be nil")
	case string:
		loader = gojsonschema.NewStringLoader(s)
	case []byte:
		loader = gojsonschema.NewBytesLoader(s)
	case json.RawMessage:
		loader = gojsonschema.NewBytesLoader(s)
	default:
		loader = gojsonschema.NewGoLoader(s)
	}

	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile json schema: %w", err)
	}
	return &JSONValidator{schema: compiled}, nil
}

// MustJSONValidator is like NewJSONValidator but panics on error. It is meant
// for package-level schema declarations.
func MustJSONValidator(source any) *JSONValidator {
	v, err := NewJSONValidator(source)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a decoded document and reports the first failure as a
// *core.ValidationError.
func (v *JSONValidator) Validate(document any) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return &core.ValidationError{Message: fmt.Sprintf("document is not valid JSON: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	first := result.Errors()[0]
	path := first.Field()
	if path == "(root)" {
		path = ""
	}
	return &core.ValidationError{Path: path, Message: first.Description()}
}

// Issues returns every failure of a document as schema issues.
func (v *JSONValidator) Issues(document any) []Issue {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return []Issue{{Code: "INVALID_DOCUMENT", Message: err.Error(), Severity: "error"}}
	}
	issues := make([]Issue, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, Issue{
			Code:     strings.ToUpper(e.Type()),
			Message:  e.Description(),
			Path:     e.Field(),
			Severity: "error",
		})
	}
	return issues
}

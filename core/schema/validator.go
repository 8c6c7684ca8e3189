package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaidimu/go-restful/core"
	"github.com/google/uuid"
)

// Validator checks write payloads against a model definition: required
// columns, column types, enum values and string lengths.
type Validator struct {
	model *ModelDefinition
}

// NewValidator creates a new Validator instance for a model.
func NewValidator(model *ModelDefinition) *Validator {
	return &Validator{model: model}
}

// Validate checks data. With loose set, missing required columns are
// accepted, which is what updates need. Issues are sorted by path.
func (v *Validator) Validate(data map[string]any, loose bool) (bool, []Issue) {
	var issues []Issue
	add := func(code, path, format string, args ...any) {
		issues = append(issues, Issue{Code: code, Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"})
	}

	for _, name := range v.model.Columns {
		field := v.model.Fields[name]
		value, exists := data[name]
		if !exists {
			if !loose && field.IsRequired() && !field.AutoIncrement && field.Default == nil && field.DefaultFunc == nil {
				add("REQUIRED_FIELD_MISSING", name, "Required field '%s' is missing", name)
			}
			continue
		}
		if value == nil {
			if field.IsRequired() {
				add("NULL_VALUE", name, "Field '%s' cannot be null", name)
			}
			continue
		}
		if msg := checkType(field, value); msg != "" {
			add("TYPE_MISMATCH", name, "%s", msg)
			continue
		}
		if field.Type == FieldTypeEnum && !inValues(field.Values, value) {
			add("INVALID_ENUM_VALUE", name, "Value '%v' is not one of %v", value, field.Values)
			continue
		}
		if field.Length > 0 {
			if s, ok := value.(string); ok && utf8.RuneCountInString(s) > field.Length {
				add("TOO_LONG", name, "Field '%s' is longer than %d characters", name, field.Length)
			}
		}
	}

	for key := range data {
		if !v.model.HasField(key) {
			add("UNEXPECTED_FIELD", key, "Unexpected field '%s' not defined in %s", key, v.model.Name)
		}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return len(issues) == 0, issues
}

// Check validates data and converts the first issue into a *core.ValidationError.
func (v *Validator) Check(data map[string]any, loose bool) error {
	ok, issues := v.Validate(data, loose)
	if ok {
		return nil
	}
	return &core.ValidationError{Path: issues[0].Path, Message: issues[0].Message}
}

func checkType(field *FieldDefinition, value any) string {
	switch field.Type {
	case FieldTypeString, FieldTypeEnum:
		switch value.(type) {
		case string, []byte:
			return ""
		}
		if field.Type == FieldTypeEnum && isNumeric(value) {
			return ""
		}
		return fmt.Sprintf("Expected string, got %T", value)
	case FieldTypeInteger:
		if _, ok := core.ToInt64(value); ok {
			return ""
		}
		return fmt.Sprintf("Expected integer, got %T", value)
	case FieldTypeNumber, FieldTypeDecimal:
		if _, ok := core.ToFloat64(value); ok {
			return ""
		}
		return fmt.Sprintf("Expected number, got %T", value)
	case FieldTypeBoolean:
		if _, ok := core.ToBool(value); ok {
			return ""
		}
		return fmt.Sprintf("Expected boolean, got %T", value)
	case FieldTypeDateTime, FieldTypeDate:
		if _, ok := ParseTime(value); ok {
			return ""
		}
		return fmt.Sprintf("Expected %s, got %v", field.Type, value)
	case FieldTypeUUID:
		if s, ok := value.(string); ok {
			if _, err := uuid.Parse(s); err == nil {
				return ""
			}
		}
		if _, ok := value.(uuid.UUID); ok {
			return ""
		}
		return fmt.Sprintf("Expected uuid, got %v", value)
	case FieldTypeArray:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return ""
		}
		return fmt.Sprintf("Expected array, got %T", value)
	case FieldTypeObject:
		if reflect.ValueOf(value).Kind() == reflect.Map {
			return ""
		}
		if _, ok := value.(interface{ MarshalJSON() ([]byte, error) }); ok {
			return ""
		}
		return fmt.Sprintf("Expected object, got %T", value)
	}
	return ""
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func inValues(values []any, value any) bool {
	s := core.ToString(value)
	for _, allowed := range values {
		if core.ToString(allowed) == s {
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	core.DateTimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	core.DateLayout,
}

// ParseTime accepts time.Time values and strings in the wire layouts.
func ParseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

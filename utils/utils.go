// Package utils holds helpers shared by the framework and applications:
// struct and record conversion, string casing, password hashing, symmetric
// encryption and shell execution.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/asaidimu/go-restful/core"
)

// StructToMap converts a struct into a Record using its json tags. Nested
// objects are kept as json.RawMessage so they are stored verbatim in JSON
// columns.
//
// Example:
//
//	type Group struct {
//		Name string `json:"name"`
//	}
//	rec, err := StructToMap(Group{Name: "ops"})
//	// rec == core.Record{"name": "ops"}
func StructToMap[T any](record T) (core.Record, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: failed to marshal input record to JSON: %w", err)
	}
	var tempMap map[string]any
	if err := json.Unmarshal(jsonBytes, &tempMap); err != nil {
		return nil, fmt.Errorf("StructToMap: failed to unmarshal JSON to temporary map: %w", err)
	}

	result := make(core.Record, len(tempMap))
	for key, v := range tempMap {
		if nested, ok := v.(map[string]any); ok {
			nestedBytes, err := json.Marshal(nested)
			if err != nil {
				return nil, fmt.Errorf("StructToMap: error re-marshaling nested map for key '%s': %w", key, err)
			}
			result[key] = json.RawMessage(nestedBytes)
			continue
		}
		result[key] = v
	}
	return result, nil
}

// MapToStruct decodes a Record into a new T through its json tags. T must be
// a struct or a pointer to a struct. Timestamps travel as RFC 3339 so they
// decode into time.Time fields.
func MapToStruct[T any](input core.Record) (T, error) {
	var zero T
	if input == nil {
		return zero, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	jsonBytes, err := json.Marshal(map[string]any(input))
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to marshal input map to JSON: %w", err)
	}
	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}

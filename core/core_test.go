package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid parameter", &InvalidParameterError{Field: "__limit", Message: "not a number"}, http.StatusBadRequest},
		{"unknown field", &UnknownFieldError{Model: "Task", Field: "x"}, http.StatusBadRequest},
		{"validation", &ValidationError{Path: "name", Message: "required"}, http.StatusBadRequest},
		{"authentication", &AuthenticationError{Message: "Invalid password"}, http.StatusUnauthorized},
		{"permission", &PermissionError{Message: "no"}, http.StatusForbidden},
		{"not found", &NotFoundError{Resource: "tasks", ID: 3}, http.StatusNotFound},
		{"storage", &StorageError{Kind: "Database error", Message: "x"}, http.StatusBadRequest},
		{"wrapped", fmt.Errorf("list: %w", &PermissionError{Message: "no"}), http.StatusForbidden},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, StatusCode(tt.err))
		})
	}
	assert.Equal(t, "Internal server error", ErrorTitle(errors.New("boom")))
	assert.Equal(t, "Resource not found", ErrorTitle(&NotFoundError{Resource: "tasks"}))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `invalid parameter "__limit": not a number`, (&InvalidParameterError{Field: "__limit", Message: "not a number"}).Error())
	assert.Equal(t, "name: required", (&ValidationError{Path: "name", Message: "required"}).Error())
	assert.Equal(t, "required", (&ValidationError{Path: "(root)", Message: "required"}).Error())
	assert.Equal(t, "tasks '3' not found", (&NotFoundError{Resource: "tasks", ID: 3}).Error())
	assert.Equal(t, "tasks not found", (&NotFoundError{Resource: "tasks"}).Error())
}

func TestNewStorageError(t *testing.T) {
	assert.NoError(t, NewStorageError(nil))

	typed := &ValidationError{Message: "bad"}
	assert.Same(t, typed, NewStorageError(typed))

	driver := &pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "users_username_key"`}
	err := NewStorageError(fmt.Errorf("%w\nINSERT INTO users (username) VALUES ($1)", driver))
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Database integrity error", se.Kind)
	assert.NotContains(t, se.Message, "INSERT")
	assert.Contains(t, se.Message, "duplicate key value")
	assert.ErrorIs(t, err, driver)

	err = NewStorageError(&pq.Error{Code: "42P01", Message: `relation "x" does not exist`})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Database operational error", se.Kind)

	err = NewStorageError(errors.New("connection refused"))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Database error", se.Kind)
	assert.Equal(t, "Database error: connection refused", err.Error())
}

func TestRecord_MarshalJSON(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	rec := Record{"id": id, "created_at": at, "updated_at": (*time.Time)(nil), "raw": []byte("x"), "n": 2}

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","created_at":"2024-03-09 14:05:07","updated_at":null,"raw":"x","n":2}`, string(out))

	out, err = json.Marshal(Records(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestRecord_Without(t *testing.T) {
	rec := Record{"username": "ann", "password": "hash"}
	out := rec.Without("password")
	assert.Equal(t, Record{"username": "ann"}, out)
	assert.Contains(t, rec, "password")
	assert.Nil(t, Record(nil).Copy())
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		i    int64
		iok  bool
		b    bool
		bok  bool
	}{
		{"int", 1, 1, true, true, true},
		{"zero string", "0", 0, true, false, true},
		{"padded string", " 42 ", 42, true, false, false},
		{"whole float", float64(7), 7, true, false, false},
		{"fraction", 1.5, 0, false, false, false},
		{"bool word", "yes", 0, false, true, true},
		{"bool", false, 0, false, false, true},
		{"nil", nil, 0, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, ok := ToInt64(tt.in)
			assert.Equal(t, tt.iok, ok)
			if ok {
				assert.Equal(t, tt.i, i)
			}
			b, ok := ToBool(tt.in)
			assert.Equal(t, tt.bok, ok)
			if ok {
				assert.Equal(t, tt.b, b)
			}
		})
	}

	f, ok := ToFloat64("2.5")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "12", ToString(int64(12)))
	assert.Equal(t, "ab", ToString([]byte("ab")))
}

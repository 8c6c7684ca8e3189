package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in    string
		words []string
		snake string
	}{
		{"AuthUser", []string{"Auth", "User"}, "auth_user"},
		{"authUser", []string{"auth", "User"}, "auth_user"},
		{"HTTPServer", []string{"HTTPServer"}, "httpserver"},
		{"UserID", []string{"User", "ID"}, "user_id"},
		{"user", []string{"user"}, "user"},
		{"", []string{""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.words, ToWords(tt.in))
			assert.Equal(t, tt.snake, ToSnakeCase(tt.in))
		})
	}
}

func TestUUIDString(t *testing.T) {
	assert.Len(t, UUIDString(true), 36)
	plain := UUIDString(false)
	assert.Len(t, plain, 32)
	assert.NotContains(t, plain, "-")
}

func TestNormalizeUUID(t *testing.T) {
	plain, ok := NormalizeUUID("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	assert.True(t, ok)
	assert.Equal(t, "6ba7b8109dad11d180b400c04fd430c8", plain)

	plain, ok = NormalizeUUID("6ba7b8109dad11d180b400c04fd430c8")
	assert.True(t, ok)
	assert.Equal(t, "6ba7b8109dad11d180b400c04fd430c8", plain)

	_, ok = NormalizeUUID("not-a-uuid")
	assert.False(t, ok)
}

package utils

import (
	"strings"

	"github.com/google/uuid"
)

// ToWords splits a CamelCase identifier into words. A run of capitals stays
// attached to the word that follows it, so "HTTPServer" is one word.
func ToWords(s string) []string {
	var words []string
	i, j := 0, 0
	upperRun := true
	for _, r := range s {
		size := len(string(r))
		isUpper := r >= 'A' && r <= 'Z'
		if !upperRun {
			if isUpper {
				words = append(words, s[i:j])
				i = j
				upperRun = true
			}
		} else if !isUpper {
			upperRun = false
		}
		j += size
	}
	if i != j {
		words = append(words, s[i:j])
	} else {
		words = append(words, s)
	}
	return words
}

// ToSnakeCase converts a CamelCase identifier to snake_case.
func ToSnakeCase(s string) string {
	return strings.ToLower(strings.Join(ToWords(s), "_"))
}

// UUIDString returns a random UUID, with or without hyphens.
func UUIDString(withHyphen bool) string {
	id := uuid.New()
	if withHyphen {
		return id.String()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// NormalizeUUID accepts a UUID in hyphenated or plain form and returns the
// 32-character plain form.
func NormalizeUUID(s string) (string, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return strings.ReplaceAll(id.String(), "-", ""), true
}

package schema

import (
	"strings"

	"github.com/asaidimu/go-restful/utils"
)

// TableName derives a table name from a model name: "AuthUser" becomes
// "auth_users" and "Category" becomes "categories".
func TableName(model string) string {
	return pluralize(utils.ToSnakeCase(model))
}

func pluralize(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

// FindField returns the definition of a column or nil.
func (m *ModelDefinition) FindField(name string) *FieldDefinition {
	return m.Fields[name]
}

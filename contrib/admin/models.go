// Package admin provides user, group and token management: the auth tables,
// the login and logout endpoints, the authentication backends that read the
// tables and a janitor that purges expired tokens.
package admin

import (
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/schema"
)

// Audit actions.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// AuthUser is the user table. Passwords are bcrypt hashes and never leave
// the server.
var AuthUser = schema.NewModel("AuthUser",
	schema.IDAndTimeColumns(),
	schema.UserColumns(),
	schema.Field("username", schema.FieldTypeString, schema.Length(63), schema.Required(), schema.Unique(), schema.Indexed()),
	schema.Field("password", schema.FieldTypeString, schema.Length(255), schema.Hidden()),
	schema.Field("first_name", schema.FieldTypeString, schema.Length(31)),
	schema.Field("last_name", schema.FieldTypeString, schema.Length(15)),
	schema.Field("company", schema.FieldTypeString, schema.Length(63)),
	schema.Field("department", schema.FieldTypeString, schema.Length(63)),
	schema.Field("telephone", schema.FieldTypeString, schema.Length(31)),
	schema.Field("email", schema.FieldTypeString, schema.Length(63)),
	schema.Field("address", schema.FieldTypeString, schema.Length(127)),
	schema.Field("group_id", schema.FieldTypeInteger, schema.Indexed()),
	schema.Field("admin", schema.FieldTypeBoolean, schema.Default(false)),
	schema.Field("system", schema.FieldTypeBoolean, schema.Default(false)),
	schema.Field("enabled", schema.FieldTypeBoolean, schema.Default(true)),
)

var AuthGroup = schema.NewModel("AuthGroup",
	schema.IDAndTimeColumns(),
	schema.Field("name", schema.FieldTypeString, schema.Length(63), schema.Required(), schema.Unique(), schema.Indexed()),
)

// AuthToken is a login token. expired_at is stored in UTC.
var AuthToken = schema.NewModel("AuthToken",
	schema.IncrementalID(),
	schema.Field("user_id", schema.FieldTypeInteger, schema.Required()),
	schema.Field("token", schema.FieldTypeString, schema.Length(63), schema.Required(), schema.Indexed()),
	schema.Field("expired_at", schema.FieldTypeDateTime, schema.Required(), schema.Indexed()),
)

var AuthAudit = schema.NewModel("AuthAudit",
	schema.IDAndTimeColumns(),
	schema.Field("user_id", schema.FieldTypeInteger, schema.Required(), schema.Indexed()),
	schema.Field("username", schema.FieldTypeString, schema.Length(63), schema.Required()),
	schema.Field("action", schema.FieldTypeEnum, schema.Length(15), schema.Required(), schema.Values(ActionLogin, ActionLogout)),
)

// Models lists the admin models.
func Models() []*schema.ModelDefinition {
	return []*schema.ModelDefinition{AuthUser, AuthGroup, AuthToken, AuthAudit}
}

// Register adds the admin models to a registry.
func Register(reg *persistence.Registry) error {
	return reg.Register(Models()...)
}

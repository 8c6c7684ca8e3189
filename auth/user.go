// Package auth identifies the caller of a request. Authentication backends
// turn request credentials into a User; resources try their backends in
// order and the first one that matches decides.
package auth

import (
	"context"

	"github.com/asaidimu/go-restful/core"
)

// User is the authenticated caller.
type User interface {
	ID() any
	Username() string
	Group() any
	IsAuthenticated() bool
	IsAdmin() bool
	// Info returns the user's public attributes.
	Info() core.Record
}

// AnonymousUser is the caller when no backend matched.
type AnonymousUser struct{}

var _ User = AnonymousUser{}

func (AnonymousUser) ID() any               { return nil }
func (AnonymousUser) Username() string      { return "" }
func (AnonymousUser) Group() any            { return nil }
func (AnonymousUser) IsAuthenticated() bool { return false }
func (AnonymousUser) IsAdmin() bool         { return false }
func (AnonymousUser) Info() core.Record     { return core.Record{} }

// RecordUser is a user backed by a stored record with the columns id,
// username, group_id and admin.
type RecordUser struct {
	record core.Record
}

var _ User = (*RecordUser)(nil)

// SecretFields never leave a RecordUser through Info.
var SecretFields = []string{"password"}

// NewRecordUser wraps a user record.
func NewRecordUser(record core.Record) *RecordUser {
	return &RecordUser{record: record.Copy()}
}

func (u *RecordUser) ID() any               { return u.record["id"] }
func (u *RecordUser) Group() any            { return u.record["group_id"] }
func (u *RecordUser) IsAuthenticated() bool { return true }

func (u *RecordUser) Username() string {
	s, _ := u.record["username"].(string)
	return s
}

func (u *RecordUser) IsAdmin() bool {
	b, _ := core.ToBool(u.record["admin"])
	return b
}

// Get returns any attribute of the record.
func (u *RecordUser) Get(key string) any {
	return u.record[key]
}

func (u *RecordUser) Info() core.Record {
	return u.record.Without(SecretFields...)
}

type userKey struct{}

// WithUser stores the caller in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the caller stored in ctx, or AnonymousUser.
func FromContext(ctx context.Context) User {
	if u, ok := ctx.Value(userKey{}).(User); ok && u != nil {
		return u
	}
	return AnonymousUser{}
}

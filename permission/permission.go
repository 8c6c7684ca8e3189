// Package permission decides whether an authenticated caller may operate a
// resource. Policies compose into a small boolean tree with And, Or and Not.
package permission

import (
	"net/http"

	"github.com/asaidimu/go-restful/auth"
)

// Policy grants or denies one request.
type Policy interface {
	HasPermission(r *http.Request, user auth.User) bool
}

// Func adapts a function to Policy.
type Func func(r *http.Request, user auth.User) bool

func (f Func) HasPermission(r *http.Request, user auth.User) bool { return f(r, user) }

type and struct{ left, right Policy }

func (p and) HasPermission(r *http.Request, user auth.User) bool {
	return p.left.HasPermission(r, user) && p.right.HasPermission(r, user)
}

type or struct{ left, right Policy }

func (p or) HasPermission(r *http.Request, user auth.User) bool {
	return p.left.HasPermission(r, user) || p.right.HasPermission(r, user)
}

type not struct{ inner Policy }

func (p not) HasPermission(r *http.Request, user auth.User) bool {
	return !p.inner.HasPermission(r, user)
}

// And grants when both policies grant.
func And(left, right Policy) Policy { return and{left, right} }

// Or grants when either policy grants.
func Or(left, right Policy) Policy { return or{left, right} }

// Not inverts a policy.
func Not(p Policy) Policy { return not{p} }

// Any grants when one of the policies grants. An empty list grants.
type Any []Policy

func (ps Any) HasPermission(r *http.Request, user auth.User) bool {
	if len(ps) == 0 {
		return true
	}
	for _, p := range ps {
		if p.HasPermission(r, user) {
			return true
		}
	}
	return false
}

// Check applies p with a nil policy allowing everything.
func Check(p Policy, r *http.Request, user auth.User) bool {
	if p == nil {
		return true
	}
	if user == nil {
		user = auth.AnonymousUser{}
	}
	return p.HasPermission(r, user)
}

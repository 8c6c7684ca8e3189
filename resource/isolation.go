package resource

import (
	"net/http"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
)

// IsolationPolicy computes the row restrictions of one request.
type IsolationPolicy interface {
	IsolationFilters(r *http.Request, user auth.User) ([]query.QueryFilter, error)
}

// IsolationFunc adapts a function to IsolationPolicy.
type IsolationFunc func(r *http.Request, user auth.User) ([]query.QueryFilter, error)

func (f IsolationFunc) IsolationFilters(r *http.Request, user auth.User) ([]query.QueryFilter, error) {
	return f(r, user)
}

// IsolationByUser limits non-admin callers to the rows they created.
type IsolationByUser struct {
	// Field holds the creator id. Default "created_by".
	Field string
}

func (p IsolationByUser) IsolationFilters(_ *http.Request, user auth.User) ([]query.QueryFilter, error) {
	if user != nil && user.IsAdmin() {
		return nil, nil
	}
	if user == nil || !user.IsAuthenticated() || user.ID() == nil {
		return nil, &core.PermissionError{Message: "Not allowed to operate the resource"}
	}
	return []query.QueryFilter{query.Equal(p.column(), user.ID())}, nil
}

func (p IsolationByUser) column() string {
	if p.Field == "" {
		return "created_by"
	}
	return p.Field
}

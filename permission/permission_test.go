package permission

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/stretchr/testify/assert"
)

func TestPolicies(t *testing.T) {
	anon := auth.AnonymousUser{}
	member := auth.NewRecordUser(core.Record{"id": 1, "username": "ann"})
	admin := auth.NewRecordUser(core.Record{"id": 2, "username": "root", "admin": true})

	tests := []struct {
		name   string
		policy Policy
		method string
		user   auth.User
		want   bool
	}{
		{"allow any anonymous", AllowAny, http.MethodPost, anon, true},
		{"authenticated rejects anonymous", IsAuthenticated, http.MethodGet, anon, false},
		{"authenticated accepts member", IsAuthenticated, http.MethodGet, member, true},
		{"admin rejects member", IsAdminUser, http.MethodGet, member, false},
		{"admin accepts admin", IsAdminUser, http.MethodDelete, admin, true},
		{"read only get", IsAuthenticatedOrReadOnly, http.MethodGet, anon, true},
		{"read only options", IsAuthenticatedOrReadOnly, http.MethodOptions, anon, true},
		{"read only post anonymous", IsAuthenticatedOrReadOnly, http.MethodPost, anon, false},
		{"read only post member", IsAuthenticatedOrReadOnly, http.MethodPost, member, true},
		{"and", And(IsAuthenticated, IsAdminUser), http.MethodGet, member, false},
		{"or", Or(IsAdminUser, IsAuthenticatedOrReadOnly), http.MethodGet, anon, true},
		{"not", Not(IsAdminUser), http.MethodGet, member, true},
		{"nested", Or(IsAdminUser, And(IsAuthenticated, Not(IsAuthenticatedOrReadOnly))), http.MethodGet, member, false},
		{"empty any", Any{}, http.MethodPost, anon, true},
		{"any denies", Any{IsAdminUser, IsAuthenticated}, http.MethodPost, anon, false},
		{"any grants", Any{IsAdminUser, IsAuthenticated}, http.MethodPost, member, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			assert.Equal(t, tt.want, Check(tt.policy, r, tt.user))
		})
	}
}

func TestCheck_Defaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.True(t, Check(nil, r, nil))
	assert.False(t, Check(IsAuthenticated, r, nil))
}

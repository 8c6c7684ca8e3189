package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/utils"
)

const basicPrefix = "Basic "

// UserLookup finds a user and the bcrypt hash of their password. A nil user
// means the username is unknown.
type UserLookup func(ctx context.Context, username string) (User, string, error)

// BasicAuthentication checks "Authorization: Basic" credentials.
type BasicAuthentication struct {
	Lookup UserLookup
}

var _ Authentication = (*BasicAuthentication)(nil)

func (b *BasicAuthentication) Match(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), basicPrefix)
}

func (b *BasicAuthentication) Authenticate(r *http.Request) (User, error) {
	username, password, ok := parseBasic(r.Header.Get("Authorization"))
	if !ok {
		return nil, &core.AuthenticationError{Message: "Invalid basic credentials"}
	}
	user, hash, err := b.Lookup(r.Context(), username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &core.AuthenticationError{Message: "Invalid username"}
	}
	if !utils.CheckPassword(password, hash) {
		return nil, &core.AuthenticationError{Message: "Invalid password"}
	}
	return user, nil
}

func parseBasic(header string) (string, string, bool) {
	if !strings.HasPrefix(header, basicPrefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(basicPrefix):]))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}

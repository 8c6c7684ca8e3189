package auth

import (
	"net/http"

	"github.com/asaidimu/go-restful/core"
)

// Authentication is one way of identifying a caller.
type Authentication interface {
	// Match reports whether the request carries this backend's credentials.
	Match(r *http.Request) bool
	// Authenticate returns the caller. A nil user with a nil error means the
	// credentials identify nobody.
	Authenticate(r *http.Request) (User, error)
}

// Authenticate runs the first backend that matches r. With no backends the
// caller is anonymous. A request no backend accepts fails with
// "Incorrect credentials".
func Authenticate(r *http.Request, backends []Authentication) (User, error) {
	if len(backends) == 0 {
		return AnonymousUser{}, nil
	}
	for _, b := range backends {
		if !b.Match(r) {
			continue
		}
		user, err := b.Authenticate(r)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
		break
	}
	return nil, &core.AuthenticationError{Message: "Incorrect credentials"}
}

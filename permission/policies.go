package permission

import (
	"net/http"

	"github.com/asaidimu/go-restful/auth"
)

// SafeMethods never modify a resource.
var SafeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

var (
	// AllowAny grants every request.
	AllowAny Policy = Func(func(*http.Request, auth.User) bool { return true })

	// IsAuthenticated grants authenticated callers.
	IsAuthenticated Policy = Func(func(_ *http.Request, u auth.User) bool {
		return u != nil && u.IsAuthenticated()
	})

	// IsAdminUser grants admin callers.
	IsAdminUser Policy = Func(func(_ *http.Request, u auth.User) bool {
		return u != nil && u.IsAdmin()
	})

	// IsAuthenticatedOrReadOnly grants safe methods to anyone and everything
	// else to authenticated callers.
	IsAuthenticatedOrReadOnly Policy = Func(func(r *http.Request, u auth.User) bool {
		return SafeMethods[r.Method] || (u != nil && u.IsAuthenticated())
	})
)

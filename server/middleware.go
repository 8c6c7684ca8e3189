package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/permission"
	"github.com/asaidimu/go-restful/resource"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// chain applies middleware so the first one is outermost.
func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

func recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrap(w)
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Error("Recovered from panic",
						zap.Any("panic", p),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					if !rw.written {
						writeJSON(rw, http.StatusInternalServerError, ErrorBody{Title: "Internal server error"})
					}
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

func logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			rw := wrap(w)
			next.ServeHTTP(rw, r)

			logger.Info("Request handled",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// CORS answers preflight requests and sets the allow headers for permitted
// origins. "*" allows every origin.
type CORS struct {
	origins  map[string]bool
	allowAll bool
}

// NewCORS returns the CORS middleware for origins.
func NewCORS(origins []string) *CORS {
	c := &CORS{origins: make(map[string]bool)}
	for _, o := range origins {
		if o == "*" {
			c.allowAll = true
		}
		c.origins[strings.TrimSuffix(o, "/")] = true
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	return origin != "" && (c.allowAll || c.origins[origin])
}

func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if c.allowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+auth.TokenHeader+", "+RequestIDHeader)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", "3600")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter keeps a token bucket per client address. The number of
// tracked clients is bounded; the least recently seen are forgotten.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
	logger   *zap.Logger
}

// DefaultRateLimitClients bounds the tracked clients.
const DefaultRateLimitClients = 10000

// NewRateLimiter allows rps requests per second per client with bursts of
// burst.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger) (*RateLimiter, error) {
	cache, err := lru.New[string, *rate.Limiter](DefaultRateLimitClients)
	if err != nil {
		return nil, err
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{limit: rate.Limit(rps), burst: burst, limiters: cache, logger: logger}, nil
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if l, ok := rl.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	if prev, ok, _ := rl.limiters.PeekOrAdd(key, l); ok {
		return prev
	}
	return l
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.limiter(key).Allow() {
			rl.logger.Warn("Rate limit exceeded", zap.String("client", key), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", strconv.Itoa(1))
			writeJSON(w, http.StatusTooManyRequests, ErrorBody{
				Title:       "Too many requests",
				Description: "Rate limit exceeded, retry later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the caller with the resource's backends.
func authenticate(res *resource.Resource, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r, res.Authentications)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// authorize applies the resource's permission policy.
func authorize(res *resource.Resource, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permission.Check(res.Permission, r, auth.FromContext(r.Context())) {
				writeError(w, logger, &core.PermissionError{Message: "Not allowed to operate the resource"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/asaidimu/go-restful/cache"
	"github.com/asaidimu/go-restful/core"
	"go.uber.org/zap"
)

// TokenHeader carries login tokens.
const TokenHeader = "X-AUTH-TOKEN"

// DefaultTokenCacheMax bounds how long a resolved token stays cached.
const DefaultTokenCacheMax = 1800 * time.Second

// Token is a stored login token.
type Token struct {
	ID        any
	UserID    any
	Value     string
	ExpiredAt time.Time
}

// TokenStore resolves login tokens. Lookups return nil when nothing matches.
type TokenStore interface {
	LookupToken(ctx context.Context, value string) (*Token, error)
	LookupUser(ctx context.Context, id any) (core.Record, error)
	RevokeToken(ctx context.Context, id any) error
}

// TokenCacheKey is the cache key of a resolved token.
func TokenCacheKey(value string) string {
	return "auth:token:" + value
}

// TokenAuthentication resolves the X-AUTH-TOKEN header through a TokenStore.
// Resolved users are cached when a cache is set.
type TokenAuthentication struct {
	Store    TokenStore
	Cache    *cache.Client
	MaxCache time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

var _ Authentication = (*TokenAuthentication)(nil)

func (t *TokenAuthentication) Match(r *http.Request) bool {
	return r.Header.Get(TokenHeader) != ""
}

func (t *TokenAuthentication) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *TokenAuthentication) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *TokenAuthentication) Authenticate(r *http.Request) (User, error) {
	ctx := r.Context()
	value := r.Header.Get(TokenHeader)

	if t.Cache != nil {
		var record core.Record
		if t.Cache.Get(ctx, TokenCacheKey(value), &record) {
			return NewRecordUser(record), nil
		}
	}

	token, err := t.Store.LookupToken(ctx, value)
	if err != nil {
		return nil, err
	}
	invalid := &core.AuthenticationError{Message: "Invalid user token"}
	if token == nil {
		return nil, invalid
	}
	remaining := token.ExpiredAt.Sub(t.now())
	if remaining <= 0 {
		if err := t.Store.RevokeToken(ctx, token.ID); err != nil {
			t.logger().Warn("Failed to delete expired token", zap.Any("token_id", token.ID), zap.Error(err))
		}
		return nil, invalid
	}

	record, err := t.Store.LookupUser(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, invalid
	}
	user := NewRecordUser(record.Without(SecretFields...))
	user.record["token"] = value

	if t.Cache != nil {
		limit := t.MaxCache
		if limit <= 0 {
			limit = DefaultTokenCacheMax
		}
		if remaining < limit {
			limit = remaining
		}
		if err := t.Cache.Set(ctx, TokenCacheKey(value), user.record, limit); err != nil {
			t.logger().Warn("Failed to cache token", zap.Error(err))
		}
	}
	return user, nil
}

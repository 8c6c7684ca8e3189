package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/cache"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/asaidimu/go-restful/utils"
	"go.uber.org/zap"
)

// Store reads and writes the admin tables. It implements auth.TokenStore.
type Store struct {
	users  *persistence.Model
	groups *persistence.Model
	tokens *persistence.Model
	audits *persistence.Model
}

var _ auth.TokenStore = (*Store)(nil)

// NewStore binds the admin models to an engine.
func NewStore(engine *persistence.Engine) *Store {
	return &Store{
		users:  engine.Model(AuthUser),
		groups: engine.Model(AuthGroup),
		tokens: engine.Model(AuthToken),
		audits: engine.Model(AuthAudit),
	}
}

// Engine returns the engine the store runs on.
func (s *Store) Engine() *persistence.Engine {
	return s.users.Engine()
}

// NewUser is a user built in code, e.g. by the createuser command.
type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
	System   bool   `json:"system"`
	GroupID  *int64 `json:"group_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserInfo is the typed view of an AuthUser row without its password.
type UserInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	GroupID   *int64 `json:"group_id"`
	Admin     bool   `json:"admin"`
	System    bool   `json:"system"`
	Enabled   bool   `json:"enabled"`
}

// AddUser stores u through CreateUser.
func (s *Store) AddUser(ctx context.Context, sess persistence.Session, u NewUser) (*UserInfo, error) {
	data, err := utils.StructToMap(u)
	if err != nil {
		return nil, err
	}
	record, err := s.CreateUser(ctx, sess, data)
	if err != nil {
		return nil, err
	}
	return toUserInfo(record)
}

// User returns the named user, or nil when there is none.
func (s *Store) User(ctx context.Context, sess persistence.Session, username string) (*UserInfo, error) {
	record, err := s.UserByName(ctx, sess, username)
	if err != nil || record == nil {
		return nil, err
	}
	return toUserInfo(record)
}

func toUserInfo(record core.Record) (*UserInfo, error) {
	row := record.Without(auth.SecretFields...)
	for _, key := range []string{"admin", "system", "enabled"} {
		if v, ok := row[key]; ok && v != nil {
			b, _ := core.ToBool(v)
			row[key] = b
		}
	}
	for _, key := range []string{"created_at", "updated_at"} {
		delete(row, key)
	}
	return utils.MapToStruct[*UserInfo](row)
}

// UserByName returns the user with the given username, or nil.
func (s *Store) UserByName(ctx context.Context, sess persistence.Session, username string) (core.Record, error) {
	return s.users.ShowBy(ctx, sess, query.Equal("username", username))
}

// GroupExists reports whether a group with id exists.
func (s *Store) GroupExists(ctx context.Context, sess persistence.Session, id any) (bool, error) {
	return s.groups.Exist(ctx, sess, query.Equal("id", id))
}

// CreateUser hashes the raw password and stores the user.
func (s *Store) CreateUser(ctx context.Context, sess persistence.Session, data core.Record) (core.Record, error) {
	row := data.Copy()
	if raw, ok := row["password"].(string); ok {
		if err := CheckPasswordPolicy(raw); err != nil {
			return nil, err
		}
		hashed, err := hashPassword(raw)
		if err != nil {
			return nil, err
		}
		row["password"] = hashed
	}
	return s.users.Create(ctx, sess, row)
}

// SetPassword replaces the password of a user.
func (s *Store) SetPassword(ctx context.Context, sess persistence.Session, username, raw string) error {
	if err := CheckPasswordPolicy(raw); err != nil {
		return err
	}
	hashed, err := hashPassword(raw)
	if err != nil {
		return err
	}
	rows, err := s.users.UpdateBy(ctx, sess, core.Record{"password": hashed}, query.Equal("username", username))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &core.NotFoundError{Resource: "User", ID: username}
	}
	return nil
}

// IssueToken stores a new token for user valid for ttl.
func (s *Store) IssueToken(ctx context.Context, sess persistence.Session, user core.Record, ttl time.Duration, now time.Time) (core.Record, error) {
	return s.tokens.Create(ctx, sess, core.Record{
		"user_id":    user["id"],
		"token":      newToken(user),
		"expired_at": now.UTC().Add(ttl),
	})
}

// DeleteToken removes a token by value.
func (s *Store) DeleteToken(ctx context.Context, sess persistence.Session, value string) ([]core.Record, error) {
	return s.tokens.DeleteBy(ctx, sess, query.Equal("token", value))
}

// DeleteExpiredTokens removes every token that expired before now.
func (s *Store) DeleteExpiredTokens(ctx context.Context, sess persistence.Session, now time.Time) ([]core.Record, error) {
	return s.tokens.DeleteBy(ctx, sess, query.Where(query.ComparisonOperatorLt, "expired_at", now.UTC()))
}

// Audit records a login or logout.
func (s *Store) Audit(ctx context.Context, sess persistence.Session, user core.Record, action string) error {
	_, err := s.audits.Create(ctx, sess, core.Record{
		"user_id":  user["id"],
		"username": user["username"],
		"action":   action,
	})
	return err
}

// LookupToken implements auth.TokenStore.
func (s *Store) LookupToken(ctx context.Context, value string) (*auth.Token, error) {
	record, err := s.tokens.ShowBy(ctx, nil, query.Equal("token", value))
	if err != nil || record == nil {
		return nil, err
	}
	expiredAt, ok := schema.ParseTime(record["expired_at"])
	if !ok {
		return nil, fmt.Errorf("token %v has an unreadable expiry %v", record["id"], record["expired_at"])
	}
	// The column carries no zone; read the wall clock back as UTC.
	expiredAt = time.Date(expiredAt.Year(), expiredAt.Month(), expiredAt.Day(),
		expiredAt.Hour(), expiredAt.Minute(), expiredAt.Second(), expiredAt.Nanosecond(), time.UTC)
	return &auth.Token{
		ID:        record["id"],
		UserID:    record["user_id"],
		Value:     core.ToString(record["token"]),
		ExpiredAt: expiredAt,
	}, nil
}

// LookupUser implements auth.TokenStore. Disabled users are not returned.
func (s *Store) LookupUser(ctx context.Context, id any) (core.Record, error) {
	record, err := s.users.Show(ctx, nil, id)
	if err != nil || record == nil {
		return nil, err
	}
	if !enabled(record) {
		return nil, nil
	}
	return record, nil
}

// RevokeToken implements auth.TokenStore.
func (s *Store) RevokeToken(ctx context.Context, id any) error {
	_, err := s.tokens.Delete(ctx, nil, id)
	return err
}

// LookupCredentials resolves basic credentials against the user table.
func (s *Store) LookupCredentials(ctx context.Context, username string) (auth.User, string, error) {
	record, err := s.UserByName(ctx, nil, username)
	if err != nil || record == nil || !enabled(record) {
		return nil, "", err
	}
	hash := core.ToString(record["password"])
	return auth.NewRecordUser(record.Without(auth.SecretFields...)), hash, nil
}

func enabled(record core.Record) bool {
	v, ok := record["enabled"]
	if !ok || v == nil {
		return true
	}
	b, _ := core.ToBool(v)
	return b
}

// BackendOptions tunes the authentication backends.
type BackendOptions struct {
	// Cache holds resolved tokens. Nil disables caching.
	Cache *cache.Client
	// TokenCacheMax caps how long a token stays cached.
	TokenCacheMax time.Duration
	Logger        *zap.Logger
}

// Backends returns the token and basic authentication backends reading the
// admin tables, in that order.
func (s *Store) Backends(opts BackendOptions) []auth.Authentication {
	logger := opts.Logger
	if logger == nil {
		logger = s.Engine().Logger()
	}
	return []auth.Authentication{
		&auth.TokenAuthentication{
			Store:    s,
			Cache:    opts.Cache,
			MaxCache: opts.TokenCacheMax,
			Logger:   logger,
		},
		&auth.BasicAuthentication{Lookup: s.LookupCredentials},
	}
}

package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/asaidimu/go-restful/core"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Claims are the JWT claims issued for a user.
type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	Group    any    `json:"group,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthentication checks HS256 bearer tokens and issues them.
type JWTAuthentication struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

var _ Authentication = (*JWTAuthentication)(nil)

func (j *JWTAuthentication) Match(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), bearerPrefix)
}

func (j *JWTAuthentication) Authenticate(r *http.Request) (User, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), bearerPrefix))
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, &core.AuthenticationError{Message: "Invalid bearer token"}
	}
	if j.Issuer != "" && claims.Issuer != j.Issuer {
		return nil, &core.AuthenticationError{Message: "Invalid bearer token"}
	}
	return NewRecordUser(core.Record{
		"id":       claims.Subject,
		"username": claims.Username,
		"group_id": claims.Group,
		"admin":    claims.Admin,
	}), nil
}

// Issue signs a token for user.
func (j *JWTAuthentication) Issue(user User) (string, error) {
	now := time.Now()
	ttl := j.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	claims := Claims{
		Username: user.Username(),
		Admin:    user.IsAdmin(),
		Group:    user.Group(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   core.ToString(user.ID()),
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

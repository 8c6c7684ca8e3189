package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MakePassword hashes a raw password with bcrypt at the default cost.
func MakePassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether raw matches a hash made by MakePassword.
func CheckPassword(raw, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// Token returns 32 hex characters mixing a random UUID, the given parts and
// the current time.
func Token(parts ...any) string {
	var sb strings.Builder
	sb.WriteString(uuid.NewString())
	for _, p := range parts {
		fmt.Fprintf(&sb, "|%v", p)
	}
	fmt.Fprintf(&sb, "|%d", time.Now().UnixNano())
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

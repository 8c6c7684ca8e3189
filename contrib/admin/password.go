package admin

import (
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/asaidimu/go-restful/utils"
)

// CheckPasswordPolicy applies the password format rules to a raw password.
func CheckPasswordPolicy(raw string) error {
	if !schema.IsStrongPassword(raw) {
		return &core.ValidationError{
			Path:    "password",
			Message: "Password needs 8 characters with an upper-case letter, a lower-case letter, a digit and a symbol",
		}
	}
	return nil
}

func hashPassword(raw string) (string, error) {
	return utils.MakePassword(raw)
}

func newToken(user core.Record) string {
	return utils.Token(user["username"], user["company"], user["department"])
}

func checkPassword(raw, hash string) bool {
	return utils.CheckPassword(raw, hash)
}

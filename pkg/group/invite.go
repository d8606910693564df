package group

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashInviteCode returns a one-way hash of an invite code.
func HashInviteCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyInviteCode reports whether code matches hash.
func VerifyInviteCode(code, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}

// normalizeInviteCode trims surrounding whitespace. Codes longer than bcrypt's
// 72 byte input limit are rejected rather than silently truncated.
func normalizeInviteCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) > 72 {
		return "", errors.New("invite code must be at most 72 bytes")
	}
	return code, nil
}

package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced at registration.
const MinPasswordLength = 8

// dummyHash lets CheckPassword spend bcrypt time even when the account is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("meetup-ops-dummy"), bcrypt.DefaultCost)

// HashPassword hashes a plain password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares plain password with hashed password. An empty hash is compared
// against a dummy so unknown and soft-deleted accounts take the same time to reject.
func CheckPassword(plain, hashed string) bool {
	if hashed == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}

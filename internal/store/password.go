package store

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash stored for an employee or administrator.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword returns nil when secret matches hash.
func VerifyPassword(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

// unknown logins are compared against this hash so a miss costs as much as a wrong password
var dummyHash = sync.OnceValue(func() string {
	h, _ := HashPassword("stockhub-dummy-secret")
	return h
})

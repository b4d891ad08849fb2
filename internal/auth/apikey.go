package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost factor used for API key hashing
const DefaultCost = bcrypt.DefaultCost

// HashKey generates the bcrypt hash stored in auth.api_key_hash
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// CheckKey compares a presented API key with a bcrypt hash
func CheckKey(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}

package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Hashes passwords and PINs. Input is pre-hashed with sha256 so secrets longer than 72 bytes are not truncated.
// Zero Cost means bcrypt.DefaultCost
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	digest := sha256.Sum256([]byte(secret))
	hash, err := bcrypt.GenerateFromPassword(digest[:], cost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashed string, secret string) error {
	digest := sha256.Sum256([]byte(secret))
	return bcrypt.CompareHashAndPassword([]byte(hashed), digest[:])
}

// Package credential provides password hashing and email verification codes
// for Arx.
//
// Passwords are hashed with bcrypt at a configurable work factor.
// Verification uses a precomputed dummy hash so a lookup miss and a wrong
// password take the same time, keeping account enumeration out of the
// timing channel.
package credential

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// DummyHash is a bcrypt hash of a random throwaway value, generated once at
// process start. Compare against it when no user matches a lookup so that
// "user not found" and "wrong password" are indistinguishable in timing.
// It can never verify any presented password.
var DummyHash = newDummyHash()

func newDummyHash() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.StdEncoding.EncodeToString(raw)), DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	return string(bytes), err
}

func (h *BcryptHasher) Compare(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Package auth implements extension pairing for the local daemon.
//
// The browser extension and the daemon share a pairing key configured out of
// band. The daemon never stores the key itself, only an Argon2id digest
// computed at startup, and verifies the key presented on each request in
// constant time.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// Pairing verifies the shared extension key. A nil Pairing (no key
// configured) accepts every request.
type Pairing struct {
	encoded string
}

// NewPairing digests the configured key. Returns nil when key is empty,
// which disables pairing checks entirely.
func NewPairing(key string) (*Pairing, error) {
	if key == "" {
		return nil, nil
	}
	encoded, err := hashKey(key)
	if err != nil {
		return nil, err
	}
	return &Pairing{encoded: encoded}, nil
}

// Verify checks a presented key against the configured digest.
func (p *Pairing) Verify(key string) bool {
	if p == nil {
		return true
	}
	ok, err := verifyKey(key, p.encoded)
	return err == nil && ok
}

// hashKey hashes a pairing key using Argon2id.
func hashKey(key string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("%s$%s",
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// verifyKey checks a pairing key against an Argon2id digest.
func verifyKey(key, encoded string) (bool, error) {
	parts := strings.SplitN(encoded, "$", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("auth: invalid digest format")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("auth: decode salt: %w", err)
	}

	expected, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("auth: decode digest: %w", err)
	}

	computed := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(expected, computed) == 1, nil
}

package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const MasterKeyLength = 32

// Argon2idKey derives a 32-byte key from a passphrase.
// The passphrase must already be normalized (see Normalize).
func Argon2idKey(passphrase string, salt []byte, passes, memoryKiB uint32, lanes uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, passes, memoryKiB, lanes, MasterKeyLength)
}

// PBKDF2SHA256Key derives a 32-byte key from a passphrase.
// The passphrase must already be normalized (see Normalize).
func PBKDF2SHA256Key(passphrase string, salt []byte, iterations uint32) ([]byte, error) {
	if iterations == 0 {
		return nil, fmt.Errorf("pbkdf2 iteration count must be positive")
	}
	return pbkdf2.Key([]byte(passphrase), salt, int(iterations), MasterKeyLength, sha256.New), nil
}

// Package crypto provides the key-derivation engine and key material types
// for the vault: master keys derived from the account password and user keys
// that encrypt vault records.
package crypto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keyfold/keyfold/internal/util"
)

// Algorithm identifies a password-based key derivation function.
type Algorithm int

const (
	PBKDF2SHA256 Algorithm = iota
	Argon2id
)

// ErrUnknownAlgorithm is returned when an unrecognized KDF algorithm is encountered.
var ErrUnknownAlgorithm = errors.New("unknown kdf algorithm")

func (a Algorithm) String() string {
	switch a {
	case PBKDF2SHA256:
		return "PBKDF2-SHA256"
	case Argon2id:
		return "Argon2id"
	default:
		return "Unknown"
	}
}

func (a Algorithm) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Algorithm) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshaling kdf algorithm: %w", err)
	}

	switch s {
	case "PBKDF2-SHA256":
		*a = PBKDF2SHA256
	case "Argon2id":
		*a = Argon2id
	default:
		return ErrUnknownAlgorithm
	}

	return nil
}

// Security floors. Parameters below these values are rejected with
// ErrWeakParameters rather than silently deriving a weak key.
const (
	MinSaltLength       = 16
	MinPBKDF2Iterations = 600_000
	MinArgon2Passes     = 3
	MinArgon2MemoryKiB  = 64 * 1024
	MinArgon2Lanes      = 1
)

// KdfParams are the public parameters for deriving a MasterKey from a
// password. They are immutable once assigned to an account and are stored
// server-side in plaintext; nothing in them is secret.
type KdfParams struct {
	Algorithm   Algorithm `json:"algorithm"`
	Iterations  uint32    `json:"iterations"`
	MemoryKiB   uint32    `json:"memoryKiB,omitempty"`
	Parallelism uint8     `json:"parallelism,omitempty"`
	Salt        []byte    `json:"salt"`
}

// DefaultKdfParams returns Argon2id parameters for a new account with a
// fresh random salt.
func DefaultKdfParams() (KdfParams, error) {
	salt, err := util.RandomBytes(MinSaltLength)
	if err != nil {
		return KdfParams{}, fmt.Errorf("generating kdf salt: %w", err)
	}
	return KdfParams{
		Algorithm:   Argon2id,
		Iterations:  MinArgon2Passes,
		MemoryKiB:   MinArgon2MemoryKiB,
		Parallelism: 4,
		Salt:        salt,
	}, nil
}

// Validate checks the parameters against the security floors.
func (p KdfParams) Validate() error {
	if len(p.Salt) < MinSaltLength {
		return fmt.Errorf("salt length %d below minimum %d: %w", len(p.Salt), MinSaltLength, ErrWeakParameters)
	}
	switch p.Algorithm {
	case PBKDF2SHA256:
		if p.Iterations < MinPBKDF2Iterations {
			return fmt.Errorf("pbkdf2 iterations %d below minimum %d: %w", p.Iterations, MinPBKDF2Iterations, ErrWeakParameters)
		}
	case Argon2id:
		if p.Iterations < MinArgon2Passes {
			return fmt.Errorf("argon2id passes %d below minimum %d: %w", p.Iterations, MinArgon2Passes, ErrWeakParameters)
		}
		if p.MemoryKiB < MinArgon2MemoryKiB {
			return fmt.Errorf("argon2id memory %d KiB below minimum %d: %w", p.MemoryKiB, MinArgon2MemoryKiB, ErrWeakParameters)
		}
		if p.Parallelism < MinArgon2Lanes {
			return fmt.Errorf("argon2id lanes %d below minimum %d: %w", p.Parallelism, MinArgon2Lanes, ErrWeakParameters)
		}
	default:
		return ErrUnknownAlgorithm
	}
	return nil
}

// DeriveMasterKey derives a 32-byte MasterKey from a password and KDF
// parameters. Identical inputs always yield an identical key; the password
// is NFKD-normalized before derivation. Any failure from the underlying
// primitive is reported as a *KeyDerivationError.
func DeriveMasterKey(password string, params KdfParams) (*MasterKey, error) {
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	normalized := util.Normalize(password)

	var raw []byte
	switch params.Algorithm {
	case PBKDF2SHA256:
		key, err := util.PBKDF2SHA256Key(normalized, params.Salt, params.Iterations)
		if err != nil {
			return nil, &KeyDerivationError{Algorithm: params.Algorithm, Err: err}
		}
		raw = key
	case Argon2id:
		raw = util.Argon2idKey(normalized, params.Salt, params.Iterations, params.MemoryKiB, params.Parallelism)
	default:
		return nil, ErrUnknownAlgorithm
	}

	return newMasterKey(raw), nil
}

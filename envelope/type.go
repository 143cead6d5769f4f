// Package envelope provides the authenticated-encryption container used for
// every ciphertext the vault stores: a self-describing envelope carrying the
// cipher identifier, nonce, ciphertext, and MAC where the cipher needs one.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/keyfold/keyfold/internal/util"
)

// Type identifies the cipher variant an envelope was sealed with.
type Type int

const (
	AES256CBCHMAC Type = iota
	XChaCha20Poly1305
)

// ErrUnknownType is returned when an unrecognized cipher type is encountered.
var ErrUnknownType = errors.New("unknown envelope type")

func (t Type) String() string {
	switch t {
	case AES256CBCHMAC:
		return "AES256-CBC-HMAC-SHA256"
	case XChaCha20Poly1305:
		return "XCHACHA20-POLY1305"
	default:
		return "Unknown"
	}
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshaling envelope type: %w", err)
	}

	switch s {
	case "AES256-CBC-HMAC-SHA256":
		*t = AES256CBCHMAC
	case "XCHACHA20-POLY1305":
		*t = XChaCha20Poly1305
	default:
		return ErrUnknownType
	}

	return nil
}

// KeySize returns the key length the variant expects: 64 bytes when a
// separate MAC key is required, 32 otherwise. Seal and Open also accept a
// 32-byte key for the CBC+HMAC variant, expanding it with HKDF.
func (t Type) KeySize() int {
	switch t {
	case AES256CBCHMAC:
		return 64
	case XChaCha20Poly1305:
		return chacha20poly1305.KeySize
	default:
		return 0
	}
}

func (t Type) nonceSize() int {
	switch t {
	case AES256CBCHMAC:
		return util.AESCBCIVSize
	case XChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX
	default:
		return 0
	}
}

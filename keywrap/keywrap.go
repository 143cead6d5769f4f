// Package keywrap wraps and unwraps the long-lived user key under a
// password-derived master key. Unwrapping is the only path from a password
// to the user key, so changing the password only re-wraps; no record is
// ever re-encrypted.
package keywrap

import (
	"errors"
	"fmt"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/internal/util"
)

// ErrInvalidMasterPassword is returned when unwrapping fails its integrity
// check. This is the one place in the system where a cryptographic failure
// is surfaced as a password mismatch.
var ErrInvalidMasterPassword = errors.New("invalid master password")

// WrappedUserKey is a user key encrypted under a master key. It is the
// at-rest form of the user key and is safe to persist and transmit.
type WrappedUserKey struct {
	envelope.Envelope
}

// NewUserKey generates a user key sized for the given envelope variant.
func NewUserKey(typ envelope.Type) (*crypto.UserKey, error) {
	size := typ.KeySize()
	if size == 0 {
		return nil, envelope.ErrUnknownType
	}
	return crypto.NewUserKey(size)
}

// WrapUserKey encrypts the user key under the master key using the given
// envelope variant.
func WrapUserKey(userKey *crypto.UserKey, masterKey *crypto.MasterKey, typ envelope.Type) (*WrappedUserKey, error) {
	raw := userKey.Bytes()
	defer util.WipeBytes(raw)
	mk := masterKey.Bytes()
	defer util.WipeBytes(mk)

	env, err := envelope.Seal(raw, mk, typ)
	if err != nil {
		return nil, fmt.Errorf("wrapping user key: %w", err)
	}
	return &WrappedUserKey{Envelope: *env}, nil
}

// UnwrapUserKey decrypts a wrapped user key with the master key. An
// authentication failure means the master key does not match, i.e. the
// password was wrong, and is reported as ErrInvalidMasterPassword.
func UnwrapUserKey(wrapped *WrappedUserKey, masterKey *crypto.MasterKey) (*crypto.UserKey, error) {
	if wrapped == nil {
		return nil, fmt.Errorf("wrapped user key must not be nil")
	}
	mk := masterKey.Bytes()
	defer util.WipeBytes(mk)

	raw, err := envelope.Open(&wrapped.Envelope, mk)
	if err != nil {
		if errors.Is(err, envelope.ErrAuthenticationFailed) {
			return nil, ErrInvalidMasterPassword
		}
		return nil, fmt.Errorf("unwrapping user key: %w", err)
	}
	defer util.WipeBytes(raw)

	return crypto.UserKeyFromBytes(raw)
}

// RotateMasterPassword re-wraps the user key under a master key derived from
// a new password, optionally with upgraded KDF parameters. The input wrapped
// key is never modified: on any failure the caller still holds the old valid
// wrap, so the operation is atomic from the caller's perspective.
func RotateMasterPassword(oldPassword, newPassword string, oldParams, newParams crypto.KdfParams, wrapped *WrappedUserKey) (*WrappedUserKey, error) {
	oldMaster, err := crypto.DeriveMasterKey(oldPassword, oldParams)
	if err != nil {
		return nil, err
	}
	defer oldMaster.Destroy()

	userKey, err := UnwrapUserKey(wrapped, oldMaster)
	if err != nil {
		return nil, err
	}
	defer userKey.Destroy()

	newMaster, err := crypto.DeriveMasterKey(newPassword, newParams)
	if err != nil {
		return nil, err
	}
	defer newMaster.Destroy()

	return WrapUserKey(userKey, newMaster, wrapped.EncryptionType)
}

package crypto

import (
	"fmt"

	"github.com/keyfold/keyfold/internal/util"
)

const (
	// MasterKeySize is the size of a derived master key.
	MasterKeySize = util.MasterKeyLength
	// MinUserKeySize and MaxUserKeySize bound the user key length: 32 bytes
	// for AEAD ciphers, 64 when the cipher needs a separate MAC key.
	MinUserKeySize = 32
	MaxUserKeySize = 64
)

// MasterKey is symmetric key material derived from the account password.
// It exists only in process memory and is never persisted or transmitted.
// Call Destroy when done to wipe the key bytes.
type MasterKey struct {
	bytes []byte
}

func newMasterKey(raw []byte) *MasterKey {
	return &MasterKey{bytes: raw}
}

// Bytes returns a copy of the key material. Callers should wipe the copy
// when done (util.WipeBytes).
func (k *MasterKey) Bytes() []byte {
	return util.CopyBytes(k.bytes)
}

// Destroy wipes the key material. The key must not be reused afterwards.
func (k *MasterKey) Destroy() {
	util.WipeBytes(k.bytes)
	k.bytes = nil
}

// UserKey is the long-lived symmetric key that encrypts vault records.
// Generated once at account creation and constant for the account's
// lifetime unless explicitly rotated. At rest it exists only wrapped
// under a MasterKey; in memory only inside an active session.
type UserKey struct {
	bytes []byte
}

// NewUserKey generates a fresh random user key of the given size.
func NewUserKey(size int) (*UserKey, error) {
	if size < MinUserKeySize || size > MaxUserKeySize {
		return nil, fmt.Errorf("user key size %d outside allowed range [%d, %d]", size, MinUserKeySize, MaxUserKeySize)
	}
	raw, err := util.RandomBytes(size)
	if err != nil {
		return nil, fmt.Errorf("generating user key: %w", err)
	}
	return &UserKey{bytes: raw}, nil
}

// UserKeyFromBytes reconstructs a UserKey from raw bytes, copying them.
func UserKeyFromBytes(raw []byte) (*UserKey, error) {
	if len(raw) < MinUserKeySize || len(raw) > MaxUserKeySize {
		return nil, fmt.Errorf("user key size %d outside allowed range [%d, %d]", len(raw), MinUserKeySize, MaxUserKeySize)
	}
	return &UserKey{bytes: util.CopyBytes(raw)}, nil
}

// Bytes returns a copy of the key material. Callers should wipe the copy
// when done (util.WipeBytes).
func (k *UserKey) Bytes() []byte {
	return util.CopyBytes(k.bytes)
}

// Len returns the key length in bytes.
func (k *UserKey) Len() int {
	return len(k.bytes)
}

// Destroy wipes the key material. The key must not be reused afterwards.
func (k *UserKey) Destroy() {
	util.WipeBytes(k.bytes)
	k.bytes = nil
}

// Package storage provides the persistence boundary for encrypted vault
// data. Implementations only ever see ciphertext: keyslots, sealed cipher
// records, and sealed folder names.
package storage

import (
	"errors"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/keywrap"
	"github.com/keyfold/keyfold/vault"
)

var (
	// ErrNotFound is returned when a record or folder does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAccountNotFound is returned when no keyslot exists for an account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by CreateKeyslot when the account
	// already has a keyslot.
	ErrAccountExists = errors.New("account already exists")
)

// Keyslot is everything a client needs before it can unlock: the KDF
// parameters to derive the master key and the user key wrapped under it.
// A master password rotation replaces the whole keyslot in one write.
type Keyslot struct {
	AccountID string                 `json:"accountId"`
	Params    crypto.KdfParams       `json:"kdfParams"`
	Wrapped   keywrap.WrappedUserKey `json:"wrappedUserKey"`
}

// Clone returns a deep copy of the keyslot.
func (k *Keyslot) Clone() *Keyslot {
	if k == nil {
		return nil
	}
	cp := &Keyslot{
		AccountID: k.AccountID,
		Params:    k.Params,
		Wrapped:   keywrap.WrappedUserKey{Envelope: *k.Wrapped.Envelope.Clone()},
	}
	cp.Params.Salt = append([]byte(nil), k.Params.Salt...)
	return cp
}

// Repository stores encrypted vault data for accounts. All returned values
// are copies; callers may mutate them freely. Implementations must be safe
// for concurrent use.
type Repository interface {
	// CreateKeyslot stores the keyslot for a new account. It fails with
	// ErrAccountExists if one is already present.
	CreateKeyslot(keyslot *Keyslot) error
	// PutKeyslot replaces an account's keyslot in a single atomic write.
	PutKeyslot(keyslot *Keyslot) error
	GetKeyslot(accountID string) (*Keyslot, error)

	PutRecord(accountID string, record *vault.EncryptedCipherRecord) error
	GetRecord(accountID, recordID string) (*vault.EncryptedCipherRecord, error)
	// ListRecords returns the account's records ordered by ID.
	ListRecords(accountID string) ([]vault.EncryptedCipherRecord, error)
	DeleteRecord(accountID, recordID string) error

	PutFolder(accountID string, folder *vault.EncryptedFolder) error
	GetFolder(accountID, folderID string) (*vault.EncryptedFolder, error)
	// ListFolders returns the account's folders ordered by ID.
	ListFolders(accountID string) ([]vault.EncryptedFolder, error)
	DeleteFolder(accountID, folderID string) error
}

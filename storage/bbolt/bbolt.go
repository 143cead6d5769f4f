// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

const (
	keyslotKey   = "KEYSLOT"
	recordPrefix = "RECORD:"
	folderPrefix = "FOLDER:"
)

// Store implements storage.Repository backed by a BBolt database. Each
// account gets its own bucket; values are JSON.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and
// returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func accountBucket(tx *bbolt.Tx, accountID string) (*bbolt.Bucket, error) {
	return tx.CreateBucketIfNotExists([]byte(accountID))
}

func (s *Store) CreateKeyslot(keyslot *storage.Keyslot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := accountBucket(tx, keyslot.AccountID)
		if err != nil {
			return err
		}
		if b.Get([]byte(keyslotKey)) != nil {
			return storage.ErrAccountExists
		}
		data, err := json.Marshal(keyslot)
		if err != nil {
			return err
		}
		return b.Put([]byte(keyslotKey), data)
	})
}

func (s *Store) PutKeyslot(keyslot *storage.Keyslot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := accountBucket(tx, keyslot.AccountID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(keyslot)
		if err != nil {
			return err
		}
		return b.Put([]byte(keyslotKey), data)
	})
}

func (s *Store) GetKeyslot(accountID string) (*storage.Keyslot, error) {
	var keyslot storage.Keyslot
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(accountID))
		if b == nil {
			return fmt.Errorf("%s: %w", accountID, storage.ErrAccountNotFound)
		}
		data := b.Get([]byte(keyslotKey))
		if data == nil {
			return fmt.Errorf("%s: %w", accountID, storage.ErrAccountNotFound)
		}
		return json.Unmarshal(data, &keyslot)
	})
	if err != nil {
		return nil, err
	}
	return &keyslot, nil
}

func (s *Store) PutRecord(accountID string, record *vault.EncryptedCipherRecord) error {
	return s.put(accountID, recordPrefix+record.ID, record)
}

func (s *Store) GetRecord(accountID, recordID string) (*vault.EncryptedCipherRecord, error) {
	var record vault.EncryptedCipherRecord
	if err := s.get(accountID, recordPrefix+recordID, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ListRecords(accountID string) ([]vault.EncryptedCipherRecord, error) {
	var records []vault.EncryptedCipherRecord
	err := s.list(accountID, recordPrefix, func(data []byte) error {
		var record vault.EncryptedCipherRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	return records, err
}

func (s *Store) DeleteRecord(accountID, recordID string) error {
	return s.delete(accountID, recordPrefix+recordID)
}

func (s *Store) PutFolder(accountID string, folder *vault.EncryptedFolder) error {
	return s.put(accountID, folderPrefix+folder.ID, folder)
}

func (s *Store) GetFolder(accountID, folderID string) (*vault.EncryptedFolder, error) {
	var folder vault.EncryptedFolder
	if err := s.get(accountID, folderPrefix+folderID, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

func (s *Store) ListFolders(accountID string) ([]vault.EncryptedFolder, error) {
	var folders []vault.EncryptedFolder
	err := s.list(accountID, folderPrefix, func(data []byte) error {
		var folder vault.EncryptedFolder
		if err := json.Unmarshal(data, &folder); err != nil {
			return err
		}
		folders = append(folders, folder)
		return nil
	})
	return folders, err
}

func (s *Store) DeleteFolder(accountID, folderID string) error {
	return s.delete(accountID, folderPrefix+folderID)
}

func (s *Store) put(accountID, key string, value any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := accountBucket(tx, accountID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *Store) get(accountID, key string, out any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(accountID))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", accountID, key, storage.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", accountID, key, storage.ErrNotFound)
		}
		return json.Unmarshal(data, out)
	})
}

// list visits every value under prefix in key order, so results come back
// ordered by ID.
func (s *Store) list(accountID, prefix string, visit func(data []byte) error) error {
	p := []byte(prefix)
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(accountID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := visit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) delete(accountID, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(accountID))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", accountID, key, storage.ErrNotFound)
		}
		if b.Get([]byte(key)) == nil {
			return fmt.Errorf("%s/%s: %w", accountID, key, storage.ErrNotFound)
		}
		return b.Delete([]byte(key))
	})
}

// Package memory provides a thread-safe in-memory implementation of
// storage.Repository. Suitable for testing, demos, and single-process use.
package memory

import (
	"sort"
	"sync"

	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

type account struct {
	keyslot *storage.Keyslot
	records map[string]*vault.EncryptedCipherRecord
	folders map[string]*vault.EncryptedFolder
}

// Repository is a thread-safe in-memory implementation of storage.Repository.
type Repository struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{accounts: make(map[string]*account)}
}

func cloneFolder(f *vault.EncryptedFolder) *vault.EncryptedFolder {
	if f == nil {
		return nil
	}
	return &vault.EncryptedFolder{ID: f.ID, Name: *f.Name.Clone()}
}

func (r *Repository) account(accountID string) *account {
	a, ok := r.accounts[accountID]
	if !ok {
		a = &account{
			records: make(map[string]*vault.EncryptedCipherRecord),
			folders: make(map[string]*vault.EncryptedFolder),
		}
		r.accounts[accountID] = a
	}
	return a
}

func (r *Repository) CreateKeyslot(keyslot *storage.Keyslot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[keyslot.AccountID]; ok && a.keyslot != nil {
		return storage.ErrAccountExists
	}
	r.account(keyslot.AccountID).keyslot = keyslot.Clone()
	return nil
}

func (r *Repository) PutKeyslot(keyslot *storage.Keyslot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account(keyslot.AccountID).keyslot = keyslot.Clone()
	return nil
}

func (r *Repository) GetKeyslot(accountID string) (*storage.Keyslot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok || a.keyslot == nil {
		return nil, storage.ErrAccountNotFound
	}
	return a.keyslot.Clone(), nil
}

func (r *Repository) PutRecord(accountID string, record *vault.EncryptedCipherRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account(accountID).records[record.ID] = record.Clone()
	return nil
}

func (r *Repository) GetRecord(accountID, recordID string) (*vault.EncryptedCipherRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	record, ok := a.records[recordID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return record.Clone(), nil
}

func (r *Repository) ListRecords(accountID string) ([]vault.EncryptedCipherRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, nil
	}
	records := make([]vault.EncryptedCipherRecord, 0, len(a.records))
	for _, record := range a.records {
		records = append(records, *record.Clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (r *Repository) DeleteRecord(accountID, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := a.records[recordID]; !ok {
		return storage.ErrNotFound
	}
	delete(a.records, recordID)
	return nil
}

func (r *Repository) PutFolder(accountID string, folder *vault.EncryptedFolder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account(accountID).folders[folder.ID] = cloneFolder(folder)
	return nil
}

func (r *Repository) GetFolder(accountID, folderID string) (*vault.EncryptedFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	folder, ok := a.folders[folderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneFolder(folder), nil
}

func (r *Repository) ListFolders(accountID string) ([]vault.EncryptedFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, nil
	}
	folders := make([]vault.EncryptedFolder, 0, len(a.folders))
	for _, folder := range a.folders {
		folders = append(folders, *cloneFolder(folder))
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

func (r *Repository) DeleteFolder(accountID, folderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := a.folders[folderID]; !ok {
		return storage.ErrNotFound
	}
	delete(a.folders, folderID)
	return nil
}

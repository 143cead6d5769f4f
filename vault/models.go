// Package vault holds the client-side vault core: the cipher codec that maps
// entries and folders to independently encrypted fields, the session state
// machine that guards the in-memory user key, and the batch decryption
// pipeline used to render entry lists.
package vault

import (
	"github.com/keyfold/keyfold/envelope"
)

// CustomField is a user-defined name/value pair carried inside an entry's
// encrypted data blob.
type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EntryData is the structured payload of an entry. It is serialized to JSON
// and encrypted as a single blob: one cryptographic operation per record
// rather than one per subfield.
type EntryData struct {
	Username     string        `json:"username,omitempty"`
	Secret       string        `json:"secret,omitempty"`
	URL          string        `json:"url,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// PlaintextEntry is a fully decrypted vault entry.
type PlaintextEntry struct {
	ID       string    `json:"id"`
	FolderID string    `json:"folderId,omitempty"`
	Favorite bool      `json:"favorite"`
	Name     string    `json:"name"`
	Data     EntryData `json:"data"`
	Notes    string    `json:"notes,omitempty"`
}

// EncryptedCipherRecord is the at-rest form of an entry. Name, Data, and
// Notes are sealed independently so that failure to open one does not
// prevent recovering the others. ID, FolderID, and Favorite are
// non-sensitive metadata and stay plaintext.
type EncryptedCipherRecord struct {
	ID       string             `json:"id"`
	FolderID string             `json:"folderId,omitempty"`
	Favorite bool               `json:"favorite"`
	Name     envelope.Envelope  `json:"name"`
	Data     envelope.Envelope  `json:"data"`
	Notes    *envelope.Envelope `json:"notes,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *EncryptedCipherRecord) Clone() *EncryptedCipherRecord {
	if r == nil {
		return nil
	}
	return &EncryptedCipherRecord{
		ID:       r.ID,
		FolderID: r.FolderID,
		Favorite: r.Favorite,
		Name:     *r.Name.Clone(),
		Data:     *r.Data.Clone(),
		Notes:    r.Notes.Clone(),
	}
}

// Folder is a decrypted folder.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EncryptedFolder is the at-rest form of a folder.
type EncryptedFolder struct {
	ID   string            `json:"id"`
	Name envelope.Envelope `json:"name"`
}

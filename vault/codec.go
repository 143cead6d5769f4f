package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/internal/util"
)

// Codec maps entries and folders to and from their independently encrypted
// field envelopes. Keys are passed explicitly on every call; the codec holds
// no mutable state and is safe for concurrent use.
type Codec struct {
	typ envelope.Type
}

// NewCodec returns a codec sealing new envelopes with the given variant.
// Open self-selects the variant from each envelope's own tag, so a codec
// can decrypt records sealed with either variant.
func NewCodec(typ envelope.Type) *Codec {
	return &Codec{typ: typ}
}

// EnvelopeType returns the variant used for new seals.
func (c *Codec) EnvelopeType() envelope.Type {
	return c.typ
}

// EncryptEntry seals an entry into a cipher record. Name, the JSON-encoded
// data payload, and notes (when present) each get their own Seal call, so
// the three envelopes carry three independent fresh nonces. An entry
// without an ID is assigned one.
func (c *Codec) EncryptEntry(entry PlaintextEntry, userKey *crypto.UserKey) (*EncryptedCipherRecord, error) {
	key := userKey.Bytes()
	defer util.WipeBytes(key)

	nameEnv, err := envelope.Seal([]byte(entry.Name), key, c.typ)
	if err != nil {
		return nil, fmt.Errorf("sealing entry name: %w", err)
	}

	payload, err := json.Marshal(entry.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding entry data: %w", err)
	}
	defer util.WipeBytes(payload)

	dataEnv, err := envelope.Seal(payload, key, c.typ)
	if err != nil {
		return nil, fmt.Errorf("sealing entry data: %w", err)
	}

	record := &EncryptedCipherRecord{
		ID:       entry.ID,
		FolderID: entry.FolderID,
		Favorite: entry.Favorite,
		Name:     *nameEnv,
		Data:     *dataEnv,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if entry.Notes != "" {
		notesEnv, err := envelope.Seal([]byte(entry.Notes), key, c.typ)
		if err != nil {
			return nil, fmt.Errorf("sealing entry notes: %w", err)
		}
		record.Notes = notesEnv
	}

	return record, nil
}

// DecryptEntry opens each envelope of a record independently. Fields that
// open successfully are always populated in the returned entry, even when
// another field fails; the returned error joins the per-field failures and
// matches envelope.ErrAuthenticationFailed via errors.Is.
func (c *Codec) DecryptEntry(record *EncryptedCipherRecord, userKey *crypto.UserKey) (PlaintextEntry, error) {
	entry := PlaintextEntry{
		ID:       record.ID,
		FolderID: record.FolderID,
		Favorite: record.Favorite,
	}

	key := userKey.Bytes()
	defer util.WipeBytes(key)

	var errs []error

	if name, err := envelope.Open(&record.Name, key); err != nil {
		errs = append(errs, fmt.Errorf("opening name envelope: %w", err))
	} else {
		entry.Name = string(name)
	}

	if payload, err := envelope.Open(&record.Data, key); err != nil {
		errs = append(errs, fmt.Errorf("opening data envelope: %w", err))
	} else if err := json.Unmarshal(payload, &entry.Data); err != nil {
		errs = append(errs, fmt.Errorf("decoding entry data: %w", err))
	}

	if record.Notes != nil {
		if notes, err := envelope.Open(record.Notes, key); err != nil {
			errs = append(errs, fmt.Errorf("opening notes envelope: %w", err))
		} else {
			entry.Notes = string(notes)
		}
	}

	return entry, errors.Join(errs...)
}

// EncryptFolderName seals a folder's name. A folder without an ID is
// assigned one.
func (c *Codec) EncryptFolderName(folder Folder, userKey *crypto.UserKey) (*EncryptedFolder, error) {
	key := userKey.Bytes()
	defer util.WipeBytes(key)

	nameEnv, err := envelope.Seal([]byte(folder.Name), key, c.typ)
	if err != nil {
		return nil, fmt.Errorf("sealing folder name: %w", err)
	}

	enc := &EncryptedFolder{ID: folder.ID, Name: *nameEnv}
	if enc.ID == "" {
		enc.ID = uuid.NewString()
	}
	return enc, nil
}

// DecryptFolderName opens a folder's name envelope.
func (c *Codec) DecryptFolderName(enc *EncryptedFolder, userKey *crypto.UserKey) (Folder, error) {
	key := userKey.Bytes()
	defer util.WipeBytes(key)

	name, err := envelope.Open(&enc.Name, key)
	if err != nil {
		return Folder{}, fmt.Errorf("opening folder name envelope: %w", err)
	}
	return Folder{ID: enc.ID, Name: string(name)}, nil
}

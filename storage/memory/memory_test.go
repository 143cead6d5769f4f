package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/keywrap"
	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

func testEnvelope(payload string) envelope.Envelope {
	return envelope.Envelope{
		Ver:            envelope.Version,
		EncryptionType: envelope.XChaCha20Poly1305,
		Nonce:          bytes.Repeat([]byte{0x01}, 24),
		Data:           []byte(payload),
	}
}

func testKeyslot(accountID string) *storage.Keyslot {
	return &storage.Keyslot{
		AccountID: accountID,
		Params: crypto.KdfParams{
			Algorithm:   crypto.Argon2id,
			Iterations:  crypto.MinArgon2Passes,
			MemoryKiB:   crypto.MinArgon2MemoryKiB,
			Parallelism: 1,
			Salt:        bytes.Repeat([]byte{0x02}, crypto.MinSaltLength),
		},
		Wrapped: keywrap.WrappedUserKey{Envelope: testEnvelope("wrapped-key")},
	}
}

func testRecord(id string) *vault.EncryptedCipherRecord {
	return &vault.EncryptedCipherRecord{
		ID:   id,
		Name: testEnvelope("name-" + id),
		Data: testEnvelope("data-" + id),
	}
}

func TestKeyslotLifecycle(t *testing.T) {
	r := NewRepository()

	if _, err := r.GetKeyslot("alice"); !errors.Is(err, storage.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	if err := r.CreateKeyslot(testKeyslot("alice")); err != nil {
		t.Fatalf("CreateKeyslot failed: %v", err)
	}
	if err := r.CreateKeyslot(testKeyslot("alice")); !errors.Is(err, storage.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	got, err := r.GetKeyslot("alice")
	if err != nil {
		t.Fatalf("GetKeyslot failed: %v", err)
	}
	if got.AccountID != "alice" {
		t.Errorf("expected account alice, got %s", got.AccountID)
	}

	// Rotation replaces the keyslot wholesale.
	rotated := testKeyslot("alice")
	rotated.Wrapped = keywrap.WrappedUserKey{Envelope: testEnvelope("rotated")}
	if err := r.PutKeyslot(rotated); err != nil {
		t.Fatalf("PutKeyslot failed: %v", err)
	}
	got, err = r.GetKeyslot("alice")
	if err != nil {
		t.Fatalf("GetKeyslot after rotation failed: %v", err)
	}
	if string(got.Wrapped.Data) != "rotated" {
		t.Errorf("expected rotated wrapped key, got %q", got.Wrapped.Data)
	}
}

func TestKeyslotIsolation(t *testing.T) {
	r := NewRepository()
	keyslot := testKeyslot("alice")
	if err := r.CreateKeyslot(keyslot); err != nil {
		t.Fatalf("CreateKeyslot failed: %v", err)
	}

	// Mutating the caller's copy must not affect the stored one.
	keyslot.Wrapped.Data[0] ^= 0xff
	got, err := r.GetKeyslot("alice")
	if err != nil {
		t.Fatalf("GetKeyslot failed: %v", err)
	}
	if string(got.Wrapped.Data) != "wrapped-key" {
		t.Errorf("stored keyslot was mutated through the caller's copy")
	}
}

func TestRecordCRUD(t *testing.T) {
	r := NewRepository()

	if _, err := r.GetRecord("alice", "r1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := r.PutRecord("alice", testRecord("r1")); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if err := r.PutRecord("alice", testRecord("r2")); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	got, err := r.GetRecord("alice", "r1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if string(got.Name.Data) != "name-r1" {
		t.Errorf("unexpected record payload %q", got.Name.Data)
	}

	records, err := r.ListRecords("alice")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "r1" || records[1].ID != "r2" {
		t.Errorf("expected [r1 r2], got %v", records)
	}

	if records, _ := r.ListRecords("bob"); len(records) != 0 {
		t.Errorf("expected no records for other account, got %d", len(records))
	}

	if err := r.DeleteRecord("alice", "r1"); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if err := r.DeleteRecord("alice", "r1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestFolderCRUD(t *testing.T) {
	r := NewRepository()

	folder := &vault.EncryptedFolder{ID: "f1", Name: testEnvelope("Work")}
	if err := r.PutFolder("alice", folder); err != nil {
		t.Fatalf("PutFolder failed: %v", err)
	}

	got, err := r.GetFolder("alice", "f1")
	if err != nil {
		t.Fatalf("GetFolder failed: %v", err)
	}
	if string(got.Name.Data) != "Work" {
		t.Errorf("unexpected folder payload %q", got.Name.Data)
	}

	folders, err := r.ListFolders("alice")
	if err != nil {
		t.Fatalf("ListFolders failed: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("expected 1 folder, got %d", len(folders))
	}

	if err := r.DeleteFolder("alice", "f1"); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	if _, err := r.GetFolder("alice", "f1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

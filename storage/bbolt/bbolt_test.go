package bbolt

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/keywrap"
	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault-test.db")
	s, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEnvelope(payload string) envelope.Envelope {
	return envelope.Envelope{
		Ver:            envelope.Version,
		EncryptionType: envelope.XChaCha20Poly1305,
		Nonce:          bytes.Repeat([]byte{0x01}, 24),
		Data:           []byte(payload),
	}
}

func testRecord(id string) *vault.EncryptedCipherRecord {
	return &vault.EncryptedCipherRecord{
		ID:   id,
		Name: testEnvelope("name-" + id),
		Data: testEnvelope("data-" + id),
	}
}

func TestBBoltStorage(t *testing.T) {
	s := newTestStore(t)

	keyslot := &storage.Keyslot{
		AccountID: "alice",
		Params: crypto.KdfParams{
			Algorithm:   crypto.Argon2id,
			Iterations:  crypto.MinArgon2Passes,
			MemoryKiB:   crypto.MinArgon2MemoryKiB,
			Parallelism: 1,
			Salt:        bytes.Repeat([]byte{0x02}, crypto.MinSaltLength),
		},
		Wrapped: keywrap.WrappedUserKey{Envelope: testEnvelope("wrapped-key")},
	}

	t.Run("Keyslot", func(t *testing.T) {
		if _, err := s.GetKeyslot("alice"); !errors.Is(err, storage.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		if err := s.CreateKeyslot(keyslot); err != nil {
			t.Fatalf("CreateKeyslot failed: %v", err)
		}
		if err := s.CreateKeyslot(keyslot); !errors.Is(err, storage.ErrAccountExists) {
			t.Fatalf("expected ErrAccountExists, got %v", err)
		}

		got, err := s.GetKeyslot("alice")
		if err != nil {
			t.Fatalf("GetKeyslot failed: %v", err)
		}
		if got.Params.Algorithm != crypto.Argon2id {
			t.Errorf("expected Argon2id params, got %v", got.Params.Algorithm)
		}
		if string(got.Wrapped.Data) != "wrapped-key" {
			t.Errorf("unexpected wrapped key payload %q", got.Wrapped.Data)
		}
	})

	t.Run("Records", func(t *testing.T) {
		if err := s.PutRecord("alice", testRecord("r2")); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
		if err := s.PutRecord("alice", testRecord("r1")); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}

		got, err := s.GetRecord("alice", "r1")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if string(got.Data.Data) != "data-r1" {
			t.Errorf("unexpected record payload %q", got.Data.Data)
		}

		records, err := s.ListRecords("alice")
		if err != nil {
			t.Fatalf("ListRecords failed: %v", err)
		}
		if len(records) != 2 || records[0].ID != "r1" || records[1].ID != "r2" {
			t.Errorf("expected [r1 r2] in key order, got %d records", len(records))
		}

		if err := s.DeleteRecord("alice", "r2"); err != nil {
			t.Fatalf("DeleteRecord failed: %v", err)
		}
		if _, err := s.GetRecord("alice", "r2"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Folders", func(t *testing.T) {
		folder := &vault.EncryptedFolder{ID: "f1", Name: testEnvelope("Work")}
		if err := s.PutFolder("alice", folder); err != nil {
			t.Fatalf("PutFolder failed: %v", err)
		}
		folders, err := s.ListFolders("alice")
		if err != nil {
			t.Fatalf("ListFolders failed: %v", err)
		}
		if len(folders) != 1 || folders[0].ID != "f1" {
			t.Errorf("expected [f1], got %d folders", len(folders))
		}
		if err := s.DeleteFolder("alice", "f1"); err != nil {
			t.Fatalf("DeleteFolder failed: %v", err)
		}
		if err := s.DeleteFolder("alice", "f1"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on double delete, got %v", err)
		}
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		if _, err := s.GetRecord("bob", "r1"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		records, err := s.ListRecords("bob")
		if err != nil || len(records) != 0 {
			t.Fatalf("expected empty list for unknown account, got %v, %v", records, err)
		}
	})
}

func TestBBoltReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault-test.db")

	s, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	if err := s.PutRecord("alice", testRecord("r1")); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("could not reopen db: %v", err)
	}
	defer s.Close()

	got, err := s.GetRecord("alice", "r1")
	if err != nil {
		t.Fatalf("GetRecord after reopen failed: %v", err)
	}
	if string(got.Name.Data) != "name-r1" {
		t.Errorf("unexpected payload after reopen %q", got.Name.Data)
	}
}

package vault

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/sync/singleflight"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/internal/util"
	"github.com/keyfold/keyfold/keywrap"
)

// State is the session's position in the Locked → Unlocking → Unlocked cycle.
type State int

const (
	StateLocked State = iota
	StateUnlocking
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "Locked"
	case StateUnlocking:
		return "Unlocking"
	case StateUnlocked:
		return "Unlocked"
	default:
		return "Unknown"
	}
}

// DefaultIdleTimeout is how long an unlocked session may sit idle before
// the watcher locks it.
const DefaultIdleTimeout = 15 * time.Minute

// Session holds the live user key for the duration of an unlocked vault
// session. While unlocked, the key lives in a memguard Enclave (encrypted
// at rest in memory) and is decrypted only for the span of a single
// operation. Sessions are explicitly constructed and owned by the caller;
// independent sessions never share key state.
//
// Callers must call Close when done with the session.
type Session struct {
	wrapped *keywrap.WrappedUserKey
	params  crypto.KdfParams
	codec   *Codec

	mu         sync.RWMutex
	state      State
	enclave    *memguard.Enclave
	unlockedAt time.Time
	closed     bool

	lastActivity atomic.Int64 // unix nanoseconds

	sf singleflight.Group

	idleTimeout   time.Duration
	watchInterval time.Duration
	clock         func() time.Time
	done          chan struct{}
}

// NewSession creates a locked session for an account's wrapped user key and
// KDF parameters. The idle watcher starts immediately when an idle timeout
// is configured (the default); it only acts while the session is unlocked.
func NewSession(wrapped *keywrap.WrappedUserKey, params crypto.KdfParams, opts ...SessionOption) *Session {
	s := &Session{
		wrapped:       wrapped,
		params:        params,
		codec:         NewCodec(envelope.XChaCha20Poly1305),
		state:         StateLocked,
		idleTimeout:   DefaultIdleTimeout,
		watchInterval: time.Second,
		clock:         time.Now,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleTimeout > 0 {
		go s.watchIdle()
	}
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UnlockedAt returns when the session was last unlocked, or the zero time
// if it is locked.
func (s *Session) UnlockedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unlockedAt
}

// LastActivity returns the time of the most recent key use or Touch, or
// the zero time if the session has never been unlocked.
func (s *Session) LastActivity() time.Time {
	n := s.lastActivity.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Touch records user interaction, deferring the idle timeout. The UI layer
// calls this on interaction signals that don't themselves touch the vault.
func (s *Session) Touch() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateUnlocked {
		s.lastActivity.Store(s.clock().UnixNano())
	}
}

// Unlock derives the master key from the password and unwraps the user key.
// It is single-flight: a second caller arriving while a derivation is in
// flight awaits that attempt's outcome instead of starting another KDF
// computation. On failure the session returns to Locked; it never rests
// in Unlocking.
func (s *Session) Unlock(ctx context.Context, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSessionClosed
	}
	if s.state == StateUnlocked {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	_, err, _ := s.sf.Do("unlock", func() (any, error) {
		return nil, s.unlock(password)
	})
	return err
}

func (s *Session) unlock(password string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateUnlocked {
		s.mu.Unlock()
		return nil
	}
	s.state = StateUnlocking
	s.mu.Unlock()

	master, err := crypto.DeriveMasterKey(password, s.params)
	if err != nil {
		s.toLocked()
		return err
	}
	defer master.Destroy()

	userKey, err := keywrap.UnwrapUserKey(s.wrapped, master)
	if err != nil {
		s.toLocked()
		return err
	}

	raw := userKey.Bytes()
	userKey.Destroy()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		util.WipeBytes(raw)
		return ErrSessionClosed
	}
	// NewEnclave encrypts raw in place and wipes the source slice.
	s.enclave = memguard.NewEnclave(raw)
	s.state = StateUnlocked
	now := s.clock()
	s.unlockedAt = now
	s.lastActivity.Store(now.UnixNano())
	return nil
}

func (s *Session) toLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

// Lock zeroizes the user key and returns the session to Locked. Safe to
// call in any state.
func (s *Session) Lock() {
	s.toLocked()
}

func (s *Session) lockLocked() {
	if s.enclave != nil {
		// Destroy a decrypted view so the plaintext copy is overwritten
		// now; the enclave ciphertext is unrecoverable once the reference
		// is dropped.
		if buf, err := s.enclave.Open(); err == nil {
			buf.Destroy()
		}
		s.enclave = nil
	}
	s.state = StateLocked
	s.unlockedAt = time.Time{}
	s.lastActivity.Store(0)
}

// Close locks the session, stops the idle watcher, and marks the session
// unusable. Subsequent operations return ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.lockLocked()
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) watchIdle() {
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			unlocked := s.state == StateUnlocked
			s.mu.RUnlock()
			if !unlocked {
				continue
			}
			last := s.LastActivity()
			if !last.IsZero() && s.clock().Sub(last) >= s.idleTimeout {
				s.Lock()
			}
		}
	}
}

// withUserKey runs fn with a decrypted user key. The read lock is held for
// the duration of fn, so a concurrent Lock waits until fn completes; a
// caller arriving after Lock observes ErrVaultLocked. Every use refreshes
// the activity timestamp.
func (s *Session) withUserKey(ctx context.Context, fn func(*crypto.UserKey) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateUnlocked {
		return ErrVaultLocked
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening user key enclave: %w", err)
	}
	defer buf.Destroy()

	userKey, err := crypto.UserKeyFromBytes(buf.Bytes())
	if err != nil {
		return err
	}
	defer userKey.Destroy()

	s.lastActivity.Store(s.clock().UnixNano())
	return fn(userKey)
}

// EncryptEntry seals an entry with the session's user key.
func (s *Session) EncryptEntry(ctx context.Context, entry PlaintextEntry) (*EncryptedCipherRecord, error) {
	var record *EncryptedCipherRecord
	err := s.withUserKey(ctx, func(userKey *crypto.UserKey) error {
		var err error
		record, err = s.codec.EncryptEntry(entry, userKey)
		return err
	})
	return record, err
}

// DecryptEntry opens a record with the session's user key.
func (s *Session) DecryptEntry(ctx context.Context, record *EncryptedCipherRecord) (PlaintextEntry, error) {
	var entry PlaintextEntry
	err := s.withUserKey(ctx, func(userKey *crypto.UserKey) error {
		var err error
		entry, err = s.codec.DecryptEntry(record, userKey)
		return err
	})
	return entry, err
}

// EncryptFolderName seals a folder name with the session's user key.
func (s *Session) EncryptFolderName(ctx context.Context, folder Folder) (*EncryptedFolder, error) {
	var enc *EncryptedFolder
	err := s.withUserKey(ctx, func(userKey *crypto.UserKey) error {
		var err error
		enc, err = s.codec.EncryptFolderName(folder, userKey)
		return err
	})
	return enc, err
}

// DecryptFolderName opens a folder name with the session's user key.
func (s *Session) DecryptFolderName(ctx context.Context, enc *EncryptedFolder) (Folder, error) {
	var folder Folder
	err := s.withUserKey(ctx, func(userKey *crypto.UserKey) error {
		var err error
		folder, err = s.codec.DecryptFolderName(enc, userKey)
		return err
	})
	return folder, err
}

// DecryptMany runs the batch decryption pipeline with the session's user
// key. Per-record failures are reported in the result, not as an error.
func (s *Session) DecryptMany(ctx context.Context, records []EncryptedCipherRecord, concurrency int) (*BatchResult, error) {
	var result *BatchResult
	err := s.withUserKey(ctx, func(userKey *crypto.UserKey) error {
		var err error
		result, err = s.codec.DecryptMany(ctx, records, userKey, concurrency)
		return err
	})
	return result, err
}

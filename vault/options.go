package vault

import (
	"time"

	"github.com/keyfold/keyfold/envelope"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithIdleTimeout sets how long the session may sit idle while unlocked
// before it locks itself and wipes the user key. Zero disables the idle
// watcher; explicit Lock still works.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.idleTimeout = d
	}
}

// WithWatchInterval sets how often the idle watcher checks for expiry.
func WithWatchInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.watchInterval = d
	}
}

// WithEnvelopeType sets the cipher variant used for new seals.
// Default: XChaCha20-Poly1305.
func WithEnvelopeType(typ envelope.Type) SessionOption {
	return func(s *Session) {
		s.codec = NewCodec(typ)
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.clock = now
	}
}

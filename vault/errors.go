package vault

import "errors"

var (
	// ErrVaultLocked indicates an operation was attempted with no live user
	// key. The caller should prompt for the master password and unlock.
	ErrVaultLocked = errors.New("vault is locked")
	// ErrSessionClosed indicates the session has been closed and can no
	// longer be unlocked.
	ErrSessionClosed = errors.New("session closed")
)

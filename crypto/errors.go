package crypto

import (
	"errors"
	"fmt"
)

// ErrWeakParameters is returned when KDF parameters fall below the
// minimum security floor. The engine refuses to derive a weak key.
var ErrWeakParameters = errors.New("kdf parameters below security floor")

// KeyDerivationError wraps a failure from an underlying KDF primitive.
// Primitive errors are never passed through unclassified.
type KeyDerivationError struct {
	Algorithm Algorithm
	Err       error
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("deriving master key (%s): %v", e.Algorithm, e.Err)
}

func (e *KeyDerivationError) Unwrap() error {
	return e.Err
}

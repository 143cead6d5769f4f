package envelope

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/keyfold/keyfold/internal/util"
)

// Version is the only supported envelope schema version.
const Version = 1

// ErrAuthenticationFailed is returned when an envelope fails its integrity
// check on Open. A wrong key, tampered ciphertext, and a corrupted envelope
// are deliberately indistinguishable: every internal failure collapses into
// this single error so callers cannot be used as a verification oracle.
var ErrAuthenticationFailed = errors.New("envelope authentication failed")

// Envelope is a sealed ciphertext container. Nonce holds the CBC IV or the
// XChaCha nonce depending on EncryptionType; MAC is empty for AEAD variants
// whose tag is embedded in Data.
type Envelope struct {
	Ver            int
	EncryptionType Type
	Nonce          []byte
	Data           []byte
	MAC            []byte
}

const (
	cbcEncInfo = "keyfold:cbc-enc:v1"
	cbcMACInfo = "keyfold:cbc-mac:v1"
)

// cbcSubkeys splits a 64-byte key into its encryption and MAC halves, or
// expands a 32-byte key into both with HKDF-SHA256. The returned slices are
// owned by the caller and should be wiped after use.
func cbcSubkeys(key []byte) (encKey, macKey []byte, err error) {
	switch len(key) {
	case 64:
		return util.CopyBytes(key[:32]), util.CopyBytes(key[32:]), nil
	case 32:
		encKey, err = util.HKDF(key, nil, []byte(cbcEncInfo))
		if err != nil {
			return nil, nil, fmt.Errorf("expanding encryption subkey: %w", err)
		}
		macKey, err = util.HKDF(key, nil, []byte(cbcMACInfo))
		if err != nil {
			util.WipeBytes(encKey)
			return nil, nil, fmt.Errorf("expanding mac subkey: %w", err)
		}
		return encKey, macKey, nil
	default:
		return nil, nil, fmt.Errorf("invalid key size %d for %s: want 32 or 64", len(key), AES256CBCHMAC)
	}
}

// Seal encrypts plaintext under key with the given cipher variant. The
// nonce/IV is always drawn fresh from a cryptographically secure source
// inside this call; callers can never supply their own. Empty plaintext
// seals to a valid envelope.
func Seal(plaintext, key []byte, typ Type) (*Envelope, error) {
	switch typ {
	case AES256CBCHMAC:
		return sealCBCHMAC(plaintext, key)
	case XChaCha20Poly1305:
		return sealXChaCha(plaintext, key)
	default:
		return nil, ErrUnknownType
	}
}

func sealCBCHMAC(plaintext, key []byte) (*Envelope, error) {
	encKey, macKey, err := cbcSubkeys(key)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(encKey)
	defer util.WipeBytes(macKey)

	iv, ciphertext, err := util.EncryptAESCBC(plaintext, encKey)
	if err != nil {
		return nil, fmt.Errorf("sealing envelope: %w", err)
	}

	// MAC covers IV || ciphertext so neither can be swapped independently.
	macInput := make([]byte, 0, len(iv)+len(ciphertext))
	macInput = append(macInput, iv...)
	macInput = append(macInput, ciphertext...)

	return &Envelope{
		Ver:            Version,
		EncryptionType: AES256CBCHMAC,
		Nonce:          iv,
		Data:           ciphertext,
		MAC:            util.HMACSHA256(macKey, macInput),
	}, nil
}

func sealXChaCha(plaintext, key []byte) (*Envelope, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return &Envelope{
		Ver:            Version,
		EncryptionType: XChaCha20Poly1305,
		Nonce:          nonce,
		Data:           aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open verifies and decrypts an envelope, selecting the cipher variant from
// the envelope's own type tag. Integrity is always verified before any
// decryption is attempted; all verification and decryption failures are
// reported as ErrAuthenticationFailed.
func Open(env *Envelope, key []byte) ([]byte, error) {
	if env == nil {
		return nil, ErrAuthenticationFailed
	}
	if env.Ver != Version {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Ver)
	}
	if len(env.Nonce) != env.EncryptionType.nonceSize() {
		return nil, ErrAuthenticationFailed
	}

	switch env.EncryptionType {
	case AES256CBCHMAC:
		return openCBCHMAC(env, key)
	case XChaCha20Poly1305:
		return openXChaCha(env, key)
	default:
		return nil, ErrUnknownType
	}
}

func openCBCHMAC(env *Envelope, key []byte) ([]byte, error) {
	encKey, macKey, err := cbcSubkeys(key)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(encKey)
	defer util.WipeBytes(macKey)

	macInput := make([]byte, 0, len(env.Nonce)+len(env.Data))
	macInput = append(macInput, env.Nonce...)
	macInput = append(macInput, env.Data...)

	// Fail closed: verify in constant time before touching the ciphertext.
	if !util.VerifyHMACSHA256(macKey, macInput, env.MAC) {
		return nil, ErrAuthenticationFailed
	}

	plaintext, err := util.DecryptAESCBC(env.Nonce, env.Data, encKey)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

func openXChaCha(env *Envelope, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Clone returns a deep copy of the envelope.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	return &Envelope{
		Ver:            e.Ver,
		EncryptionType: e.EncryptionType,
		Nonce:          util.CopyBytes(e.Nonce),
		Data:           util.CopyBytes(e.Data),
		MAC:            util.CopyBytes(e.MAC),
	}
}

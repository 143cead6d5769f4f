package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

const (
	AESCBCKeySize = 32
	AESCBCIVSize  = aes.BlockSize
	HMACSize      = sha256.Size
)

// EncryptAESCBC encrypts plaintext with AES-256-CBC under a fresh random IV.
// The plaintext is PKCS#7 padded. Returns the IV and the ciphertext separately.
func EncryptAESCBC(plaintext, encKey []byte) (iv, ciphertext []byte, err error) {
	if len(encKey) != AESCBCKeySize {
		return nil, nil, fmt.Errorf("invalid AES-CBC key size: got %d, want %d", len(encKey), AESCBCKeySize)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	iv = make([]byte, AESCBCIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("generating IV: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return iv, ciphertext, nil
}

// DecryptAESCBC decrypts AES-256-CBC ciphertext and strips PKCS#7 padding.
// Callers must verify integrity (MAC) before calling this function.
func DecryptAESCBC(iv, ciphertext, encKey []byte) ([]byte, error) {
	if len(encKey) != AESCBCKeySize {
		return nil, fmt.Errorf("invalid AES-CBC key size: got %d, want %d", len(encKey), AESCBCKeySize)
	}
	if len(iv) != AESCBCIVSize {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), AESCBCIVSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded, aes.BlockSize)
}

// HMACSHA256 computes an HMAC-SHA256 tag over data.
func HMACSHA256(macKey, data []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 compares an HMAC-SHA256 tag in constant time.
func VerifyHMACSHA256(macKey, data, tag []byte) bool {
	return hmac.Equal(HMACSHA256(macKey, data), tag)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}

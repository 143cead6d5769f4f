package vault

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/envelope"
)

func TestCodec_DecryptMany(t *testing.T) {
	ctx := context.Background()
	userKey := newTestUserKey(t)
	codec := NewCodec(envelope.XChaCha20Poly1305)

	const n = 53 // spans multiple batches with a ragged tail
	records := make([]EncryptedCipherRecord, 0, n)
	for i := 0; i < n; i++ {
		entry := testEntry()
		entry.ID = fmt.Sprintf("entry-%03d", i)
		entry.Name = fmt.Sprintf("Account %d", i)
		record, err := codec.EncryptEntry(entry, userKey)
		require.NoError(t, err)
		records = append(records, *record)
	}

	result, err := codec.DecryptMany(ctx, records, userKey, 4)
	require.NoError(t, err)
	require.Len(t, result.Entries, n)
	assert.Empty(t, result.Failures)

	// Relative order of the input is preserved.
	for i, entry := range result.Entries {
		assert.Equal(t, fmt.Sprintf("entry-%03d", i), entry.ID)
		assert.Equal(t, fmt.Sprintf("Account %d", i), entry.Name)
	}
}

func TestCodec_DecryptMany_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	userKey := newTestUserKey(t)
	codec := NewCodec(envelope.XChaCha20Poly1305)

	const n = 11
	records := make([]EncryptedCipherRecord, 0, n)
	for i := 0; i < n; i++ {
		entry := testEntry()
		entry.ID = fmt.Sprintf("entry-%03d", i)
		record, err := codec.EncryptEntry(entry, userKey)
		require.NoError(t, err)
		records = append(records, *record)
	}

	// Corrupt one record in the middle; the other ten must still decrypt.
	records[5].Data.Data[0] ^= 0xff

	result, err := codec.DecryptMany(ctx, records, userKey, 4)
	require.NoError(t, err)
	assert.Len(t, result.Entries, n-1)
	require.Len(t, result.Failures, 1)

	failure := result.Failures[0]
	assert.Equal(t, 5, failure.Index)
	assert.Equal(t, "entry-005", failure.ID)
	assert.ErrorIs(t, failure.Err, envelope.ErrAuthenticationFailed)

	for _, entry := range result.Entries {
		assert.NotEqual(t, "entry-005", entry.ID)
	}
}

func TestCodec_DecryptMany_Empty(t *testing.T) {
	userKey := newTestUserKey(t)
	codec := NewCodec(envelope.XChaCha20Poly1305)

	result, err := codec.DecryptMany(context.Background(), nil, userKey, 4)
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Empty(t, result.Failures)
}

func TestCodec_DecryptMany_CanceledContext(t *testing.T) {
	userKey := newTestUserKey(t)
	codec := NewCodec(envelope.XChaCha20Poly1305)

	record, err := codec.EncryptEntry(testEntry(), userKey)
	require.NoError(t, err)
	records := []EncryptedCipherRecord{*record}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = codec.DecryptMany(ctx, records, userKey, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_DecryptMany(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "correct-horse")
	require.NoError(t, s.Unlock(ctx, "correct-horse"))

	records := make([]EncryptedCipherRecord, 0, 5)
	for i := 0; i < 5; i++ {
		entry := testEntry()
		entry.Name = fmt.Sprintf("Account %d", i)
		record, err := s.EncryptEntry(ctx, entry)
		require.NoError(t, err)
		records = append(records, *record)
	}

	result, err := s.DecryptMany(ctx, records, 0)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 5)

	s.Lock()
	_, err = s.DecryptMany(ctx, records, 0)
	assert.ErrorIs(t, err, ErrVaultLocked)
}

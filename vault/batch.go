package vault

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/keyfold/keyfold/crypto"
)

const (
	// DefaultBatchSize is how many records are scheduled per batch before
	// the pipeline yields, keeping the UI responsive on large vaults.
	DefaultBatchSize = 20
	// DefaultConcurrency caps simultaneous decryptions when the caller
	// passes a non-positive limit.
	DefaultConcurrency = 4
)

// BatchFailure records one record that failed to decrypt.
type BatchFailure struct {
	Index int
	ID    string
	Err   error
}

// BatchResult is the outcome of a DecryptMany run. Entries holds the
// successfully decrypted records in their original relative order;
// Failures holds the rest, also in order.
type BatchResult struct {
	Entries  []PlaintextEntry
	Failures []BatchFailure
}

// DecryptMany decrypts records concurrently, at most concurrency at a
// time, in batches of DefaultBatchSize. A record that fails to decrypt is
// reported in the result's Failures and never aborts the run; only context
// cancellation stops the pipeline early, and then DecryptMany returns the
// context's error with no partial result.
func (c *Codec) DecryptMany(ctx context.Context, records []EncryptedCipherRecord, userKey *crypto.UserKey, concurrency int) (*BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	type outcome struct {
		entry PlaintextEntry
		err   error
	}
	outcomes := make([]outcome, len(records))

	for start := 0; start < len(records); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(records))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				entry, err := c.DecryptEntry(&records[i], userKey)
				outcomes[i] = outcome{entry: entry, err: err}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := &BatchResult{Entries: make([]PlaintextEntry, 0, len(records))}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, BatchFailure{
				Index: i,
				ID:    records[i].ID,
				Err:   o.err,
			})
			continue
		}
		result.Entries = append(result.Entries, o.entry)
	}
	return result, nil
}

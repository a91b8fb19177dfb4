package ports

import "context"

// StoredResponse is the first answer given for an idempotency key.
// Fingerprint identifies the request that produced it, so a key reused for
// a different request can be told apart from a retry. A zero StatusCode
// marks a key that is claimed while its first request is still running.
type StoredResponse struct {
	Fingerprint string
	StatusCode  int
	Body        []byte
	OrderID     int64
}

// Matches reports whether fingerprint belongs to the request that was stored.
func (r StoredResponse) Matches(fingerprint string) bool {
	return r.Fingerprint == fingerprint
}

func (r StoredResponse) InProgress() bool {
	return r.StatusCode == 0
}

// IdempotencyStore keeps placement responses per key. Entries expire after
// the store's ttl; an expired entry counts as absent.
type IdempotencyStore interface {
	// Claim reserves key for a new request. When the key is already live it
	// returns the existing entry and claimed is false.
	Claim(ctx context.Context, key, fingerprint string) (existing *StoredResponse, claimed bool, err error)
	// Save completes a claim. A completed live entry is never replaced.
	Save(ctx context.Context, key string, response StoredResponse) error
	// Release drops a claim whose request failed so it can be retried.
	Release(ctx context.Context, key string) error
}

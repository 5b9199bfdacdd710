package app

import "github.com/google/uuid"

// newID produces a random reservation identifier.
// Isolated here so the ID strategy can evolve independently.
func newID() string {
	return uuid.NewString()
}

// newIdempotencyKey returns a key that identifies one logical request to an
// external provider. The provider client reuses it across its own retries, so
// a retried call cannot create a second session for the same request.
func newIdempotencyKey(scope string) string {
	return scope + "_" + uuid.NewString()
}

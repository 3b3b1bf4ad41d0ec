package credentials

import "context"

// KV is the durable key/value storage the credential store is built on.
// Implementations must make SetMany atomic to concurrent readers: a reader sees
// either none or all of the values written by one call.
type KV interface {
	// Get returns the value for key. A missing key is reported with ok == false, not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetMany writes every entry in values as one unit
	SetMany(ctx context.Context, values map[string]string) error

	// Delete removes the keys. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
}

package blob

import "context"

// Store is key-addressed JSON document storage. Get reports absence
// via ok=false rather than an error; there are no transactions across
// keys.
type Store interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

package snapshot

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Backend abstracts the byte store under the snapshot root so a local
// directory and an object-storage URI behave identically.
type Backend interface {
	// Write stores data at key. The write must be atomic at the key level:
	// readers never observe a partially written object.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the object at key.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open selects a backend from the root: "s3://bucket/prefix" yields the
// object-storage backend, anything else is treated as a local directory.
func Open(root, s3Region string) (Backend, error) {
	if strings.HasPrefix(root, "s3://") {
		return OpenS3(root, s3Region)
	}
	if root == "" {
		return nil, eris.New("snapshot: empty root")
	}
	return NewLocal(root), nil
}

// Package artifact stores pipeline outputs per run: S3-compatible object
// storage for deployments, the local disk for CLI use, and an in-memory
// store for tests.
package artifact

import (
	"context"
	"errors"
)

// Store defines operations for persisting run artifacts.
type Store interface {
	Put(ctx context.Context, runID, name string, content []byte) error
	Get(ctx context.Context, runID, name string) ([]byte, error)
	List(ctx context.Context, runID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

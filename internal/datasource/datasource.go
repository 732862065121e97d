// Package datasource abstracts where the raw listings file is read from.
// Concrete sources live in subpackages: file (local disk), httpds (HTTP GET)
// and objectstore (S3-compatible buckets).
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh stream over the raw data. Each call to Open returns an
// independent reader; the pipeline opens the source once per layer.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

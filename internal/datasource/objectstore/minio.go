// Package objectstore reads the raw file from an S3-compatible bucket
// (MinIO, AWS S3, GCS interoperability endpoints) with minio-go.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates one object.
type Config struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Object    string
}

// Minio is a datasource.Source over a single object.
type Minio struct {
	client *minio.Client
	bucket string
	object string
}

// New builds the client. No request is made until Open.
func New(cfg Config) (*Minio, error) {
	if cfg.Bucket == "" || cfg.Object == "" {
		return nil, fmt.Errorf("objectstore: bucket and object are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: create client: %w", err)
	}
	return &Minio{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

func (m *Minio) String() string { return "s3://" + m.bucket + "/" + m.object }

// Open returns the object body. The object is stat'ed first so a missing
// key or bucket fails here rather than on the first Read.
func (m *Minio) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", m, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", m, err)
	}
	return obj, nil
}

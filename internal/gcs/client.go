package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore reads and writes whole objects. It enables mocking of storage in tests.
type ObjectStore interface {
	// Read returns the object bytes, or an error wrapping storage.ErrObjectNotExist.
	Read(ctx context.Context, bucket, object string) ([]byte, error)
	Write(ctx context.Context, bucket, object string, data []byte) error
	Close() error
}

// Client is the Cloud Storage implementation of ObjectStore. It assumes
// Application Default Credentials are configured.
type Client struct {
	client       *storage.Client
	writeTimeout time.Duration
}

// NewClient creates a storage client.
func NewClient(ctx context.Context) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Client{client: client, writeTimeout: 2 * time.Minute}, nil
}

func (c *Client) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s: %w", URI(bucket, object), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %s: %w", URI(bucket, object), err)
	}
	return data, nil
}

func (c *Client) Write(ctx context.Context, bucket, object string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %s: %w", URI(bucket, object), err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s: %w", URI(bucket, object), err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// URI renders gs://bucket/object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseLocation accepts either a bare bucket name or a gs://bucket/prefix URI.
func ParseLocation(loc string) (bucket, prefix string, err error) {
	loc = strings.TrimSpace(loc)
	if !strings.HasPrefix(loc, "gs://") {
		if loc == "" || strings.Contains(loc, "/") {
			return "", "", fmt.Errorf("invalid GCS bucket: %q", loc)
		}
		return loc, "", nil
	}

	trimmed := strings.TrimPrefix(loc, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", loc)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/moliya/internal/ledger"
)

// Persister stores each ledger key as the object <prefix>/<key>.json.
type Persister struct {
	store  ObjectStore
	bucket string
	prefix string
}

// NewPersister creates a ledger.Persister on top of store.
func NewPersister(store ObjectStore, bucket, prefix string) *Persister {
	return &Persister{store: store, bucket: bucket, prefix: prefix}
}

func (p *Persister) object(key string) string {
	return path.Join(p.prefix, key+".json")
}

func (p *Persister) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := p.store.Read(ctx, p.bucket, p.object(key))
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs.Persister.Load: %w", err)
	}
	return data, nil
}

func (p *Persister) Save(ctx context.Context, key string, data []byte) error {
	if err := p.store.Write(ctx, p.bucket, p.object(key), data); err != nil {
		return fmt.Errorf("gcs.Persister.Save: %w", err)
	}
	return nil
}

var _ ledger.Persister = (*Persister)(nil)

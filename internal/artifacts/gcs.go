package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/hugh/testforge/pkg/config"
	"google.golang.org/api/option"
)

// GCSAPI is the slice of the storage client GCSStore uses. Readers must
// return storage.ErrObjectNotExist for missing objects.
type GCSAPI interface {
	NewWriter(ctx context.Context, bucket, name string) io.WriteCloser
	NewReader(ctx context.Context, bucket, name string) (io.ReadCloser, error)
	Close() error
}

type gcsClient struct {
	client *storage.Client
}

func (c gcsClient) NewWriter(ctx context.Context, bucket, name string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

func (c gcsClient) NewReader(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(name).NewReader(ctx)
}

func (c gcsClient) Close() error {
	return c.client.Close()
}

type GCSStore struct {
	client GCSAPI
	bucket string
	prefix string
}

func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return NewGCSStoreWithClient(gcsClient{client: client}, cfg.Bucket, cfg.Prefix), nil
}

func NewGCSStoreWithClient(client GCSAPI, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	name, err := objectName(s.prefix, key)
	if err != nil {
		return err
	}

	w := s.client.NewWriter(ctx, s.bucket, name)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing gcs object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing gcs object %s: %w", name, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := objectName(s.prefix, key)
	if err != nil {
		return nil, err
	}

	r, err := s.client.NewReader(ctx, s.bucket, name)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening gcs object %s: %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading gcs object %s: %w", name, err)
	}
	return data, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ Store = (*GCSStore)(nil)

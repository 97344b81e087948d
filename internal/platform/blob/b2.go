package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kurin/blazer/b2"
)

// B2Store keeps content in a Backblaze B2 bucket.
type B2Store struct {
	bucket *b2.Bucket
}

func NewB2Store(ctx context.Context, accountID, appKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &B2Store{bucket: bucket}, nil
}

func (s *B2Store) ReadText(ctx context.Context, key string) (string, error) {
	r := s.bucket.Object(key).NewReader(ctx)
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		if b2.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("B2Store.ReadText %s: %w", key, err)
	}
	return string(data), nil
}

func (s *B2Store) WriteText(ctx context.Context, key, text string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, strings.NewReader(text)); err != nil {
		w.Close()
		return fmt.Errorf("B2Store.WriteText %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("B2Store.WriteText %s: close: %w", key, err)
	}
	return nil
}

func (s *B2Store) DeleteTree(ctx context.Context, prefix string) error {
	iter := s.bucket.List(ctx, b2.ListPrefix(treePrefix(prefix)))
	for iter.Next() {
		if err := iter.Object().Delete(ctx); err != nil {
			return fmt.Errorf("B2Store.DeleteTree %s: %w", prefix, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("B2Store.DeleteTree %s: list: %w", prefix, err)
	}
	return nil
}

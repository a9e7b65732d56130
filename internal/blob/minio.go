// Package blob archives raw source documents in object storage, one object
// per applied checklist revision, keyed by checklist id, version, and
// content hash. Unlike the git archive this survives host loss and can be
// served to other systems directly.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

func objectKey(checklistID string, version int, fileHash string) string {
	return fmt.Sprintf("%s/v%d-%.12s.json", checklistID, version, fileHash)
}

// PutRevision stores the raw document for one applied revision. A nil store
// (object storage not configured) silently skips.
func (s *Store) PutRevision(ctx context.Context, checklistID string, version int, fileHash string, raw []byte) error {
	if s == nil {
		return nil
	}
	key := objectKey(checklistID, version, fileHash)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put revision %s: %w", key, err)
	}
	return nil
}

// GetRevision fetches the raw document of one archived revision.
func (s *Store) GetRevision(ctx context.Context, checklistID string, version int, fileHash string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("object storage not configured")
	}
	key := objectKey(checklistID, version, fileHash)
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get revision %s: %w", key, err)
	}
	defer object.Close()

	raw, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("read revision %s: %w", key, err)
	}
	return raw, nil
}

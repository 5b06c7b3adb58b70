package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"

	"docverify/internal/verification/models"
)

const objectPrefix = "sources"

// ObjectStore writes uploads to an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(client *minio.Client, bucket string) (*ObjectStore, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &ObjectStore{client: client, bucket: bucket}, nil
}

// ObjectKey is the key an upload is stored under.
func ObjectKey(runID, filename string) string {
	return path.Join(objectPrefix, runID, SanitizeFilename(filename))
}

func (s *ObjectStore) Save(ctx context.Context, runID string, src models.Source) (string, error) {
	if _, err := runDir("", runID); err != nil {
		return "", err
	}
	key := ObjectKey(runID, src.Filename)
	contentType := src.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(src.Data), int64(len(src.Data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"run-id": runID},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

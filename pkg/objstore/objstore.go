// Package objstore downloads uploaded source files from S3-compatible
// object storage.
package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store reads objects from a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to an S3-compatible endpoint.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: connect %s: %w", endpoint, err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Download reads the full object at key into memory. Missing objects map
// to domain.ErrNotFound, everything else to domain.ErrDownloadFailure.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objstore: get %s: %w: %w", key, domain.ErrDownloadFailure, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("objstore: %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("objstore: read %s: %w: %w", key, domain.ErrDownloadFailure, err)
	}
	return data, nil
}

package objectstore

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/veridoc/veridoc-backend/pkg/config"
)

// Store uploads analyzed documents to a MinIO/S3 bucket for the reasoning
// layer and later retrieval. Uploads happen only after local analysis has
// finished with the file.
type Store struct {
	client *minio.Client
	bucket string
	region string
}

// New connects to the object store and ensures the bucket exists
func New(ctx context.Context, cfg *config.StorageConfig) (*Store, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Store{client: cli, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Put uploads a local file under the given key and returns its remote URL
func (s *Store) Put(ctx context.Context, localPath, key string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	scheme := "http"
	if s.client.EndpointURL().Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key), nil
}

// Health reports whether the bucket is reachable
func (s *Store) Health(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

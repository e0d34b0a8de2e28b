package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
)

// MinioStore - MinIO (S3 호환) 스토리지
type MinioStore struct {
	client   *minio.Client
	endpoint string
	bucket   string
	useSSL   bool
}

// NewMinioStore - MinIO 클라이언트 생성
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioStore{
		client:   client,
		endpoint: endpoint,
		bucket:   bucket,
		useSSL:   useSSL,
	}, nil
}

// ensureBucket - 버킷이 없으면 생성
func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Put - 객체 업로드 후 URL 반환
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "minio_put")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", s.bucket),
		attribute.String("minio.key", key),
		attribute.Int("minio.size", len(data)),
	)

	if err := s.ensureBucket(ctx); err != nil {
		span.RecordError(err)
		return "", err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.objectURL(key), nil
}

// Delete - 객체 삭제
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "minio_delete")
	defer span.End()
	span.SetAttributes(attribute.String("minio.key", key))

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *MinioStore) objectURL(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}

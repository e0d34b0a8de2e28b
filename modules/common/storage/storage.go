package storage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"veo-studio-server/modules/common/config"
)

var tracer = otel.Tracer("storage-client")

// Store - 생성된 비디오/썸네일 바이너리 저장소
// Put은 재생 가능한 URL을 반환하고, Delete는 더 이상 표시하지 않는 리소스를 해제함
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New - 설정된 백엔드로 Store 생성
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.StorageSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket), nil
	case config.StorageMinio:
		return NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case config.StorageMemory:
		return NewMemoryStore(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

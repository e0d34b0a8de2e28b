package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// 스토리지 백엔드 종류
const (
	StorageSupabase = "supabase"
	StorageMinio    = "minio"
	StorageMemory   = "memory"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Veo
	VeoModel         string
	PollInterval     time.Duration
	ProgressInterval time.Duration
	ThumbnailOffset  time.Duration
	CredentialTTL    time.Duration

	// Storage
	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Media
	FFmpegPath string

	// History
	HistoryLimit int

	// Server
	Port          string
	PublicBaseURL string
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	port := getEnv("PORT", "8080")

	globalConfig = &Config{
		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", true),

		// Supabase
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "videos"),

		// Veo
		VeoModel:         getEnv("VEO_MODEL", "veo-3.0-generate-preview"),
		PollInterval:     getDuration("VEO_POLL_INTERVAL", 10*time.Second),
		ProgressInterval: getDuration("VEO_PROGRESS_INTERVAL", 8*time.Second),
		ThumbnailOffset:  getDuration("VEO_THUMBNAIL_OFFSET", 8*time.Second),
		CredentialTTL:    getDuration("CREDENTIAL_TTL", 30*time.Minute),

		// Storage
		StorageBackend: getEnv("STORAGE_BACKEND", StorageSupabase),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "videos"),
		MinioUseSSL:    getBool("MINIO_USE_SSL", false),

		// Media
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		// History
		HistoryLimit: getInt("HISTORY_LIMIT", 20),

		// Server
		Port:          port,
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	log.Printf("   Veo: %s (poll: %v, progress: %v)", globalConfig.VeoModel, globalConfig.PollInterval, globalConfig.ProgressInterval)
	log.Printf("   Storage: %s", globalConfig.StorageBackend)
	log.Printf("   History limit: %d", globalConfig.HistoryLimit)

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.PollInterval <= 0 || c.ProgressInterval <= 0 {
		return fmt.Errorf("VEO_POLL_INTERVAL and VEO_PROGRESS_INTERVAL must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}

	switch c.StorageBackend {
	case StorageSupabase, StorageMemory:
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for minio storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %s", c.StorageBackend)
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBool - bool 환경변수 파싱 (실패 시 기본값)
func getBool(key string, defaultValue bool) bool {
	if str := os.Getenv(key); str != "" {
		if parsed, err := strconv.ParseBool(str); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %v", key, str, defaultValue)
	}
	return defaultValue
}

// getInt - int 환경변수 파싱 (실패 시 기본값)
func getInt(key string, defaultValue int) int {
	if str := os.Getenv(key); str != "" {
		if parsed, err := strconv.Atoi(str); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, str, defaultValue)
	}
	return defaultValue
}

// getDuration - "10s", "1m" 형식 파싱 (실패 시 기본값)
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if str := os.Getenv(key); str != "" {
		if parsed, err := time.ParseDuration(str); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %v", key, str, defaultValue)
	}
	return defaultValue
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

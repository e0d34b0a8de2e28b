package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"veo-studio-server/modules/common/config"
	"veo-studio-server/modules/common/database"
	"veo-studio-server/modules/common/ffmpeg"
	redisutil "veo-studio-server/modules/common/redis"
	"veo-studio-server/modules/common/storage"
	"veo-studio-server/modules/veo3"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+veo3.CredentialHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "veo-studio-server",
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisutil.Connect(cfg)
	if rdb == nil {
		log.Fatal("❌ Failed to connect to Redis")
	}
	defer rdb.Close()

	db := database.NewClient(cfg)
	if db == nil {
		log.Fatal("❌ Failed to create database client")
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create storage: %v", err)
	}

	orchestrator := veo3.NewOrchestrator(
		veo3.NewGenaiAPI(cfg.VeoModel),
		veo3.NewDownloader(nil),
		store,
		ffmpeg.NewFrameExtractor(cfg.FFmpegPath),
		veo3.ConfigFrom(cfg),
	)
	history := veo3.NewHistory(rdb, store, cfg.HistoryLimit)
	service := veo3.NewService(rdb, db, history, cfg.CredentialTTL)
	handler := veo3.NewHandler(service, rdb)

	// Redis Queue Worker 시작 (백그라운드)
	worker := veo3.NewWorker(rdb, db, orchestrator, history)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handler.Metrics().Snapshot())
	}).Methods("GET")
	handler.RegisterRoutes(r)

	// memory 백엔드는 이 서버가 직접 blob 서빙
	if memStore, ok := store.(*storage.MemoryStore); ok {
		memStore.RegisterRoutes(r)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Veo Studio Server starting on port %s", cfg.Port)
	log.Printf("🎬 Submit: POST http://localhost:%s/api/videos", cfg.Port)
	log.Printf("📡 Progress: ws://localhost:%s/ws/progress?job=<jobId>", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)

	// 서버 시작
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}

	<-workerDone
	log.Println("👋 Server stopped")
}

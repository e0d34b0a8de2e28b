package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

type blob struct {
	data        []byte
	contentType string
}

// MemoryStore - 프로세스 메모리에 보관하고 /blobs/{key} 로 서빙
type MemoryStore struct {
	baseURL string
	mutex   sync.RWMutex
	blobs   map[string]blob
}

// NewMemoryStore - MemoryStore 생성
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string]blob),
	}
}

// Put - 복사본을 저장하고 /blobs URL 반환
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	copied := make([]byte, len(data))
	copy(copied, data)

	s.mutex.Lock()
	s.blobs[key] = blob{data: copied, contentType: contentType}
	s.mutex.Unlock()

	return s.baseURL + "/blobs/" + key, nil
}

// Delete - 저장된 blob 해제 (없어도 에러 아님)
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	delete(s.blobs, key)
	s.mutex.Unlock()
	return nil
}

// Get - 저장된 바이너리 조회
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	b, ok := s.blobs[key]
	return b.data, b.contentType, ok
}

// Len - 보관 중인 blob 개수
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.blobs)
}

// RegisterRoutes - 라우트 등록
func (s *MemoryStore) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/blobs/{key:.+}", s.serveBlob).Methods("GET")
}

func (s *MemoryStore) serveBlob(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.Get(mux.Vars(r)["key"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

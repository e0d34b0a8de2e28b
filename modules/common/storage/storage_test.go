package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"veo-studio-server/modules/common/config"
)

func TestMemoryStoreServesStoredBytes(t *testing.T) {
	r := mux.NewRouter()
	srv := httptest.NewServer(r)
	defer srv.Close()

	store := NewMemoryStore(srv.URL)
	store.RegisterRoutes(r)

	payload := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}
	url, err := store.Put(context.Background(), "videos/abc/scene-1.mp4", payload, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/blobs/videos/abc/scene-1.mp4", url)

	// 원본 슬라이스 변경이 저장본에 영향 주지 않음
	payload[4] = 'X'

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, body)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore("http://localhost:8080/")
	ctx := context.Background()

	_, err := store.Put(ctx, "k", []byte("v"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	_, _, ok := store.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	_, err = store.Put(ctx, "", []byte("v"), "text/plain")
	assert.Error(t, err)
}

func TestSupabaseStorePutAndDelete(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotAuth, gotType = r.Header.Get("Authorization"), r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL+"/", "service-key", "videos")

	url, err := store.Put(context.Background(), "videos/abc/scene-1.mp4", []byte("mp4"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/storage/v1/object/videos/videos/abc/scene-1.mp4", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, []byte("mp4"), gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/videos/videos/abc/scene-1.mp4", url)

	require.NoError(t, store.Delete(context.Background(), "videos/abc/scene-1.mp4"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestSupabaseStoreUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "service-key", "missing")
	_, err := store.Put(context.Background(), "k", []byte("v"), "video/mp4")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 400"))
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(&config.Config{StorageBackend: config.StorageMemory, PublicBaseURL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(&config.Config{StorageBackend: config.StorageSupabase, SupabaseURL: "http://x", SupabaseStorageBucket: "videos"})
	require.NoError(t, err)
	assert.IsType(t, &SupabaseStore{}, s)

	_, err = New(&config.Config{StorageBackend: "tape"})
	assert.Error(t, err)
}

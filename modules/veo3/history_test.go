package veo3

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"veo-studio-server/modules/common/storage"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// storedVideo - blob 2개(영상, 썸네일)를 가진 결과물
func storedVideo(t *testing.T, store *storage.MemoryStore, id string) *GeneratedVideo {
	t.Helper()
	ctx := context.Background()
	videoKey := "videos/" + id + "/scene-1.mp4"
	thumbKey := "videos/" + id + "/thumbnail.webp"
	url, err := store.Put(ctx, videoKey, []byte("video-"+id), "video/mp4")
	require.NoError(t, err)
	thumbURL, err := store.Put(ctx, thumbKey, []byte("thumb-"+id), "image/webp")
	require.NoError(t, err)

	return &GeneratedVideo{
		ID:        id,
		URL:       url,
		SceneURLs: []string{url},
		Prompts:   []string{"prompt " + id},
		Settings:  DefaultSettings(),
		Thumbnail: &Thumbnail{
			URL:             thumbURL,
			Key:             thumbKey,
			PreviewMimeType: "image/webp",
			MimeType:        "image/png",
			Data:            []byte("frame-" + id),
		},
		BlobKeys:  []string{videoKey, thumbKey},
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := storage.NewMemoryStore("http://test")
	history := NewHistory(rdb, store, 5)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, history.Add(ctx, "user-1", storedVideo(t, store, fmt.Sprintf("v%d", i))))
	}

	videos, err := history.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "v3", videos[0].ID)
	assert.Equal(t, "v1", videos[2].ID)
	assert.Equal(t, []byte("frame-v3"), videos[0].Thumbnail.Data)
	assert.Equal(t, "image/png", videos[0].Thumbnail.MimeType)

	other, err := history.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHistoryEvictsOldestAndReleasesBlobs(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := storage.NewMemoryStore("http://test")
	history := NewHistory(rdb, store, 2)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, history.Add(ctx, "user-1", storedVideo(t, store, fmt.Sprintf("v%d", i))))
	}

	videos, err := history.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v3", videos[0].ID)
	assert.Equal(t, "v2", videos[1].ID)

	_, _, ok := store.Get("videos/v1/scene-1.mp4")
	assert.False(t, ok)
	_, _, ok = store.Get("videos/v1/thumbnail.webp")
	assert.False(t, ok)
	assert.Equal(t, 4, store.Len())
}

func TestHistoryGetAndRemove(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := storage.NewMemoryStore("http://test")
	history := NewHistory(rdb, store, 0)
	ctx := context.Background()

	require.NoError(t, history.Add(ctx, "user-1", storedVideo(t, store, "v1")))
	require.NoError(t, history.Add(ctx, "user-1", storedVideo(t, store, "v2")))

	video, err := history.Get(ctx, "user-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"prompt v1"}, video.Prompts)

	require.NoError(t, history.Remove(ctx, "user-1", "v1"))
	_, err = history.Get(ctx, "user-1", "v1")
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.ErrorIs(t, history.Remove(ctx, "user-1", "v1"), ErrVideoNotFound)

	videos, err := history.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "v2", videos[0].ID)
	assert.Equal(t, 2, store.Len())
}

func TestHistoryDefaultLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	assert.Equal(t, 20, NewHistory(rdb, nil, 0).limit)
	assert.Equal(t, 7, NewHistory(rdb, nil, 7).limit)
}

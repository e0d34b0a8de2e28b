package veo3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// ErrVideoNotFound - 히스토리에 없는 영상
var ErrVideoNotFound = errors.New("video not found in history")

const historyKeyPrefix = "history:"

// History - 사용자별 최근 생성 목록 (최신이 앞, limit 초과분은 오래된 것부터 제거)
type History struct {
	rdb   *redis.Client
	store BlobStore
	limit int
}

// NewHistory - limit이 0 이하이면 20
func NewHistory(rdb *redis.Client, store BlobStore, limit int) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{rdb: rdb, store: store, limit: limit}
}

func historyKey(userID string) string {
	return historyKeyPrefix + userID
}

// historyRecord - Redis에 저장하는 형태 (응답 JSON에서 빠지는 썸네일 원본 포함)
type historyRecord struct {
	Video             *GeneratedVideo `json:"video"`
	ThumbnailData     []byte          `json:"thumbnailData,omitempty"`
	ThumbnailMimeType string          `json:"thumbnailMimeType,omitempty"`
}

func encodeHistoryItem(video *GeneratedVideo) ([]byte, error) {
	record := historyRecord{Video: video}
	if video.Thumbnail != nil {
		record.ThumbnailData = video.Thumbnail.Data
		record.ThumbnailMimeType = video.Thumbnail.MimeType
	}
	return json.Marshal(record)
}

func decodeHistoryItem(item string) (*GeneratedVideo, error) {
	var record historyRecord
	if err := json.Unmarshal([]byte(item), &record); err != nil {
		return nil, err
	}
	if record.Video == nil {
		return nil, errors.New("history record has no video")
	}
	if record.Video.Thumbnail != nil {
		record.Video.Thumbnail.Data = record.ThumbnailData
		record.Video.Thumbnail.MimeType = record.ThumbnailMimeType
	}
	return record.Video, nil
}

// Add - 맨 앞에 추가, 밀려난 항목의 blob 해제
func (h *History) Add(ctx context.Context, userID string, video *GeneratedVideo) error {
	raw, err := encodeHistoryItem(video)
	if err != nil {
		return fmt.Errorf("failed to marshal history item: %w", err)
	}

	key := historyKey(userID)
	pipe := h.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	evictedCmd := pipe.LRange(ctx, key, int64(h.limit), -1)
	pipe.LTrim(ctx, key, 0, int64(h.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add history item: %w", err)
	}

	evicted := evictedCmd.Val()
	if len(evicted) > 0 {
		log.Printf("🧹 [History] Evicting %d item(s) for user %s", len(evicted), userID)
	}
	for _, item := range evicted {
		old, err := decodeHistoryItem(item)
		if err != nil {
			log.Printf("⚠️ [History] Skipping unreadable evicted item: %v", err)
			continue
		}
		h.releaseBlobs(ctx, old)
	}
	return nil
}

// List - 최신순 전체 목록
func (h *History) List(ctx context.Context, userID string) ([]*GeneratedVideo, error) {
	items, err := h.rdb.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	videos := make([]*GeneratedVideo, 0, len(items))
	for _, item := range items {
		video, err := decodeHistoryItem(item)
		if err != nil {
			log.Printf("⚠️ [History] Skipping unreadable item: %v", err)
			continue
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// Get - ID로 조회
func (h *History) Get(ctx context.Context, userID, videoID string) (*GeneratedVideo, error) {
	video, _, err := h.find(ctx, userID, videoID)
	return video, err
}

// Remove - 항목 삭제 후 blob 해제
func (h *History) Remove(ctx context.Context, userID, videoID string) error {
	video, raw, err := h.find(ctx, userID, videoID)
	if err != nil {
		return err
	}

	if err := h.rdb.LRem(ctx, historyKey(userID), 1, raw).Err(); err != nil {
		return fmt.Errorf("failed to remove history item: %w", err)
	}

	h.releaseBlobs(ctx, video)
	log.Printf("🗑️  [History] Removed video %s for user %s", videoID, userID)
	return nil
}

func (h *History) find(ctx context.Context, userID, videoID string) (*GeneratedVideo, string, error) {
	items, err := h.rdb.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read history: %w", err)
	}
	for _, item := range items {
		video, err := decodeHistoryItem(item)
		if err != nil {
			continue
		}
		if video.ID == videoID {
			return video, item, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
}

func (h *History) releaseBlobs(ctx context.Context, video *GeneratedVideo) {
	if h.store == nil {
		return
	}
	for _, key := range video.BlobKeys {
		if err := h.store.Delete(ctx, key); err != nil {
			log.Printf("⚠️ [History] Failed to release blob %s: %v", key, err)
		}
	}
}

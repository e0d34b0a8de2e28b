package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// progressEndMarker - 종료 알림 payload 접두어 (뒤에 최종 job status)
const progressEndMarker = "\x00end:"

// ProgressChannel - Job 진행 메시지 pub/sub 채널 이름
func ProgressChannel(jobID string) string {
	return progressKeyPrefix + jobID
}

// PublishProgress - 진행 메시지 발행 + 마지막 메시지 저장
func PublishProgress(ctx context.Context, rdb *redis.Client, jobID, message string) error {
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, lastStatusKeyPrefix+jobID, message, statusTTL)
	pipe.Publish(ctx, ProgressChannel(jobID), message)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}
	return nil
}

// LastProgress - 마지막 진행 메시지 조회 (없으면 "")
func LastProgress(ctx context.Context, rdb *redis.Client, jobID string) (string, error) {
	msg, err := rdb.Get(ctx, lastStatusKeyPrefix+jobID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last progress: %w", err)
	}
	return msg, nil
}

// SubscribeProgress - 진행 메시지 구독 (호출자가 Close 책임)
func SubscribeProgress(ctx context.Context, rdb *redis.Client, jobID string) *redis.PubSub {
	return rdb.Subscribe(ctx, ProgressChannel(jobID))
}

// EndProgress - 최종 상태 기록 + 구독자에게 종료 알림
func EndProgress(ctx context.Context, rdb *redis.Client, jobID, status string) error {
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, progressEndKeyPrefix+jobID, status, statusTTL)
	pipe.Publish(ctx, ProgressChannel(jobID), progressEndMarker+status)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to end progress: %w", err)
	}
	return nil
}

// ProgressEnded - 이미 종료된 Job이면 최종 status 반환
func ProgressEnded(ctx context.Context, rdb *redis.Client, jobID string) (string, bool) {
	status, err := rdb.Get(ctx, progressEndKeyPrefix+jobID).Result()
	if err != nil {
		return "", false
	}
	return status, true
}

// ParseProgressEnd - pub/sub payload가 종료 알림이면 최종 status 반환
func ParseProgressEnd(payload string) (string, bool) {
	if !strings.HasPrefix(payload, progressEndMarker) {
		return "", false
	}
	return strings.TrimPrefix(payload, progressEndMarker), true
}

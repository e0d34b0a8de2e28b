package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoCredential - 저장된 credential이 없거나 만료됨
var ErrNoCredential = errors.New("credential not found or expired")

// EnqueueJob - Job ID를 큐에 추가 (LPUSH), 큐 길이 반환
func EnqueueJob(ctx context.Context, rdb *redis.Client, queue, jobID string) (int64, error) {
	if err := rdb.LPush(ctx, queue, jobID).Err(); err != nil {
		return 0, fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	queueLen, err := rdb.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return queueLen, nil
}

// DequeueJob - 큐에서 Job ID 꺼내기 (BRPOP, timeout 0이면 무한 대기)
func DequeueJob(ctx context.Context, rdb *redis.Client, queue string, timeout time.Duration) (string, error) {
	result, err := rdb.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		return "", err
	}
	// result[0]은 큐 이름, result[1]이 실제 job_id
	return result[1], nil
}

// SetJobCancelled - 취소 플래그 설정
func SetJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) error {
	if err := rdb.Set(ctx, cancelKeyPrefix+jobID, "1", cancelFlagTTL).Err(); err != nil {
		return fmt.Errorf("failed to set cancel flag: %w", err)
	}
	log.Printf("🛑 [Redis] Cancel flag set for job %s", jobID)
	return nil
}

// IsJobCancelled - 취소 플래그 확인 (조회 실패 시 false)
func IsJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) bool {
	n, err := rdb.Exists(ctx, cancelKeyPrefix+jobID).Result()
	if err != nil {
		log.Printf("⚠️ [Redis] Failed to check cancel flag for %s: %v", jobID, err)
		return false
	}
	return n > 0
}

// StoreCredential - Worker가 꺼내 쓸 credential 임시 저장
func StoreCredential(ctx context.Context, rdb *redis.Client, jobID, credential string, ttl time.Duration) error {
	if err := rdb.Set(ctx, credentialKeyPrefix+jobID, credential, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// TakeCredential - credential 조회 후 즉시 삭제 (GETDEL)
func TakeCredential(ctx context.Context, rdb *redis.Client, jobID string) (string, error) {
	credential, err := rdb.GetDel(ctx, credentialKeyPrefix+jobID).Result()
	if errors.Is(err, redis.Nil) || (err == nil && credential == "") {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to take credential: %w", err)
	}
	return credential, nil
}

// AcquireActiveJob - 사용자당 진행 중 Job 1개 제한 (SETNX), 이미 있으면 false
func AcquireActiveJob(ctx context.Context, rdb *redis.Client, userID, jobID string, ttl time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, activeKeyPrefix+userID, jobID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire active job lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	// Job 레코드 없이도 잠금을 풀 수 있도록 jobID -> userID 기록
	if err := rdb.Set(ctx, ownerKeyPrefix+jobID, userID, ttl).Err(); err != nil {
		rdb.Del(ctx, activeKeyPrefix+userID)
		return false, fmt.Errorf("failed to record job owner: %w", err)
	}
	return true, nil
}

// JobOwner - Job을 제출한 사용자 ID (없으면 "")
func JobOwner(ctx context.Context, rdb *redis.Client, jobID string) string {
	userID, err := rdb.Get(ctx, ownerKeyPrefix+jobID).Result()
	if err != nil {
		return ""
	}
	return userID
}

// ReleaseActiveJobByID - 소유자 기록으로 잠금 해제 (Job 레코드를 읽지 못했을 때)
func ReleaseActiveJobByID(ctx context.Context, rdb *redis.Client, jobID string) error {
	userID := JobOwner(ctx, rdb, jobID)
	if userID == "" {
		return nil
	}
	return ReleaseActiveJob(ctx, rdb, userID, jobID)
}

// ActiveJob - 사용자의 진행 중 Job ID (없으면 "")
func ActiveJob(ctx context.Context, rdb *redis.Client, userID string) string {
	jobID, err := rdb.Get(ctx, activeKeyPrefix+userID).Result()
	if err != nil {
		return ""
	}
	return jobID
}

// ReleaseActiveJob - 진행 중 Job 잠금 해제 (본인 Job일 때만)
func ReleaseActiveJob(ctx context.Context, rdb *redis.Client, userID, jobID string) error {
	if err := rdb.Del(ctx, ownerKeyPrefix+jobID).Err(); err != nil {
		log.Printf("⚠️ [Redis] Failed to clear owner of job %s: %v", jobID, err)
	}

	current, err := rdb.Get(ctx, activeKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read active job lock: %w", err)
	}
	if current != jobID {
		return nil
	}
	return rdb.Del(ctx, activeKeyPrefix+userID).Err()
}

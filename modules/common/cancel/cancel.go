package cancel

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrUserCancelled - 사용자가 취소 요청한 Job
var ErrUserCancelled = errors.New("job cancelled by user")

// CheckFunc - 취소 플래그 조회 함수 (Redis 등)
type CheckFunc func(ctx context.Context, jobID string) bool

// WatchJob - interval마다 취소 플래그를 확인하여 플래그가 서면 반환된 ctx를 취소
// 반환된 CancelFunc는 반드시 호출해야 감시 goroutine이 종료됨
func WatchJob(parent context.Context, check CheckFunc, jobID string, interval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancelCause := context.WithCancelCause(parent)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if check(ctx, jobID) {
					log.Printf("🛑 Job %s cancelled, stopping generation", jobID)
					cancelCause(ErrUserCancelled)
					return
				}
			}
		}
	}()

	return ctx, func() {
		close(done)
		<-stopped
		cancelCause(context.Canceled)
	}
}

// IsUserCancelled - ctx가 사용자 취소로 종료되었는지 확인
func IsUserCancelled(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrUserCancelled)
}

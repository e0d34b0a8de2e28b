package veo3

import (
	"fmt"
	"sync"
	"time"
)

// 진행 메시지
const (
	msgSubmitting  = "Sending request to VEO model..."
	msgDownloading = "Downloading generated video..."
	msgFinalizing  = "Finalizing video..."
	msgReady       = "Video ready!"
)

// LoadingMessages - 대기 중 순환 표시하는 메시지
var LoadingMessages = []string{
	"Warming up the digital director...",
	"Choreographing pixels into motion...",
	"Rendering your vision, frame by frame...",
	"This can take a few minutes, good things come to those who wait!",
	"Polishing the final cut...",
	"Almost ready for the premiere...",
}

// ProgressSink - 사람이 읽는 진행 문자열을 받는 콜백
type ProgressSink func(message string)

// reporter - 폴링 루프와 메시지 ticker가 같은 sink를 공유하므로 호출을 직렬화
type reporter struct {
	mutex  *sync.Mutex
	sink   ProgressSink
	prefix string
}

func newReporter(sink ProgressSink) *reporter {
	return &reporter{mutex: &sync.Mutex{}, sink: sink}
}

// scene - "Scene i/n: " 접두사를 붙이는 reporter (잠금은 공유)
func (r *reporter) scene(index, total int) *reporter {
	return &reporter{
		mutex:  r.mutex,
		sink:   r.sink,
		prefix: fmt.Sprintf("Scene %d/%d: ", index, total),
	}
}

func (r *reporter) emit(message string) {
	if r == nil || r.sink == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sink(r.prefix + message)
}

// progressTicker - 폴링과 독립적인 메시지 순환 타이머
type progressTicker struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// startProgressTicker - 첫 메시지는 즉시, 이후 interval마다 다음 메시지
func startProgressTicker(interval time.Duration, messages []string, emit func(string)) *progressTicker {
	t := &progressTicker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if len(messages) == 0 || interval <= 0 {
		close(t.done)
		return t
	}

	emit(messages[0])

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		index := 1
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				// stop과 tick이 동시에 준비되면 stop 우선
				select {
				case <-t.stop:
					return
				default:
				}
				emit(messages[index%len(messages)])
				index++
			}
		}
	}()
	return t
}

// Stop - 반환 이후에는 emit이 호출되지 않음, 여러 번 호출해도 안전
func (t *progressTicker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	<-t.done
}

package veo3

import (
	"errors"
	"fmt"
)

// JobState - 원격 Job 상태 (Pending -> Done | Failed)
type JobState int

const (
	JobPending JobState = iota
	JobDone
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	}
	return fmt.Sprintf("JobState(%d)", int(s))
}

// IsTerminal - Done/Failed 여부
func (s JobState) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// ErrInvalidTransition - 종료 상태에서 다른 상태로 전이 시도
var ErrInvalidTransition = errors.New("invalid job state transition")

// Transition - 전이 규칙 검사
// Pending은 자기 자신 또는 종료 상태로만 이동 가능하고, 종료 상태는 변하지 않음
func (s JobState) Transition(next JobState) (JobState, error) {
	if s == next {
		return s, nil
	}
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	switch next {
	case JobDone, JobFailed:
		return next, nil
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// RemoteError - 원격 Job이 돌려준 에러 payload
type RemoteError struct {
	Code    int
	Message string
}

// Job - 원격 Job 핸들, 결과나 종료 에러를 얻으면 폐기
type Job struct {
	Name            string
	State           JobState
	ResultURI       string
	Error           *RemoteError
	FilteredReasons []string
}

// apply - 조회 결과로 상태 갱신 (전이 규칙 위반 시 에러)
func (j *Job) apply(update *Job) error {
	next, err := j.State.Transition(update.State)
	if err != nil {
		return err
	}
	j.State = next
	j.ResultURI = update.ResultURI
	j.Error = update.Error
	j.FilteredReasons = update.FilteredReasons
	if update.Name != "" {
		j.Name = update.Name
	}
	return nil
}

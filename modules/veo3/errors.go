package veo3

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingCredential - 요청에 credential 없음
var ErrMissingCredential = errors.New("missing API credential")

// EmptyPromptError - 네트워크 호출 전에 잡는 빈 프롬프트 (Scene은 1부터, 단일 요청은 0)
type EmptyPromptError struct {
	Scene int
}

func (e *EmptyPromptError) Error() string {
	if e.Scene > 0 {
		return fmt.Sprintf("prompt for scene %d is empty", e.Scene)
	}
	return "prompt is empty"
}

// StatusError - HTTP status code가 있는 원격 에러
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
}

// SubmissionError - 제출 실패 (재시도 없음)
type SubmissionError struct {
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("video submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollingError - 상태 조회 중 전송 실패 (재시도 없음)
type PollingError struct {
	JobName    string
	StatusCode int
	Err        error
}

func (e *PollingError) Error() string {
	return fmt.Sprintf("polling job %s failed: %v", e.JobName, e.Err)
}

func (e *PollingError) Unwrap() error { return e.Err }

// JobFailedError - 원격 Job이 에러 payload와 함께 종료
type JobFailedError struct {
	JobName string
	Code    int
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("Video generation failed with error: %s", e.Message)
}

// NoResultError - done 상태인데 결과 locator가 없음
type NoResultError struct {
	JobName         string
	FilteredReasons []string
}

func (e *NoResultError) Error() string {
	msg := "Video generation completed, but no download link was found."
	if len(e.FilteredReasons) > 0 {
		msg += " Filtered: " + strings.Join(e.FilteredReasons, "; ")
	}
	return msg
}

// FetchError - 결과 다운로드 실패 (StatusCode 0은 전송 자체 실패)
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Failed to download video. Status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("Failed to download video: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SceneError - 스토리보드 중 Index번째(1부터) 장면 실패
type SceneError struct {
	Index int
	Err   error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene %d failed: %v", e.Index, e.Err)
}

func (e *SceneError) Unwrap() error { return e.Err }

// StatusCode - 에러 체인에서 원격 status code 추출 (없으면 0)
func StatusCode(err error) int {
	var submitErr *SubmissionError
	if errors.As(err, &submitErr) && submitErr.StatusCode != 0 {
		return submitErr.StatusCode
	}
	var pollErr *PollingError
	if errors.As(err, &pollErr) && pollErr.StatusCode != 0 {
		return pollErr.StatusCode
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return fetchErr.StatusCode
	}
	var jobErr *JobFailedError
	if errors.As(err, &jobErr) && jobErr.Code != 0 {
		return jobErr.Code
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsCredentialError - 400/403/429는 credential 재입력 대상
func IsCredentialError(err error) bool {
	switch StatusCode(err) {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

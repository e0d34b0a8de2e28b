package model

import (
	"errors"
	"time"
)

// ErrJobNotFound - 존재하지 않는 Job
var ErrJobNotFound = errors.New("job not found")

// VideoJob - veo_video_jobs 테이블 구조
type VideoJob struct {
	JobID             string     `json:"job_id"`
	UserID            string     `json:"user_id"`
	JobType           string     `json:"job_type"` // "single" | "storyboard"
	JobStatus         string     `json:"job_status"`
	JobInputData      JobInput   `json:"job_input_data"`
	VideoID           *string    `json:"video_id"`
	VideoURLs         []string   `json:"video_urls"`
	ThumbnailURL      *string    `json:"thumbnail_url"`
	ErrorMessage      *string    `json:"error_message"`
	ErrorStatusCode   *int       `json:"error_status_code"`
	CredentialInvalid bool       `json:"credential_invalid"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// JobInput - job_input_data JSONB 구조
type JobInput struct {
	Prompts       []string `json:"prompts"`
	ImageBase64   string   `json:"imageBase64,omitempty"`
	ImageMimeType string   `json:"imageMimeType,omitempty"`
	AspectRatio   string   `json:"aspectRatio"`
	EnableSound   bool     `json:"enableSound"`
	Resolution    string   `json:"resolution"`
	SkipThumbnail bool     `json:"skipThumbnail,omitempty"`
}

// Job 타입
const (
	JobTypeSingle     = "single"
	JobTypeStoryboard = "storyboard"
)

// Job 상태
const (
	StatusPending       = "pending"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusUserCancelled = "user_cancelled"
)

// IsFinished - 종료 상태 여부
func (j *VideoJob) IsFinished() bool {
	switch j.JobStatus {
	case StatusCompleted, StatusFailed, StatusUserCancelled:
		return true
	}
	return false
}

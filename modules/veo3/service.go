package veo3

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"veo-studio-server/modules/common/model"
	redisutil "veo-studio-server/modules/common/redis"
	"veo-studio-server/modules/common/utils"
)

// ErrInvalidRequest - 요청 형식 오류
var ErrInvalidRequest = errors.New("invalid request")

// ErrJobFinished - 이미 종료된 Job은 취소 불가
var ErrJobFinished = errors.New("job already finished")

// activeJobTTL - 사용자 진행 중 잠금의 최대 유지 시간
const activeJobTTL = 6 * time.Hour

// JobInProgressError - 사용자에게 이미 진행 중인 Job이 있음
type JobInProgressError struct {
	JobID string
}

func (e *JobInProgressError) Error() string {
	return fmt.Sprintf("another generation is already in progress (job %s)", e.JobID)
}

// JobStore - veo_video_jobs 저장소
type JobStore interface {
	CreateJob(ctx context.Context, job *model.VideoJob) error
	FetchJob(ctx context.Context, jobID string) (*model.VideoJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string) error
	UpdateJobCompleted(ctx context.Context, jobID string, videoID string, videoURLs []string, thumbnailURL string) error
	UpdateJobFailed(ctx context.Context, jobID string, status string, message string, statusCode int, credentialInvalid bool) error
}

// JobStatus - Job 레코드 + 마지막 진행 메시지
type JobStatus struct {
	Job      *model.VideoJob
	Progress string
}

// Service - 요청 검증 후 Job 생성 / 큐 등록, 조회 / 취소 / 히스토리
type Service struct {
	rdb           *redis.Client
	jobs          JobStore
	history       *History
	credentialTTL time.Duration
}

// NewService - Service 생성
func NewService(rdb *redis.Client, jobs JobStore, history *History, credentialTTL time.Duration) *Service {
	if credentialTTL <= 0 {
		credentialTTL = 30 * time.Minute
	}
	return &Service{
		rdb:           rdb,
		jobs:          jobs,
		history:       history,
		credentialTTL: credentialTTL,
	}
}

// SubmitVideo - 단일 영상 Job 등록, Job ID 반환
func (s *Service) SubmitVideo(ctx context.Context, credential string, req *VideoRequest) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if isBlank(req.Prompt) {
		return "", &EmptyPromptError{}
	}
	if isBlank(credential) {
		return "", ErrMissingCredential
	}
	settings, err := req.Settings.Normalize()
	if err != nil {
		return "", err
	}

	input := model.JobInput{
		Prompts:       []string{req.Prompt},
		AspectRatio:   string(settings.AspectRatio),
		EnableSound:   settings.SoundEnabled(),
		Resolution:    string(settings.Resolution),
		SkipThumbnail: req.SkipThumbnail,
	}
	if err := s.attachImage(ctx, &input, req.UserID, req.ImageBase64, req.ImageMimeType, req.ThumbnailFromVideoID); err != nil {
		return "", err
	}

	return s.submit(ctx, credential, req.UserID, model.JobTypeSingle, input)
}

// SubmitStoryboard - 3장면 스토리보드 Job 등록
func (s *Service) SubmitStoryboard(ctx context.Context, credential string, req *StoryboardRequest) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if len(req.Prompts) != StoryboardScenes {
		return "", fmt.Errorf("%w: storyboard needs exactly %d prompts, got %d", ErrInvalidRequest, StoryboardScenes, len(req.Prompts))
	}
	for i, prompt := range req.Prompts {
		if isBlank(prompt) {
			return "", &EmptyPromptError{Scene: i + 1}
		}
	}
	if isBlank(credential) {
		return "", ErrMissingCredential
	}
	settings, err := req.Settings.Normalize()
	if err != nil {
		return "", err
	}

	input := model.JobInput{
		Prompts:     append([]string(nil), req.Prompts...),
		AspectRatio: string(settings.AspectRatio),
		EnableSound: settings.SoundEnabled(),
		Resolution:  string(settings.Resolution),
	}
	if err := s.attachImage(ctx, &input, req.UserID, req.ImageBase64, req.ImageMimeType, req.ThumbnailFromVideoID); err != nil {
		return "", err
	}

	return s.submit(ctx, credential, req.UserID, model.JobTypeStoryboard, input)
}

// attachImage - 업로드 이미지 또는 히스토리 썸네일을 참조 이미지로 설정
func (s *Service) attachImage(ctx context.Context, input *model.JobInput, userID, imageBase64, mimeType, thumbnailFrom string) error {
	if thumbnailFrom != "" {
		data, thumbMime, err := s.ResolveThumbnailImage(ctx, userID, thumbnailFrom)
		if err != nil {
			return err
		}
		input.ImageBase64 = utils.ConvertImageToBase64(data)
		input.ImageMimeType = thumbMime
		return nil
	}
	if imageBase64 == "" {
		return nil
	}

	data, detected, err := utils.DecodeImageData(imageBase64, mimeType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	input.ImageBase64 = utils.ConvertImageToBase64(data)
	input.ImageMimeType = detected
	return nil
}

// ResolveThumbnailImage - 히스토리 항목의 썸네일 바이너리 (참조 이미지 재사용)
func (s *Service) ResolveThumbnailImage(ctx context.Context, userID, videoID string) ([]byte, string, error) {
	video, err := s.history.Get(ctx, userID, videoID)
	if err != nil {
		return nil, "", err
	}
	if video.Thumbnail == nil || len(video.Thumbnail.Data) == 0 {
		return nil, "", fmt.Errorf("%w: video %s has no thumbnail", ErrInvalidRequest, videoID)
	}
	return video.Thumbnail.Data, video.Thumbnail.MimeType, nil
}

func (s *Service) submit(ctx context.Context, credential, userID, jobType string, input model.JobInput) (string, error) {
	jobID := uuid.New().String()

	ok, err := redisutil.AcquireActiveJob(ctx, s.rdb, userID, jobID, activeJobTTL)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &JobInProgressError{JobID: redisutil.ActiveJob(ctx, s.rdb, userID)}
	}

	job := &model.VideoJob{
		JobID:        jobID,
		UserID:       userID,
		JobType:      jobType,
		JobStatus:    model.StatusPending,
		JobInputData: input,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		redisutil.ReleaseActiveJob(context.WithoutCancel(ctx), s.rdb, userID, jobID)
		return "", err
	}

	if err := redisutil.StoreCredential(ctx, s.rdb, jobID, credential, s.credentialTTL); err != nil {
		s.abandon(ctx, userID, jobID, err)
		return "", err
	}

	queueLen, err := redisutil.EnqueueJob(ctx, s.rdb, redisutil.VideoQueue, jobID)
	if err != nil {
		s.abandon(ctx, userID, jobID, err)
		return "", err
	}

	log.Printf("✅ [Service] Job %s enqueued (type: %s, user: %s, queue length: %d)", jobID, jobType, userID, queueLen)
	return jobID, nil
}

// abandon - 큐 등록 전 실패한 Job 정리
func (s *Service) abandon(ctx context.Context, userID, jobID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.jobs.UpdateJobFailed(ctx, jobID, model.StatusFailed, cause.Error(), 0, false); err != nil {
		log.Printf("⚠️ [Service] Failed to mark job %s failed: %v", jobID, err)
	}
	redisutil.ReleaseActiveJob(ctx, s.rdb, userID, jobID)
}

// GetJob - Job 상태 조회
func (s *Service) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := s.jobs.FetchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	progress, err := redisutil.LastProgress(ctx, s.rdb, jobID)
	if err != nil {
		log.Printf("⚠️ [Service] Failed to read progress for %s: %v", jobID, err)
	}
	return &JobStatus{Job: job, Progress: progress}, nil
}

// CancelJob - 취소 플래그 설정 (Worker가 확인 후 중단)
func (s *Service) CancelJob(ctx context.Context, jobID string) (*model.VideoJob, error) {
	job, err := s.jobs.FetchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsFinished() {
		return job, fmt.Errorf("%w: %s", ErrJobFinished, job.JobStatus)
	}
	if err := redisutil.SetJobCancelled(ctx, s.rdb, jobID); err != nil {
		return nil, err
	}
	log.Printf("🛑 [Service] Cancel requested for job %s (status: %s)", jobID, job.JobStatus)
	return job, nil
}

// ListHistory - 사용자 히스토리
func (s *Service) ListHistory(ctx context.Context, userID string) ([]*GeneratedVideo, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	return s.history.List(ctx, userID)
}

// DeleteHistory - 히스토리 항목 삭제
func (s *Service) DeleteHistory(ctx context.Context, userID, videoID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	return s.history.Remove(ctx, userID, videoID)
}

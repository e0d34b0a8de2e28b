package veo3

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"veo-studio-server/modules/common/cancel"
	"veo-studio-server/modules/common/model"
	redisutil "veo-studio-server/modules/common/redis"
	"veo-studio-server/modules/common/utils"
)

const (
	dequeueTimeout      = 5 * time.Second
	cancelCheckInterval = time.Second
)

// Generator - Orchestrator가 구현
type Generator interface {
	Generate(ctx context.Context, credential string, req GenerationRequest, sink ProgressSink) (*GeneratedVideo, error)
	GenerateStoryboard(ctx context.Context, credential string, sb StoryboardSettings, sink ProgressSink) (*GeneratedVideo, error)
}

// Worker - 큐에서 Job을 하나씩 꺼내 순차 처리
type Worker struct {
	rdb           *redis.Client
	jobs          JobStore
	generator     Generator
	history       *History
	checkInterval time.Duration
}

// NewWorker - Worker 생성
func NewWorker(rdb *redis.Client, jobs JobStore, generator Generator, history *History) *Worker {
	return &Worker{
		rdb:           rdb,
		jobs:          jobs,
		generator:     generator,
		history:       history,
		checkInterval: cancelCheckInterval,
	}
}

// Start - ctx가 끝날 때까지 BRPOP 루프
func (w *Worker) Start(ctx context.Context) {
	log.Println("🔄 [Worker] Veo worker started, waiting for jobs...")

	for {
		if ctx.Err() != nil {
			log.Println("🛑 [Worker] Stopped")
			return
		}

		jobID, err := redisutil.DequeueJob(ctx, w.rdb, redisutil.VideoQueue, dequeueTimeout)
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Printf("❌ [Worker] Redis BRPOP error: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		log.Printf("🎯 [Worker] Received job: %s", jobID)
		w.ProcessJob(ctx, jobID)
	}
}

// ProcessJob - Job 하나를 처리하고 결과를 DB / 히스토리에 반영
func (w *Worker) ProcessJob(ctx context.Context, jobID string) {
	job, err := w.jobs.FetchJob(ctx, jobID)
	if err != nil {
		log.Printf("❌ [Worker] Failed to fetch job %s: %v", jobID, err)
		w.abandonUnreadable(ctx, jobID, err)
		return
	}

	// 어떤 경로로 끝나든 사용자 잠금 해제
	defer func() {
		if err := redisutil.ReleaseActiveJob(context.WithoutCancel(ctx), w.rdb, job.UserID, jobID); err != nil {
			log.Printf("⚠️ [Worker] Failed to release active lock for %s: %v", job.UserID, err)
		}
	}()

	if job.IsFinished() {
		log.Printf("⚠️ [Worker] Job %s already %s, skipping", jobID, job.JobStatus)
		return
	}

	if redisutil.IsJobCancelled(ctx, w.rdb, jobID) {
		redisutil.TakeCredential(ctx, w.rdb, jobID)
		w.finishFailed(ctx, jobID, model.StatusUserCancelled, cancel.ErrUserCancelled.Error(), 0, false)
		return
	}

	credential, err := redisutil.TakeCredential(ctx, w.rdb, jobID)
	if err != nil {
		log.Printf("❌ [Worker] No credential for job %s: %v", jobID, err)
		w.finishFailed(ctx, jobID, model.StatusFailed, "API key expired or missing, please enter it again.", 0, true)
		return
	}

	if err := w.jobs.UpdateJobStatus(ctx, jobID, model.StatusProcessing); err != nil {
		log.Printf("⚠️ [Worker] Failed to update status to processing: %v", err)
	}

	runCtx, stop := cancel.WatchJob(ctx, func(ctx context.Context, id string) bool {
		return redisutil.IsJobCancelled(ctx, w.rdb, id)
	}, jobID, w.checkInterval)
	defer stop()

	sink := func(message string) {
		if err := redisutil.PublishProgress(context.WithoutCancel(ctx), w.rdb, jobID, message); err != nil {
			log.Printf("⚠️ [Worker] Failed to publish progress: %v", err)
		}
	}

	startTime := time.Now()
	video, err := w.run(runCtx, credential, job, sink)
	if err != nil {
		if cancel.IsUserCancelled(runCtx) {
			log.Printf("🛑 [Worker] Job %s cancelled by user", jobID)
			w.finishFailed(ctx, jobID, model.StatusUserCancelled, cancel.ErrUserCancelled.Error(), 0, false)
			return
		}
		log.Printf("❌ [Worker] Job %s failed after %v: %v", jobID, time.Since(startTime), err)
		w.finishFailed(ctx, jobID, model.StatusFailed, err.Error(), StatusCode(err), IsCredentialError(err))
		return
	}

	if err := w.history.Add(ctx, job.UserID, video); err != nil {
		log.Printf("⚠️ [Worker] Failed to add video %s to history: %v", video.ID, err)
	}

	thumbnailURL := ""
	if video.Thumbnail != nil {
		thumbnailURL = video.Thumbnail.URL
	}
	updateErr := w.jobs.UpdateJobCompleted(ctx, jobID, video.ID, video.SceneURLs, thumbnailURL)
	w.endProgress(ctx, jobID, model.StatusCompleted)
	if updateErr != nil {
		log.Printf("❌ [Worker] Failed to mark job %s completed: %v", jobID, updateErr)
		return
	}

	log.Printf("✅ [Worker] Job %s completed in %v (video: %s)", jobID, time.Since(startTime), video.ID)
}

// run - JobInput을 요청으로 변환해 생성 실행
func (w *Worker) run(ctx context.Context, credential string, job *model.VideoJob, sink ProgressSink) (*GeneratedVideo, error) {
	input := job.JobInputData
	settings := VideoSettings{
		AspectRatio: AspectRatio(input.AspectRatio),
		EnableSound: boolPtr(input.EnableSound),
		Resolution:  Resolution(input.Resolution),
	}

	var image *ReferenceImage
	if input.ImageBase64 != "" {
		data, mimeType, err := utils.DecodeImageData(input.ImageBase64, input.ImageMimeType)
		if err != nil {
			return nil, err
		}
		image = &ReferenceImage{Data: data, MimeType: mimeType}
	}

	if job.JobType == model.JobTypeStoryboard {
		sb := StoryboardSettings{Image: image, Settings: settings}
		copy(sb.Prompts[:], input.Prompts)
		return w.generator.GenerateStoryboard(ctx, credential, sb, sink)
	}

	prompt := ""
	if len(input.Prompts) > 0 {
		prompt = input.Prompts[0]
	}
	return w.generator.Generate(ctx, credential, GenerationRequest{
		Prompt:        prompt,
		Image:         image,
		Settings:      settings,
		SkipThumbnail: input.SkipThumbnail,
	}, sink)
}

func (w *Worker) finishFailed(ctx context.Context, jobID, status, message string, statusCode int, credentialInvalid bool) {
	ctx = context.WithoutCancel(ctx)
	if err := redisutil.PublishProgress(ctx, w.rdb, jobID, message); err != nil {
		log.Printf("⚠️ [Worker] Failed to publish final status: %v", err)
	}
	if err := w.jobs.UpdateJobFailed(ctx, jobID, status, message, statusCode, credentialInvalid); err != nil {
		log.Printf("❌ [Worker] Failed to mark job %s %s: %v", jobID, status, err)
	}
	w.endProgress(ctx, jobID, status)
}

// abandonUnreadable - Job 레코드를 읽지 못한 경우: credential 폐기, 잠금 해제, 실패 기록 시도
func (w *Worker) abandonUnreadable(ctx context.Context, jobID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if _, err := redisutil.TakeCredential(ctx, w.rdb, jobID); err != nil && !errors.Is(err, redisutil.ErrNoCredential) {
		log.Printf("⚠️ [Worker] Failed to drop credential for %s: %v", jobID, err)
	}
	if err := redisutil.ReleaseActiveJobByID(ctx, w.rdb, jobID); err != nil {
		log.Printf("⚠️ [Worker] Failed to release active lock for job %s: %v", jobID, err)
	}
	w.finishFailed(ctx, jobID, model.StatusFailed, "Failed to load job: "+cause.Error(), 0, false)
}

func (w *Worker) endProgress(ctx context.Context, jobID, status string) {
	if err := redisutil.EndProgress(context.WithoutCancel(ctx), w.rdb, jobID, status); err != nil {
		log.Printf("⚠️ [Worker] Failed to close progress stream for %s: %v", jobID, err)
	}
}

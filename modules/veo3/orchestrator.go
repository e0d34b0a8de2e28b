package veo3

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"veo-studio-server/modules/common/utils"
)

// BlobStore - 결과 바이너리 저장소 (storage.Store와 동일한 형태)
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// FrameExtractor - 비디오 특정 시점의 프레임을 PNG로 추출
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, video []byte, at time.Duration) ([]byte, error)
}

// thumbnailQuality - WebP 변환 품질
const thumbnailQuality = 85

// Orchestrator - 제출 -> 폴링 -> 다운로드 순서로 원격 Job을 끝까지 진행
type Orchestrator struct {
	api     VideoAPI
	fetcher Fetcher
	store   BlobStore
	frames  FrameExtractor
	cfg     OrchestratorConfig

	newID           func() string
	encodeThumbnail func(png []byte) ([]byte, string, error)
}

// NewOrchestrator - frames가 nil이면 썸네일 추출 생략
func NewOrchestrator(api VideoAPI, fetcher Fetcher, store BlobStore, frames FrameExtractor, cfg OrchestratorConfig) *Orchestrator {
	if len(cfg.Messages) == 0 {
		cfg.Messages = LoadingMessages
	}
	return &Orchestrator{
		api:     api,
		fetcher: fetcher,
		store:   store,
		frames:  frames,
		cfg:     cfg,
		newID:   func() string { return uuid.New().String() },
		encodeThumbnail: func(png []byte) ([]byte, string, error) {
			webp, err := utils.ConvertPNGToWebP(png, thumbnailQuality)
			if err != nil {
				return nil, "", err
			}
			return webp, "image/webp", nil
		},
	}
}

// Generate - 단일 영상 생성
func (o *Orchestrator) Generate(ctx context.Context, credential string, req GenerationRequest, sink ProgressSink) (*GeneratedVideo, error) {
	if isBlank(req.Prompt) {
		return nil, &EmptyPromptError{}
	}
	if isBlank(credential) {
		return nil, ErrMissingCredential
	}
	settings, err := req.Settings.Normalize()
	if err != nil {
		return nil, err
	}

	rep := newReporter(sink)
	data, contentType, err := o.runScene(ctx, credential, Submission{
		Prompt:   req.Prompt,
		Image:    req.Image,
		Settings: settings,
	}, rep)
	if err != nil {
		return nil, err
	}

	id := o.newID()
	key := sceneKey(id, 1)
	videoURL, err := o.store.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	video := &GeneratedVideo{
		ID:        id,
		URL:       videoURL,
		SceneURLs: []string{videoURL},
		Prompts:   []string{req.Prompt},
		Settings:  settings,
		BlobKeys:  []string{key},
		CreatedAt: time.Now().UTC(),
	}

	if !req.SkipThumbnail && o.frames != nil {
		if thumb := o.extractThumbnail(ctx, id, data); thumb != nil {
			video.Thumbnail = thumb
			video.BlobKeys = append(video.BlobKeys, thumb.Key)
		}
	}

	rep.emit(msgReady)
	log.Printf("✅ [Orchestrator] Video %s ready: %s", id, videoURL)
	return video, nil
}

// GenerateStoryboard - 3장면을 순서대로 생성
// 한 장면이라도 실패하면 전체 중단, 이미 저장한 장면은 삭제하고 SceneError 반환
func (o *Orchestrator) GenerateStoryboard(ctx context.Context, credential string, sb StoryboardSettings, sink ProgressSink) (*GeneratedVideo, error) {
	for i, prompt := range sb.Prompts {
		if isBlank(prompt) {
			return nil, &EmptyPromptError{Scene: i + 1}
		}
	}
	if isBlank(credential) {
		return nil, ErrMissingCredential
	}
	settings, err := sb.Settings.Normalize()
	if err != nil {
		return nil, err
	}

	id := o.newID()
	prompts := ScenePrompts(sb.Prompts[:])
	rep := newReporter(sink)

	keys := make([]string, 0, StoryboardScenes)
	urls := make([]string, 0, StoryboardScenes)
	for i, prompt := range prompts {
		sub := Submission{Prompt: prompt, Settings: settings}
		if i == 0 {
			sub.Image = sb.Image
		}

		log.Printf("🎞️  [Orchestrator] Storyboard %s scene %d/%d", id, i+1, StoryboardScenes)
		url, key, err := o.generateScene(ctx, credential, id, i+1, sub, rep.scene(i+1, StoryboardScenes))
		if err != nil {
			o.release(ctx, keys)
			log.Printf("❌ [Orchestrator] Storyboard %s aborted at scene %d: %v", id, i+1, err)
			return nil, &SceneError{Index: i + 1, Err: err}
		}
		keys = append(keys, key)
		urls = append(urls, url)
	}

	rep.emit(msgReady)
	log.Printf("✅ [Orchestrator] Storyboard %s ready (%d scenes)", id, len(urls))
	return &GeneratedVideo{
		ID:        id,
		URL:       urls[0],
		SceneURLs: urls,
		Prompts:   append([]string(nil), sb.Prompts[:]...),
		Settings:  settings,
		BlobKeys:  keys,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) generateScene(ctx context.Context, credential, id string, index int, sub Submission, rep *reporter) (string, string, error) {
	data, contentType, err := o.runScene(ctx, credential, sub, rep)
	if err != nil {
		return "", "", err
	}
	key := sceneKey(id, index)
	url, err := o.store.Put(ctx, key, data, contentType)
	if err != nil {
		return "", "", fmt.Errorf("failed to store video: %w", err)
	}
	return url, key, nil
}

// runScene - 제출, 완료까지 폴링, 결과 다운로드
func (o *Orchestrator) runScene(ctx context.Context, credential string, sub Submission, rep *reporter) ([]byte, string, error) {
	rep.emit(msgSubmitting)

	job, err := o.api.Submit(ctx, credential, sub)
	if err != nil {
		return nil, "", &SubmissionError{StatusCode: StatusCode(err), Err: err}
	}

	job, err = o.awaitJob(ctx, credential, job, rep)
	if err != nil {
		return nil, "", err
	}

	if job.State == JobFailed {
		failure := &JobFailedError{JobName: job.Name, Message: "unknown error"}
		if job.Error != nil {
			failure.Code = job.Error.Code
			failure.Message = job.Error.Message
		}
		return nil, "", failure
	}
	if strings.TrimSpace(job.ResultURI) == "" {
		return nil, "", &NoResultError{JobName: job.Name, FilteredReasons: job.FilteredReasons}
	}

	rep.emit(msgDownloading)
	data, contentType, err := o.fetcher.Fetch(ctx, job.ResultURI, credential)
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{Err: err}
		}
		return nil, "", err
	}

	rep.emit(msgFinalizing)
	return data, contentType, nil
}

// awaitJob - 종료 상태가 될 때까지 고정 간격으로 조회 (시도 횟수 제한 없음)
// 폴링 타이머와 메시지 ticker는 어떤 경로로 끝나든 함께 해제
func (o *Orchestrator) awaitJob(ctx context.Context, credential string, job *Job, rep *reporter) (*Job, error) {
	if job.State.IsTerminal() {
		return job, nil
	}

	ticker := startProgressTicker(o.cfg.ProgressInterval, o.cfg.Messages, rep.emit)
	timer := time.NewTimer(o.cfg.PollInterval)
	defer func() {
		timer.Stop()
		ticker.Stop()
	}()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("polling job %s stopped: %w", job.Name, context.Cause(ctx))
		case <-timer.C:
		}

		rep.emit(fmt.Sprintf("Checking generation status (attempt %d)...", attempt))
		update, err := o.api.Poll(ctx, credential, job)
		if err != nil {
			return nil, &PollingError{JobName: job.Name, StatusCode: StatusCode(err), Err: err}
		}
		if err := job.apply(update); err != nil {
			return nil, &PollingError{JobName: job.Name, Err: err}
		}
		if job.State.IsTerminal() {
			log.Printf("🔔 [Orchestrator] Job %s %s after %d poll(s)", job.Name, job.State, attempt)
			return job, nil
		}
		timer.Reset(o.cfg.PollInterval)
	}
}

// extractThumbnail - 실패해도 영상 결과에는 영향 없음 (nil 반환)
func (o *Orchestrator) extractThumbnail(ctx context.Context, id string, video []byte) *Thumbnail {
	frame, err := o.frames.ExtractFrame(ctx, video, o.cfg.ThumbnailOffset)
	if err != nil && o.cfg.ThumbnailOffset > 0 {
		// 영상이 offset보다 짧으면 첫 프레임 사용
		log.Printf("⚠️ [Orchestrator] Frame at %v unavailable, using first frame: %v", o.cfg.ThumbnailOffset, err)
		frame, err = o.frames.ExtractFrame(ctx, video, 0)
	}
	if err != nil {
		log.Printf("⚠️ [Orchestrator] Thumbnail extraction failed for %s: %v", id, err)
		return nil
	}

	preview, previewType, err := o.encodeThumbnail(frame)
	if err != nil {
		log.Printf("⚠️ [Orchestrator] WebP conversion failed, uploading PNG: %v", err)
		preview, previewType = frame, "image/png"
	}

	key := thumbnailKey(id, previewType)
	url, err := o.store.Put(ctx, key, preview, previewType)
	if err != nil {
		log.Printf("⚠️ [Orchestrator] Thumbnail upload failed for %s: %v", id, err)
		return nil
	}

	// 참조 이미지 재사용은 원본 PNG 프레임
	return &Thumbnail{
		URL:             url,
		Key:             key,
		PreviewMimeType: previewType,
		MimeType:        "image/png",
		Data:            frame,
	}
}

// release - 저장된 blob 삭제 (취소된 ctx에서도 수행)
func (o *Orchestrator) release(ctx context.Context, keys []string) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := o.store.Delete(cleanupCtx, key); err != nil {
			log.Printf("⚠️ [Orchestrator] Failed to release blob %s: %v", key, err)
		}
	}
}

func sceneKey(id string, index int) string {
	return fmt.Sprintf("videos/%s/scene-%d.mp4", id, index)
}

func thumbnailKey(id, mimeType string) string {
	ext := "png"
	if mimeType == "image/webp" {
		ext = "webp"
	}
	return fmt.Sprintf("videos/%s/thumbnail.%s", id, ext)
}

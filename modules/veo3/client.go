package veo3

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

var tracer = otel.Tracer("veo3-client")

// VideoAPI - 원격 영상 생성 API (제출 / 상태 조회)
type VideoAPI interface {
	Submit(ctx context.Context, credential string, sub Submission) (*Job, error)
	Poll(ctx context.Context, credential string, job *Job) (*Job, error)
}

// GenaiAPI - google.golang.org/genai 기반 Veo 클라이언트
// credential은 호출마다 받음 (프로세스 전역 키 없음)
type GenaiAPI struct {
	model string
}

// NewGenaiAPI - 모델 이름으로 생성
func NewGenaiAPI(model string) *GenaiAPI {
	return &GenaiAPI{model: model}
}

func (a *GenaiAPI) newClient(ctx context.Context, credential string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// Submit - generateVideos 호출, Job 핸들 반환
func (a *GenaiAPI) Submit(ctx context.Context, credential string, sub Submission) (*Job, error) {
	ctx, span := tracer.Start(ctx, "veo_submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("veo.model", a.model),
		attribute.Bool("veo.has_image", sub.Image != nil),
	)

	client, err := a.newClient(ctx, credential)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var image *genai.Image
	if sub.Image != nil {
		image = &genai.Image{
			ImageBytes: sub.Image.Data,
			MIMEType:   sub.Image.MimeType,
		}
	}

	// EnableSound는 Gemini API backend가 generateAudio를 거부하므로 전송하지 않음
	genConfig := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    string(sub.Settings.AspectRatio),
		Resolution:     string(sub.Settings.Resolution),
	}

	log.Printf("🎬 [Veo] Submitting generation (model: %s, aspect: %s, resolution: %s, image: %v)",
		a.model, sub.Settings.AspectRatio, sub.Settings.Resolution, sub.Image != nil)

	op, err := client.Models.GenerateVideos(ctx, a.model, sub.Prompt, image, genConfig)
	if err != nil {
		span.RecordError(err)
		return nil, wrapAPIError(err)
	}

	job := jobFromOperation(op)
	span.SetAttributes(attribute.String("veo.operation", job.Name))
	log.Printf("✅ [Veo] Operation started: %s", job.Name)
	return job, nil
}

// Poll - getVideosOperation으로 현재 상태 조회
func (a *GenaiAPI) Poll(ctx context.Context, credential string, job *Job) (*Job, error) {
	ctx, span := tracer.Start(ctx, "veo_poll")
	defer span.End()
	span.SetAttributes(attribute.String("veo.operation", job.Name))

	client, err := a.newClient(ctx, credential)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	op, err := client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: job.Name}, nil)
	if err != nil {
		span.RecordError(err)
		return nil, wrapAPIError(err)
	}

	updated := jobFromOperation(op)
	span.SetAttributes(attribute.String("veo.state", updated.State.String()))
	return updated, nil
}

// jobFromOperation - genai operation을 Job으로 변환
func jobFromOperation(op *genai.GenerateVideosOperation) *Job {
	job := &Job{State: JobPending}
	if op == nil {
		return job
	}
	job.Name = op.Name
	if !op.Done {
		return job
	}

	if op.Error != nil {
		job.State = JobFailed
		job.Error = remoteErrorFrom(op.Error)
		return job
	}

	job.State = JobDone
	if op.Response != nil {
		job.FilteredReasons = op.Response.RAIMediaFilteredReasons
		if len(op.Response.GeneratedVideos) > 0 {
			if v := op.Response.GeneratedVideos[0]; v != nil && v.Video != nil {
				job.ResultURI = v.Video.URI
			}
		}
	}
	return job
}

// remoteErrorFrom - operation error payload ({code, message}) 파싱
func remoteErrorFrom(payload map[string]any) *RemoteError {
	remote := &RemoteError{Message: "unknown error"}
	if msg, ok := payload["message"].(string); ok && msg != "" {
		remote.Message = msg
	}
	switch code := payload["code"].(type) {
	case float64:
		remote.Code = int(code)
	case int:
		remote.Code = code
	case int32:
		remote.Code = int(code)
	case int64:
		remote.Code = int(code)
	}
	return remote
}

// wrapAPIError - genai.APIError의 status code를 StatusError로 보존
func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return err
}

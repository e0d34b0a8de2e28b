package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"
	"veo-studio-server/modules/common/config"
	"veo-studio-server/modules/common/model"
)

const jobsTable = "veo_video_jobs"

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient(cfg *config.Config) *Client {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// CreateJob - veo_video_jobs 테이블에 pending 레코드 생성
func (c *Client) CreateJob(ctx context.Context, job *model.VideoJob) error {
	log.Printf("💾 Creating video job record: %s (type: %s)", job.JobID, job.JobType)

	insertData := map[string]interface{}{
		"job_id":         job.JobID,
		"user_id":        job.UserID,
		"job_type":       job.JobType,
		"job_status":     model.StatusPending,
		"job_input_data": job.JobInputData,
	}

	_, _, err := c.supabase.From(jobsTable).
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert video job: %w", err)
	}

	log.Printf("✅ Video job record created: %s", job.JobID)
	return nil
}

// FetchJob - Job 데이터 조회
func (c *Client) FetchJob(ctx context.Context, jobID string) (*model.VideoJob, error) {
	log.Printf("🔍 Fetching video job from Supabase: %s", jobID)

	var jobs []model.VideoJob

	data, _, err := c.supabase.From(jobsTable).
		Select("*", "exact", false).
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query Supabase: %w", err)
	}

	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}

	job := &jobs[0]
	log.Printf("✅ Job fetched successfully: %s (status: %s, type: %s)", job.JobID, job.JobStatus, job.JobType)
	return job, nil
}

// UpdateJobStatus - Job 상태 업데이트
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, status string) error {
	log.Printf("📝 Updating job %s status to: %s", jobID, status)

	updateData := map[string]interface{}{
		"job_status": status,
		"updated_at": "now()",
	}

	if status == model.StatusProcessing {
		updateData["started_at"] = "now()"
	} else if status == model.StatusCompleted || status == model.StatusFailed || status == model.StatusUserCancelled {
		updateData["completed_at"] = "now()"
	}

	return c.update(jobID, updateData)
}

// UpdateJobCompleted - 생성 결과와 함께 완료 처리
func (c *Client) UpdateJobCompleted(ctx context.Context, jobID string, videoID string, videoURLs []string, thumbnailURL string) error {
	log.Printf("🎬 Completing job %s with %d video(s)", jobID, len(videoURLs))

	updateData := map[string]interface{}{
		"job_status":   model.StatusCompleted,
		"video_id":     videoID,
		"video_urls":   videoURLs,
		"completed_at": "now()",
		"updated_at":   "now()",
	}
	if thumbnailURL != "" {
		updateData["thumbnail_url"] = thumbnailURL
	}

	return c.update(jobID, updateData)
}

// UpdateJobFailed - 실패 처리 (원격 status code, credential 무효 여부 포함)
func (c *Client) UpdateJobFailed(ctx context.Context, jobID string, status string, message string, statusCode int, credentialInvalid bool) error {
	log.Printf("❌ Marking job %s as %s: %s", jobID, status, message)

	updateData := map[string]interface{}{
		"job_status":         status,
		"error_message":      message,
		"credential_invalid": credentialInvalid,
		"completed_at":       "now()",
		"updated_at":         "now()",
	}
	if statusCode != 0 {
		updateData["error_status_code"] = statusCode
	}

	return c.update(jobID, updateData)
}

func (c *Client) update(jobID string, updateData map[string]interface{}) error {
	_, _, err := c.supabase.From(jobsTable).
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	log.Printf("✅ Job %s updated", jobID)
	return nil
}

package veo3

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"veo-studio-server/modules/common/cancel"
	"veo-studio-server/modules/common/model"
	redisutil "veo-studio-server/modules/common/redis"
)

// fakeGenerator - 받은 요청을 기록하고 지정된 결과 반환
type fakeGenerator struct {
	mutex      sync.Mutex
	credential string
	single     *GenerationRequest
	storyboard *StoryboardSettings
	err        error
	block      bool
}

func (g *fakeGenerator) Generate(ctx context.Context, credential string, req GenerationRequest, sink ProgressSink) (*GeneratedVideo, error) {
	g.mutex.Lock()
	g.credential = credential
	g.single = &req
	g.mutex.Unlock()
	return g.finish(ctx, sink, req.Prompt)
}

func (g *fakeGenerator) GenerateStoryboard(ctx context.Context, credential string, sb StoryboardSettings, sink ProgressSink) (*GeneratedVideo, error) {
	g.mutex.Lock()
	g.credential = credential
	g.storyboard = &sb
	g.mutex.Unlock()
	return g.finish(ctx, sink, sb.Prompts[:]...)
}

func (g *fakeGenerator) finish(ctx context.Context, sink ProgressSink, prompts ...string) (*GeneratedVideo, error) {
	sink(msgSubmitting)
	if g.block {
		<-ctx.Done()
		return nil, context.Cause(ctx)
	}
	if g.err != nil {
		return nil, g.err
	}
	sink(msgReady)
	return &GeneratedVideo{
		ID:        "vid-1",
		URL:       "http://test/blobs/videos/vid-1/scene-1.mp4",
		SceneURLs: []string{"http://test/blobs/videos/vid-1/scene-1.mp4"},
		Prompts:   prompts,
		Settings:  DefaultSettings(),
		Thumbnail: &Thumbnail{URL: "http://test/blobs/videos/vid-1/thumbnail.webp", Key: "videos/vid-1/thumbnail.webp"},
		CreatedAt: time.Now(),
	}, nil
}

func newTestWorker(f *serviceFixture, generator Generator) *Worker {
	w := NewWorker(f.rdb, f.jobs, generator, f.history)
	w.checkInterval = time.Millisecond
	return w
}

func TestProcessJobCompletes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "secret", &VideoRequest{
		UserID:        "user-1",
		Prompt:        "a cat",
		ImageBase64:   base64.StdEncoding.EncodeToString(pngHeader),
		SkipThumbnail: true,
	})
	require.NoError(t, err)

	gen := &fakeGenerator{}
	newTestWorker(f, gen).ProcessJob(ctx, jobID)

	assert.Equal(t, "secret", gen.credential)
	require.NotNil(t, gen.single)
	assert.Equal(t, "a cat", gen.single.Prompt)
	assert.True(t, gen.single.SkipThumbnail)
	require.NotNil(t, gen.single.Image)
	assert.Equal(t, pngHeader, gen.single.Image.Data)
	assert.Equal(t, "image/png", gen.single.Image.MimeType)

	job := f.jobs.get(t, jobID)
	assert.Equal(t, model.StatusCompleted, job.JobStatus)
	require.NotNil(t, job.VideoID)
	assert.Equal(t, "vid-1", *job.VideoID)
	require.NotNil(t, job.ThumbnailURL)

	videos, err := f.history.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "vid-1", videos[0].ID)

	last, err := redisutil.LastProgress(ctx, f.rdb, jobID)
	require.NoError(t, err)
	assert.Equal(t, msgReady, last)

	ended, ok := redisutil.ProgressEnded(ctx, f.rdb, jobID)
	assert.True(t, ok)
	assert.Equal(t, model.StatusCompleted, ended)

	// 잠금 해제 및 credential 1회성
	assert.Empty(t, redisutil.ActiveJob(ctx, f.rdb, "user-1"))
	_, err = redisutil.TakeCredential(ctx, f.rdb, jobID)
	assert.ErrorIs(t, err, redisutil.ErrNoCredential)
}

func TestProcessJobStoryboard(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitStoryboard(ctx, "secret", &StoryboardRequest{
		UserID:  "user-1",
		Prompts: []string{"A", "B", "C"},
	})
	require.NoError(t, err)

	gen := &fakeGenerator{}
	newTestWorker(f, gen).ProcessJob(ctx, jobID)

	require.NotNil(t, gen.storyboard)
	assert.Equal(t, [StoryboardScenes]string{"A", "B", "C"}, gen.storyboard.Prompts)
	assert.Nil(t, gen.storyboard.Image)
	assert.Equal(t, model.StatusCompleted, f.jobs.get(t, jobID).JobStatus)
}

func TestProcessJobRecordsCredentialFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "bad-key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)

	gen := &fakeGenerator{err: &SubmissionError{StatusCode: 403, Err: &StatusError{StatusCode: 403, Message: "API key not valid"}}}
	newTestWorker(f, gen).ProcessJob(ctx, jobID)

	job := f.jobs.get(t, jobID)
	assert.Equal(t, model.StatusFailed, job.JobStatus)
	require.NotNil(t, job.ErrorStatusCode)
	assert.Equal(t, 403, *job.ErrorStatusCode)
	assert.True(t, job.CredentialInvalid)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "API key not valid")

	videos, err := f.history.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, videos)
	assert.Empty(t, redisutil.ActiveJob(ctx, f.rdb, "user-1"))
}

func TestProcessJobMissingCredential(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)
	_, err = redisutil.TakeCredential(ctx, f.rdb, jobID)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	newTestWorker(f, gen).ProcessJob(ctx, jobID)

	job := f.jobs.get(t, jobID)
	assert.Equal(t, model.StatusFailed, job.JobStatus)
	assert.True(t, job.CredentialInvalid)
	assert.Nil(t, gen.single)
}

func TestProcessJobCancelledBeforeStart(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)
	_, err = f.service.CancelJob(ctx, jobID)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	newTestWorker(f, gen).ProcessJob(ctx, jobID)

	assert.Equal(t, model.StatusUserCancelled, f.jobs.get(t, jobID).JobStatus)
	assert.Nil(t, gen.single)
	_, err = redisutil.TakeCredential(ctx, f.rdb, jobID)
	assert.ErrorIs(t, err, redisutil.ErrNoCredential)
}

func TestProcessJobCancelledWhileRunning(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)

	gen := &fakeGenerator{block: true}
	time.AfterFunc(10*time.Millisecond, func() {
		redisutil.SetJobCancelled(context.Background(), f.rdb, jobID)
	})
	newTestWorker(f, gen).ProcessJob(ctx, jobID)

	job := f.jobs.get(t, jobID)
	assert.Equal(t, model.StatusUserCancelled, job.JobStatus)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, cancel.ErrUserCancelled.Error(), *job.ErrorMessage)
	assert.Empty(t, redisutil.ActiveJob(ctx, f.rdb, "user-1"))
}

// failingFetchStore - 처음 failures번의 FetchJob은 실패
type failingFetchStore struct {
	*fakeJobStore
	failures int
}

func (s *failingFetchStore) FetchJob(ctx context.Context, jobID string) (*model.VideoJob, error) {
	s.mutex.Lock()
	if s.failures > 0 {
		s.failures--
		s.mutex.Unlock()
		return nil, errors.New("supabase unavailable")
	}
	s.mutex.Unlock()
	return s.fakeJobStore.FetchJob(ctx, jobID)
}

func TestProcessJobFetchFailureReleasesUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, jobID, redisutil.ActiveJob(ctx, f.rdb, "user-1"))

	gen := &fakeGenerator{}
	store := &failingFetchStore{fakeJobStore: f.jobs, failures: 1}
	w := NewWorker(f.rdb, store, gen, f.history)
	w.ProcessJob(ctx, jobID)

	assert.Nil(t, gen.single)
	assert.Empty(t, redisutil.ActiveJob(ctx, f.rdb, "user-1"))
	_, err = redisutil.TakeCredential(ctx, f.rdb, jobID)
	assert.ErrorIs(t, err, redisutil.ErrNoCredential)

	job := f.jobs.get(t, jobID)
	assert.Equal(t, model.StatusFailed, job.JobStatus)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "supabase unavailable")

	status, ended := redisutil.ProgressEnded(ctx, f.rdb, jobID)
	assert.True(t, ended)
	assert.Equal(t, model.StatusFailed, status)

	// 같은 사용자가 바로 다시 제출 가능
	_, err = f.service.SubmitVideo(ctx, "key", &VideoRequest{UserID: "user-1", Prompt: "again"})
	assert.NoError(t, err)
}

func TestProcessJobSkipsFinished(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	jobID, err := f.service.SubmitVideo(ctx, "key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)
	require.NoError(t, f.jobs.UpdateJobStatus(ctx, jobID, model.StatusCompleted))

	gen := &fakeGenerator{}
	newTestWorker(f, gen).ProcessJob(ctx, jobID)
	assert.Nil(t, gen.single)
}

func TestWorkerStartProcessesQueue(t *testing.T) {
	f := newServiceFixture(t)
	jobID, err := f.service.SubmitVideo(context.Background(), "key", &VideoRequest{UserID: "user-1", Prompt: "p"})
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestWorker(f, &fakeGenerator{}).Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		return f.jobs.get(t, jobID).JobStatus == model.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}

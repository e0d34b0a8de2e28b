package veo3

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"veo-studio-server/modules/common/model"
	redisutil "veo-studio-server/modules/common/redis"
)

// CredentialHeader - 사용자 API 키 헤더 (서버에 저장하지 않음)
const CredentialHeader = "X-Api-Key"

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 모든 origin 허용 (브라우저 클라이언트)
		return true
	},
}

// ServerMetrics - 서버 메트릭
type ServerMetrics struct {
	SubmittedJobs     int       `json:"submittedJobs"`
	TotalConnections  int       `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	StartTime         time.Time `json:"startTime"`
	mutex             sync.RWMutex
}

// Snapshot - 현재 값 복사
func (m *ServerMetrics) Snapshot() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return map[string]interface{}{
		"uptime":            time.Since(m.StartTime).String(),
		"startTime":         m.StartTime,
		"submittedJobs":     m.SubmittedJobs,
		"totalConnections":  m.TotalConnections,
		"activeConnections": m.ActiveConnections,
	}
}

// SubmitResponse - 제출 응답
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobStatusResponse - Job 상태 응답
type JobStatusResponse struct {
	JobID             string   `json:"jobId"`
	JobType           string   `json:"jobType"`
	Status            string   `json:"status"`
	Progress          string   `json:"progress,omitempty"`
	VideoID           string   `json:"videoId,omitempty"`
	VideoURLs         []string `json:"videoUrls,omitempty"`
	ThumbnailURL      string   `json:"thumbnailUrl,omitempty"`
	Error             string   `json:"error,omitempty"`
	ErrorStatusCode   int      `json:"errorStatusCode,omitempty"`
	CredentialInvalid bool     `json:"credentialInvalid,omitempty"`
}

// Handler - Veo HTTP / WebSocket 핸들러
type Handler struct {
	service *Service
	rdb     *redis.Client
	metrics *ServerMetrics
}

// NewHandler - 핸들러 생성
func NewHandler(service *Service, rdb *redis.Client) *Handler {
	return &Handler{
		service: service,
		rdb:     rdb,
		metrics: &ServerMetrics{StartTime: time.Now()},
	}
}

// Metrics - 메트릭 접근
func (h *Handler) Metrics() *ServerMetrics {
	return h.metrics
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/videos", h.SubmitVideo).Methods("POST")
	r.HandleFunc("/api/storyboards", h.SubmitStoryboard).Methods("POST")
	r.HandleFunc("/api/videos/{jobId}", h.GetJob).Methods("GET")
	r.HandleFunc("/api/jobs/{jobId}/cancel", h.CancelJob).Methods("POST")
	r.HandleFunc("/api/history", h.ListHistory).Methods("GET")
	r.HandleFunc("/api/history/{videoId}", h.DeleteHistory).Methods("DELETE")
	r.HandleFunc("/ws/progress", h.StreamProgress)
	log.Println("✅ [Veo3Handler] Routes registered: /api/videos, /api/storyboards, /api/jobs, /api/history, /ws/progress")
}

// SubmitVideo - 단일 영상 생성 요청
func (h *Handler) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req VideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	jobID, err := h.service.SubmitVideo(r.Context(), r.Header.Get(CredentialHeader), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.countSubmission()

	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: jobID, Status: model.StatusPending})
}

// SubmitStoryboard - 3장면 스토리보드 생성 요청
func (h *Handler) SubmitStoryboard(w http.ResponseWriter, r *http.Request) {
	var req StoryboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	jobID, err := h.service.SubmitStoryboard(r.Context(), r.Header.Get(CredentialHeader), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.countSubmission()

	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: jobID, Status: model.StatusPending})
}

// GetJob - Job 상태 조회
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetJob(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

// CancelJob - Job 취소
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	log.Printf("🛑 [Veo3Handler] Cancel requested for job: %s", jobID)

	job, err := h.service.CancelJob(r.Context(), jobID)
	if errors.Is(err, ErrJobFinished) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success":    false,
			"message":    "Job already " + job.JobStatus,
			"job_id":     jobID,
			"job_status": job.JobStatus,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "Cancel request sent. Generation will stop shortly.",
		"job_id":         jobID,
		"current_status": job.JobStatus,
	})
}

// ListHistory - 히스토리 목록
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	videos, err := h.service.ListHistory(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"count":  len(videos),
	})
}

// DeleteHistory - 히스토리 항목 삭제
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["videoId"]
	if err := h.service.DeleteHistory(r.Context(), r.URL.Query().Get("userId"), videoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamProgress - 진행 메시지를 WebSocket으로 전달
func (h *Handler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "job parameter is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	h.trackConnection(1)
	defer h.trackConnection(-1)
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pubsub := redisutil.SubscribeProgress(ctx, h.rdb, jobID)
	defer pubsub.Close()

	log.Printf("🔍 [Veo3Handler] Progress stream opened for job %s", jobID)

	// 연결 직후 마지막 메시지 전송
	if last, err := redisutil.LastProgress(ctx, h.rdb, jobID); err == nil && last != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(last)); err != nil {
			return
		}
	}

	// 이미 끝난 Job이면 바로 종료
	if status, ended := redisutil.ProgressEnded(ctx, h.rdb, jobID); ended {
		closeProgressStream(conn, jobID, status)
		return
	}

	// 클라이언트가 연결을 닫으면 ctx 취소
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Printf("👋 [Veo3Handler] Progress stream closed for job %s", jobID)
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if status, ended := redisutil.ParseProgressEnd(msg.Payload); ended {
				closeProgressStream(conn, jobID, status)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		}
	}
}

// closeProgressStream - 최종 status를 close reason으로 보내고 정상 종료
func closeProgressStream(conn *websocket.Conn, jobID, status string) {
	log.Printf("🏁 [Veo3Handler] Job %s finished (%s), closing progress stream", jobID, status)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, status)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Printf("WebSocket close error: %v", err)
	}
}

func (h *Handler) countSubmission() {
	h.metrics.mutex.Lock()
	h.metrics.SubmittedJobs++
	h.metrics.mutex.Unlock()
}

func (h *Handler) trackConnection(delta int) {
	h.metrics.mutex.Lock()
	if delta > 0 {
		h.metrics.TotalConnections++
	}
	h.metrics.ActiveConnections += delta
	h.metrics.mutex.Unlock()
}

func toStatusResponse(status *JobStatus) JobStatusResponse {
	job := status.Job
	resp := JobStatusResponse{
		JobID:             job.JobID,
		JobType:           job.JobType,
		Status:            job.JobStatus,
		Progress:          status.Progress,
		VideoURLs:         job.VideoURLs,
		CredentialInvalid: job.CredentialInvalid,
	}
	if job.VideoID != nil {
		resp.VideoID = *job.VideoID
	}
	if job.ThumbnailURL != nil {
		resp.ThumbnailURL = *job.ThumbnailURL
	}
	if job.ErrorMessage != nil {
		resp.Error = *job.ErrorMessage
	}
	if job.ErrorStatusCode != nil {
		resp.ErrorStatusCode = *job.ErrorStatusCode
	}
	return resp
}

// writeError - 에러 종류별 HTTP status 매핑
func writeError(w http.ResponseWriter, err error) {
	var emptyPrompt *EmptyPromptError
	var inProgress *JobInProgressError

	switch {
	case errors.As(err, &emptyPrompt):
		writeJSONError(w, http.StatusBadRequest, "empty_prompt", err.Error())
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidSettings):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ErrMissingCredential):
		writeJSONError(w, http.StatusUnauthorized, "missing_credential", "API key is required")
	case errors.Is(err, model.ErrJobNotFound), errors.Is(err, ErrVideoNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &inProgress):
		writeJSONError(w, http.StatusConflict, "job_in_progress", err.Error())
	default:
		log.Printf("❌ [Veo3Handler] Request failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":     message,
		"errorCode": code,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

package veo3

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AspectRatio - 화면 비율
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Resolution - 출력 해상도
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// ErrInvalidSettings - 허용되지 않은 옵션 값
var ErrInvalidSettings = errors.New("invalid video settings")

// VideoSettings - 표시 옵션 (원격 API가 무시할 수도 있음)
type VideoSettings struct {
	AspectRatio AspectRatio `json:"aspectRatio"`
	EnableSound *bool       `json:"enableSound,omitempty"`
	Resolution  Resolution  `json:"resolution"`
}

func boolPtr(b bool) *bool {
	return &b
}

// DefaultSettings - 16:9, sound on, 720p
func DefaultSettings() VideoSettings {
	return VideoSettings{
		AspectRatio: AspectLandscape,
		EnableSound: boolPtr(true),
		Resolution:  Resolution720p,
	}
}

// Normalize - 빈 값은 기본값으로 채우고 허용 범위를 검사
func (s VideoSettings) Normalize() (VideoSettings, error) {
	if s.AspectRatio == "" {
		s.AspectRatio = AspectLandscape
	}
	if s.Resolution == "" {
		s.Resolution = Resolution720p
	}
	if s.EnableSound == nil {
		s.EnableSound = boolPtr(true)
	}
	switch s.AspectRatio {
	case AspectLandscape, AspectPortrait:
	default:
		return s, fmt.Errorf("%w: aspect ratio %q", ErrInvalidSettings, s.AspectRatio)
	}
	switch s.Resolution {
	case Resolution720p, Resolution1080p:
	default:
		return s, fmt.Errorf("%w: resolution %q", ErrInvalidSettings, s.Resolution)
	}
	return s, nil
}

// SoundEnabled - 지정하지 않았으면 true
func (s VideoSettings) SoundEnabled() bool {
	return s.EnableSound == nil || *s.EnableSound
}

// ReferenceImage - 참조 이미지 바이너리 + MIME
type ReferenceImage struct {
	Data     []byte
	MimeType string
}

// GenerationRequest - 단일 영상 생성 요청
type GenerationRequest struct {
	Prompt        string
	Image         *ReferenceImage
	Settings      VideoSettings
	SkipThumbnail bool
}

// StoryboardScenes - 스토리보드 장면 수 (고정)
const StoryboardScenes = 3

// StoryboardSettings - 3장면 스토리보드 요청, 이미지는 1장면에만 적용
type StoryboardSettings struct {
	Prompts  [StoryboardScenes]string
	Image    *ReferenceImage
	Settings VideoSettings
}

// Submission - 원격 API에 실제로 보내는 단위
type Submission struct {
	Prompt   string
	Image    *ReferenceImage
	Settings VideoSettings
}

// Thumbnail - 추출된 썸네일
// URL / Key / PreviewMimeType은 업로드된 미리보기(WebP, 변환 실패 시 PNG),
// Data / MimeType은 참조 이미지로 재사용할 원본 PNG 프레임 (응답 JSON에는 포함하지 않음)
type Thumbnail struct {
	URL             string `json:"url"`
	Key             string `json:"key"`
	PreviewMimeType string `json:"previewMimeType"`
	MimeType        string `json:"-"`
	Data            []byte `json:"-"`
}

// GeneratedVideo - 완성된 결과물, 생성 후 변경하지 않음
type GeneratedVideo struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	SceneURLs []string      `json:"sceneUrls,omitempty"`
	Prompts   []string      `json:"prompts"`
	Settings  VideoSettings `json:"settings"`
	Thumbnail *Thumbnail    `json:"thumbnail,omitempty"`
	BlobKeys  []string      `json:"blobKeys"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Prompt - 대표 프롬프트 (스토리보드는 " / "로 연결)
func (v *GeneratedVideo) Prompt() string {
	return strings.Join(v.Prompts, " / ")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// VideoRequest - POST /api/videos 요청 body
type VideoRequest struct {
	UserID               string        `json:"userId"`
	Prompt               string        `json:"prompt"`
	ImageBase64          string        `json:"imageBase64,omitempty"`
	ImageMimeType        string        `json:"imageMimeType,omitempty"`
	ThumbnailFromVideoID string        `json:"thumbnailFromVideoId,omitempty"`
	Settings             VideoSettings `json:"settings"`
	SkipThumbnail        bool          `json:"skipThumbnail,omitempty"`
}

// StoryboardRequest - POST /api/storyboards 요청 body
type StoryboardRequest struct {
	UserID               string        `json:"userId"`
	Prompts              []string      `json:"prompts"`
	ImageBase64          string        `json:"imageBase64,omitempty"`
	ImageMimeType        string        `json:"imageMimeType,omitempty"`
	ThumbnailFromVideoID string        `json:"thumbnailFromVideoId,omitempty"`
	Settings             VideoSettings `json:"settings"`
}

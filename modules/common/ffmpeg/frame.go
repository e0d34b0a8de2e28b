package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// FrameExtractor - ffmpeg로 비디오의 특정 시점 프레임을 PNG로 추출
type FrameExtractor struct {
	binary string
}

// NewFrameExtractor - ffmpeg 바이너리 경로로 생성 (빈 값이면 PATH의 ffmpeg)
func NewFrameExtractor(binary string) *FrameExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FrameExtractor{binary: binary}
}

// ExtractFrame - at 시점의 프레임 1장을 PNG 바이너리로 반환
func (e *FrameExtractor) ExtractFrame(ctx context.Context, video []byte, at time.Duration) ([]byte, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("empty video data")
	}

	// 입력은 seek가 필요하므로 임시 파일 사용
	tempDir, err := os.MkdirTemp("", "veo_frame")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	inputPath := filepath.Join(tempDir, "input.mp4")
	if err := os.WriteFile(inputPath, video, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp video: %w", err)
	}

	seek := strconv.FormatFloat(at.Seconds(), 'f', 3, 64)
	cmd := exec.CommandContext(ctx, e.binary,
		"-hide_banner", "-loglevel", "error",
		"-ss", seek,
		"-i", inputPath,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "png",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("🎞️  Extracting frame at %ss", seek)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, stderr.String())
	}

	// 비디오가 at보다 짧으면 ffmpeg는 성공하지만 출력이 없음
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("no frame at %v", at)
	}

	log.Printf("✅ Frame extracted: %d bytes", stdout.Len())
	return stdout.Bytes(), nil
}

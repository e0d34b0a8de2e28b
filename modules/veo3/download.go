package veo3

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Fetcher - 결과 locator에서 바이너리 다운로드
type Fetcher interface {
	Fetch(ctx context.Context, locator, credential string) ([]byte, string, error)
}

// Downloader - credential을 key 쿼리 파라미터로 붙여 다운로드
type Downloader struct {
	httpClient *http.Client
}

// NewDownloader - nil이면 기본 클라이언트 사용
func NewDownloader(httpClient *http.Client) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Downloader{httpClient: httpClient}
}

// Fetch - 바이너리와 Content-Type 반환, 2xx가 아니면 FetchError
func (d *Downloader) Fetch(ctx context.Context, locator, credential string) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "veo_fetch")
	defer span.End()

	target, err := withCredential(locator, credential)
	if err != nil {
		span.RecordError(err)
		return nil, "", &FetchError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		span.RecordError(err)
		return nil, "", &FetchError{Err: fmt.Errorf("failed to create download request: %w", err)}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, "", &FetchError{Err: fmt.Errorf("failed to download video: %w", err)}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &FetchError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("download returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, "", &FetchError{Err: fmt.Errorf("failed to read download body: %w", err)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	span.SetAttributes(attribute.Int("veo.video_bytes", len(data)))
	log.Printf("✅ [Veo] Downloaded video: %d bytes (%s)", len(data), contentType)
	return data, contentType, nil
}

// withCredential - locator에 key=<credential> 추가 (기존 쿼리 유지)
func withCredential(locator, credential string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid result locator: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid result locator: %q", locator)
	}
	q := u.Query()
	q.Set("key", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

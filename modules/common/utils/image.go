package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strings"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// 레퍼런스 이미지로 허용되는 MIME 타입
var supportedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}

// DecodeImageData - base64 문자열 또는 data URL을 바이너리 + MIME 타입으로 변환
// mimeType이 비어 있으면 data URL 헤더 → 바이너리 sniffing 순으로 결정
func DecodeImageData(encoded string, mimeType string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", fmt.Errorf("empty image data")
	}

	// data:image/png;base64,xxxx 형식 처리
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.Index(encoded, ",")
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		header := encoded[len("data:"):comma]
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		encoded = encoded[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 image: %w", err)
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !supportedImageTypes[mimeType] {
		return nil, "", fmt.Errorf("unsupported image type: %s", mimeType)
	}

	return data, mimeType, nil
}

// ConvertPNGToWebP - PNG 바이너리를 WebP로 변환
func ConvertPNGToWebP(pngData []byte, quality float32) ([]byte, error) {
	log.Printf("🔄 Converting PNG to WebP (quality: %.1f)", quality)

	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Printf("✅ PNG converted to WebP: %d bytes → %d bytes", len(pngData), len(webpData))
	return webpData, nil
}

package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImageData(t *testing.T) {
	raw := samplePNG(t)
	b64 := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		encoded  string
		mimeType string
		wantMime string
	}{
		{"plain base64 sniffed", b64, "", "image/png"},
		{"explicit mime", b64, "image/png", "image/png"},
		{"data url", "data:image/png;base64," + b64, "", "image/png"},
		{"surrounding whitespace", "  " + b64 + "\n", "", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := DecodeImageData(tt.encoded, tt.mimeType)
			require.NoError(t, err)
			assert.Equal(t, raw, data)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}

func TestDecodeImageDataErrors(t *testing.T) {
	_, _, err := DecodeImageData("", "")
	assert.ErrorContains(t, err, "empty")

	_, _, err = DecodeImageData("data:image/png;base64", "")
	assert.ErrorContains(t, err, "malformed")

	_, _, err = DecodeImageData("!!!not-base64", "")
	assert.ErrorContains(t, err, "decode")

	text := base64.StdEncoding.EncodeToString([]byte("hello world"))
	_, _, err = DecodeImageData(text, "")
	assert.ErrorContains(t, err, "unsupported image type")
}

func TestConvertImageToBase64(t *testing.T) {
	assert.Equal(t, "aGk=", ConvertImageToBase64([]byte("hi")))
}

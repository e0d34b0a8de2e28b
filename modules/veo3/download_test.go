package veo3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloaderAppendsCredential(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte("mp4-bytes"))
	}))
	defer server.Close()

	data, contentType, err := NewDownloader(server.Client()).Fetch(context.Background(), server.URL+"/files/x:download?alt=media", "my key")
	require.NoError(t, err)

	assert.Equal(t, []byte("mp4-bytes"), data)
	assert.NotEmpty(t, contentType)
	assert.Equal(t, []string{"media"}, query["alt"])
	assert.Equal(t, []string{"my key"}, query["key"])
}

func TestDownloaderNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, _, err := NewDownloader(server.Client()).Fetch(context.Background(), server.URL, "key")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
}

func TestDownloaderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, _, err := NewDownloader(nil).Fetch(context.Background(), url, "key")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestDownloaderRejectsInvalidLocator(t *testing.T) {
	_, _, err := NewDownloader(nil).Fetch(context.Background(), "not a url", "key")

	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

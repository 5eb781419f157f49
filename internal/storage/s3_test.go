package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/nbstreamer/internal/config"
)

func TestKeyForBatch(t *testing.T) {
	at := time.Date(2024, 1, 31, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	assert.Equal(t, "gelf/acme/2024/02/01/b1.jsonl.gz", KeyForBatch("", "acme", "b1", at))
	assert.Equal(t, "archive/acme/2024/02/01/b1.jsonl.gz", KeyForBatch("archive", "acme", "b1", at))
}

func TestNewS3Client(t *testing.T) {
	c, err := NewS3Client(config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = NewS3Client(config.ArchiveConfig{Bucket: "b"})
	assert.Error(t, err)

	c, err = NewS3Client(config.ArchiveConfig{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", c.Bucket())
}

func TestS3Client_PutObjectPathStyle(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewS3Client(config.ArchiveConfig{Endpoint: srv.URL, Bucket: "gelf", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	require.NoError(t, c.PutObject(context.Background(), "gelf/acme/b1.jsonl.gz", []byte("payload"), "application/gzip"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/gelf/gelf/acme/b1.jsonl.gz", path)
	assert.Contains(t, string(body), "payload")
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"fableweaver/internal/cache"
	"fableweaver/internal/config"
	"fableweaver/internal/models"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photoSearchBody = `{
  "total": 2,
  "results": [
    {"id": "a1", "description": "", "alt_description": "misty forest", "width": 4000, "height": 3000,
     "urls": {"regular": "https://img.example/a1", "thumb": "https://img.example/a1t"},
     "user": {"name": "Ansel"}, "links": {"html": "https://photos.example/a1"}},
    {"id": "b2", "description": "no image", "urls": {}}
  ]
}`

func newPhotoProvider(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search/photos", r.URL.Path)
		assert.Equal(t, "Client-ID test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "misty forest", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(photoSearchBody))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestImageSearchMapsProviderResults(t *testing.T) {
	srv, _ := newPhotoProvider(t, http.StatusOK)
	svc := NewImageSearchService(&config.Config{ImageSearchURL: srv.URL + "/", ImageSearchKey: "test-key"})

	results, err := svc.Search(context.Background(), "  Misty   FOREST ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ImageResult{
		ID:          "a1",
		Description: "misty forest",
		URL:         "https://img.example/a1",
		ThumbURL:    "https://img.example/a1t",
		Width:       4000,
		Height:      3000,
		Author:      "Ansel",
		SourceURL:   "https://photos.example/a1",
	}, results[0])
}

func TestImageSearchIsCached(t *testing.T) {
	mr, _ := testutil.NewRedis(t)
	srv, calls := newPhotoProvider(t, http.StatusOK)
	svc := NewImageSearchService(&config.Config{ImageSearchURL: srv.URL, ImageSearchKey: "test-key"})

	_, err := svc.Search(context.Background(), "misty forest")
	require.NoError(t, err)
	results, err := svc.Search(context.Background(), "Misty Forest")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, mr.Exists(cache.ImageSearchKey("misty forest")))
}

func TestImageSearchProviderErrorYieldsEmpty(t *testing.T) {
	mr, _ := testutil.NewRedis(t)
	srv, _ := newPhotoProvider(t, http.StatusTooManyRequests)
	svc := NewImageSearchService(&config.Config{ImageSearchURL: srv.URL, ImageSearchKey: "test-key"})

	results, err := svc.Search(context.Background(), "misty forest")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.False(t, mr.Exists(cache.ImageSearchKey("misty forest")), "failures are not cached")
}

func TestImageSearchUnconfiguredAndValidation(t *testing.T) {
	svc := NewImageSearchService(&config.Config{ImageSearchURL: "https://api.example"})
	assert.False(t, svc.Enabled())

	results, err := svc.Search(context.Background(), "dragons")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = svc.Search(context.Background(), "   ")
	assertCode(t, err, models.CodeValidation)
}

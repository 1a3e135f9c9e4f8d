package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const photoBody = `{
  "photos": [
    {
      "id": 101,
      "width": 4000,
      "height": 3000,
      "alt": "Sunset over the sea",
      "photographer": "Ana",
      "photographer_url": "https://www.pexels.com/@ana",
      "src": {"original": "https://images.pexels.com/101.jpeg", "medium": "https://images.pexels.com/101-m.jpeg"}
    },
    {"id": 102, "src": {"original": "", "medium": ""}}
  ]
}`

const videoBody = `{
  "videos": [
    {
      "id": 201,
      "duration": 12,
      "image": "https://images.pexels.com/v201.jpg",
      "user": {"name": "Ben"},
      "video_files": [
        {"quality": "sd", "link": "https://videos.pexels.com/201-sd.mp4", "width": 640, "height": 360},
        {"quality": "hd", "link": "https://videos.pexels.com/201-hd.mp4", "width": 1920, "height": 1080}
      ]
    },
    {
      "id": 202,
      "duration": 7,
      "image": "https://images.pexels.com/v202.jpg",
      "user": {"name": "Cy"},
      "video_files": [{"quality": "sd", "link": "https://videos.pexels.com/202-sd.mp4", "width": 640, "height": 360}]
    },
    {"id": 203, "video_files": []}
  ]
}`

func pexelsServer(t *testing.T, handler http.HandlerFunc) *PexelsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPexelsClient("px-key", 5*time.Second, zap.NewNop(),
		WithPexelsBaseURL(srv.URL),
		WithRetryInterval(time.Millisecond),
	)
}

func TestPexelsSearchPhotos(t *testing.T) {
	c := pexelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "px-key", r.Header.Get("Authorization"))
		assert.Equal(t, "sunset sea", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(photoBody))
	})

	got, err := c.Search(context.Background(), "sunset sea", 5, models.AssetTypeImage)
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "pexels", p.Provider)
	assert.Equal(t, models.AssetTypeImage, p.AssetType)
	assert.Equal(t, "https://images.pexels.com/101.jpeg", p.SourceURL)
	assert.Equal(t, "https://images.pexels.com/101-m.jpeg", p.ThumbnailURL)
	assert.Equal(t, "Sunset over the sea", p.Title)
	assert.Equal(t, "Pexels License", p.License)
	assert.Equal(t, "Ana", p.Meta["photographer"])
	assert.EqualValues(t, 101, p.Meta["pexels_id"])
	assert.EqualValues(t, 4000, p.Meta["width"])
}

func TestPexelsSearchVideos(t *testing.T) {
	c := pexelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/search", r.URL.Path)
		_, _ = w.Write([]byte(videoBody))
	})

	got, err := c.Search(context.Background(), "ocean", 2, models.AssetTypeVideo)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "https://videos.pexels.com/201-hd.mp4", got[0].SourceURL)
	assert.Equal(t, "https://images.pexels.com/v201.jpg", got[0].ThumbnailURL)
	assert.Empty(t, got[0].Title)
	assert.Equal(t, "Ben", got[0].Meta["user"])
	assert.EqualValues(t, 1920, got[0].Meta["width"])
	assert.EqualValues(t, 12, got[0].Meta["duration"])

	assert.Equal(t, "https://videos.pexels.com/202-sd.mp4", got[1].SourceURL, "falls back to the first file")
}

func TestPexelsWithoutKey(t *testing.T) {
	c := NewPexelsClient("", time.Second, zap.NewNop(), WithPexelsBaseURL("http://127.0.0.1:1"))
	got, err := c.Search(context.Background(), "anything", 5, models.AssetTypeImage)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPexelsRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := pexelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(photoBody))
	})

	got, err := c.Search(context.Background(), "sunset", 5, models.AssetTypeImage)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPexelsGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	c := pexelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), "sunset", 5, models.AssetTypeImage)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPexelsClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := pexelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := c.Search(context.Background(), "sunset", 5, models.AssetTypeImage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPexelsUnsupportedType(t *testing.T) {
	c := NewPexelsClient("px-key", time.Second, zap.NewNop())
	_, err := c.Search(context.Background(), "x", 1, models.AssetType("audio"))
	assert.Error(t, err)
}

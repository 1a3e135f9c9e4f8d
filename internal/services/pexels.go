package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	pexelsProvider = "pexels"
	pexelsLicense  = "Pexels License"
	pexelsBaseURL  = "https://api.pexels.com"
	pexelsAttempts = 3
)

// PexelsOption customizes a PexelsClient.
type PexelsOption func(*PexelsClient)

// WithPexelsBaseURL overrides https://api.pexels.com.
func WithPexelsBaseURL(u string) PexelsOption {
	return func(c *PexelsClient) { c.baseURL = u }
}

// WithRetryInterval sets the first backoff interval between attempts.
func WithRetryInterval(d time.Duration) PexelsOption {
	return func(c *PexelsClient) { c.retryInterval = d }
}

// PexelsClient searches Pexels photos and videos.
type PexelsClient struct {
	apiKey        string
	baseURL       string
	retryInterval time.Duration
	client        *http.Client
	log           *zap.Logger
}

func NewPexelsClient(apiKey string, timeout time.Duration, log *zap.Logger, opts ...PexelsOption) *PexelsClient {
	c := &PexelsClient{
		apiKey:        apiKey,
		baseURL:       pexelsBaseURL,
		retryInterval: 500 * time.Millisecond,
		client:        &http.Client{Timeout: timeout},
		log:           log.Named("pexels"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pexels API response structures
type pexelsPhotoResponse struct {
	Photos []pexelsPhoto `json:"photos"`
}

type pexelsPhoto struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Alt             string `json:"alt"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Src             struct {
		Original string `json:"original"`
		Medium   string `json:"medium"`
	} `json:"src"`
}

type pexelsVideoResponse struct {
	Videos []pexelsVideo `json:"videos"`
}

type pexelsVideo struct {
	ID       int64  `json:"id"`
	Duration int    `json:"duration"`
	Image    string `json:"image"`
	User     struct {
		Name string `json:"name"`
	} `json:"user"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsVideoFile struct {
	Quality string `json:"quality"`
	Link    string `json:"link"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Search returns up to count candidates of assetType for keyword. Without
// an API key it returns no candidates.
func (c *PexelsClient) Search(ctx context.Context, keyword string, count int, assetType models.AssetType) ([]models.Candidate, error) {
	if c.apiKey == "" {
		c.log.Warn("pexels api key not configured, skipping search")
		return []models.Candidate{}, nil
	}

	switch assetType {
	case models.AssetTypeVideo:
		return c.searchVideos(ctx, keyword, count)
	case models.AssetTypeImage:
		return c.searchPhotos(ctx, keyword, count)
	default:
		return nil, fmt.Errorf("unsupported asset type %q", assetType)
	}
}

func (c *PexelsClient) searchPhotos(ctx context.Context, keyword string, count int) ([]models.Candidate, error) {
	var resp pexelsPhotoResponse
	if err := c.get(ctx, "/v1/search", keyword, count, &resp); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(resp.Photos))
	for _, p := range resp.Photos {
		if p.Src.Original == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Provider:     pexelsProvider,
			AssetType:    models.AssetTypeImage,
			SourceURL:    p.Src.Original,
			ThumbnailURL: p.Src.Medium,
			Title:        p.Alt,
			License:      pexelsLicense,
			Meta: models.JSONB{
				"photographer":     p.Photographer,
				"photographer_url": p.PhotographerURL,
				"pexels_id":        p.ID,
				"width":            p.Width,
				"height":           p.Height,
			},
		})
	}

	c.log.Debug("photo search complete", zap.String("query", keyword), zap.Int("results", len(candidates)))
	return candidates, nil
}

func (c *PexelsClient) searchVideos(ctx context.Context, keyword string, count int) ([]models.Candidate, error) {
	var resp pexelsVideoResponse
	if err := c.get(ctx, "/videos/search", keyword, count, &resp); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(resp.Videos))
	for _, v := range resp.Videos {
		file, ok := bestVideoFile(v.VideoFiles)
		if !ok || file.Link == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Provider:     pexelsProvider,
			AssetType:    models.AssetTypeVideo,
			SourceURL:    file.Link,
			ThumbnailURL: v.Image,
			License:      pexelsLicense,
			Meta: models.JSONB{
				"duration":  v.Duration,
				"pexels_id": v.ID,
				"width":     file.Width,
				"height":    file.Height,
				"user":      v.User.Name,
			},
		})
	}

	c.log.Debug("video search complete", zap.String("query", keyword), zap.Int("results", len(candidates)))
	return candidates, nil
}

// bestVideoFile prefers the first HD file, then the first file.
func bestVideoFile(files []pexelsVideoFile) (pexelsVideoFile, bool) {
	for _, f := range files {
		if f.Quality == "hd" {
			return f, true
		}
	}
	if len(files) > 0 {
		return files[0], true
	}
	return pexelsVideoFile{}, false
}

// get performs a search request with exponential backoff on rate limiting
// and server errors, and decodes the JSON body into result.
func (c *PexelsClient) get(ctx context.Context, path, keyword string, count int, result interface{}) error {
	query := url.Values{}
	query.Set("query", keyword)
	query.Set("per_page", strconv.Itoa(count))
	endpoint := c.baseURL + path + "?" + query.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to perform request: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				c.log.Warn("failed to close response body", zap.Error(err))
			}
		}()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			c.log.Warn("pexels request failed, retrying",
				zap.Int("status", resp.StatusCode),
				zap.String("path", path),
				zap.String("query", keyword),
			)
			return fmt.Errorf("pexels returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("pexels returned status %d: %s", resp.StatusCode, string(msg)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = 5 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	policy := backoff.WithContext(backoff.WithMaxRetries(b, pexelsAttempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("pexels search %q failed: %w", keyword, err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode pexels response: %w", err)
	}
	return nil
}

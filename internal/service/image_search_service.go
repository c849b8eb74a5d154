package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fableweaver/internal/cache"
	"fableweaver/internal/config"
	"fableweaver/internal/models"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
)

const (
	imageSearchTimeout  = 10 * time.Second
	imageSearchPageSize = 20
	maxImageQueryLen    = 100
)

// ImageResult is one stock image offered as a cover or avatar reference.
type ImageResult struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ThumbURL    string `json:"thumb_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Author      string `json:"author"`
	SourceURL   string `json:"source_url"`
}

type providerPhoto struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	URLs           struct {
		Regular string `json:"regular"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	Links struct {
		HTML string `json:"html"`
	} `json:"links"`
}

type providerSearchResponse struct {
	Total   int             `json:"total"`
	Results []providerPhoto `json:"results"`
}

// ImageSearchService proxies an Unsplash-style photo search API.
type ImageSearchService struct {
	client *resty.Client
}

// NewImageSearchService returns a service that yields no results when no
// provider key is configured.
func NewImageSearchService(cfg *config.Config) *ImageSearchService {
	if cfg == nil || cfg.ImageSearchKey == "" || cfg.ImageSearchURL == "" {
		return &ImageSearchService{}
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ImageSearchURL, "/")).
		SetTimeout(imageSearchTimeout).
		SetHeader("Accept-Version", "v1").
		SetHeader("Authorization", "Client-ID "+cfg.ImageSearchKey).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &ImageSearchService{client: client}
}

// Enabled reports whether a provider is configured.
func (s *ImageSearchService) Enabled() bool { return s.client != nil }

func normalizeImageQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Search returns photos matching query, cached per normalized query for an
// hour. Provider failures are logged and yield an empty, uncached result.
func (s *ImageSearchService) Search(ctx context.Context, query string) ([]ImageResult, error) {
	query = normalizeImageQuery(query)
	if query == "" {
		return nil, models.NewValidationError("Query is required")
	}
	if utf8.RuneCountInString(query) > maxImageQueryLen {
		return nil, models.NewValidationError("Query too long (max 100 characters)")
	}
	if !s.Enabled() {
		return []ImageResult{}, nil
	}

	var results []ImageResult
	err := cache.Aside(ctx, cache.ImageSearchKey(query), &results, cache.ImageSearchTTL, func() error {
		fetched, err := s.fetch(ctx, query)
		if err != nil {
			return err
		}
		results = fetched
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "image search failed", slog.String("query", query), slog.String("error", err.Error()))
		return []ImageResult{}, nil
	}
	return results, nil
}

func (s *ImageSearchService) fetch(ctx context.Context, query string) ([]ImageResult, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":          query,
			"per_page":       strconv.Itoa(imageSearchPageSize),
			"content_filter": "high",
		}).
		SetResult(&providerSearchResponse{}).
		Get("/search/photos")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("image provider returned status %d", resp.StatusCode())
	}
	body := resp.Result().(*providerSearchResponse)
	return lo.FilterMap(body.Results, func(r providerPhoto, _ int) (ImageResult, bool) {
		return ImageResult{
			ID:          r.ID,
			Description: lo.CoalesceOrEmpty(r.Description, r.AltDescription),
			URL:         r.URLs.Regular,
			ThumbURL:    r.URLs.Thumb,
			Width:       r.Width,
			Height:      r.Height,
			Author:      r.User.Name,
			SourceURL:   r.Links.HTML,
		}, r.URLs.Regular != ""
	}), nil
}

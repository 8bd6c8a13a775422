package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tempest-engine/work/client"
	"tempest-engine/work/config"
	"tempest-engine/work/logger"
	"tempest-engine/work/types"

	"go.uber.org/ratelimit"
)

// assetRecord is the wire shape of one asset as served by the external content
// database. Field names follow the upstream API; durations arrive in seconds and
// timestamps as RFC 3339 strings.
type assetRecord struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	SourceReference string            `json:"sourceReference"`
	Thumbnail       string            `json:"thumbnailPath"`
	DurationSeconds int               `json:"durationSeconds"`
	Category        string            `json:"category"`
	Tags            []string          `json:"tags"`
	UploadedAt      time.Time         `json:"uploadedAt"`
	Metadata        map[string]string `json:"metadata"`
}

// Client fetches bulk asset listings from the external content source. Requests
// are paced by a per-second rate limiter so schedule-triggered re-syncs can never
// hammer the upstream API.
type Client struct {
	cfg        *config.Config
	httpClient *client.HeaderSettingClient
	limiter    ratelimit.Limiter
}

// NewClient wires a source client against the configured endpoint.
func NewClient(cfg *config.Config, httpClient *client.HeaderSettingClient) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    ratelimit.New(cfg.SourceRateLimit),
	}
}

// FetchAssets performs the bulk fetch against the asset source and converts the
// wire records into catalog assets. Records without an id are dropped with a
// warning; one malformed record never fails the batch.
func (c *Client) FetchAssets(ctx context.Context) ([]*types.VideoAsset, error) {
	if c.cfg.SourceURL == "" {
		return nil, fmt.Errorf("no source URL configured")
	}

	// pace the request
	c.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned HTTP %d", resp.StatusCode)
	}

	var records []assetRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode source response: %w", err)
	}

	now := time.Now()
	assets := make([]*types.VideoAsset, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			logger.Warn("{source/source - FetchAssets} dropping record without id (title: %q)", rec.Title)
			continue
		}
		if rec.DurationSeconds < 0 {
			logger.Warn("{source/source - FetchAssets} clamping negative duration for asset %s", rec.ID)
			rec.DurationSeconds = 0
		}
		assets = append(assets, &types.VideoAsset{
			ID:              rec.ID,
			Title:           rec.Title,
			Description:     rec.Description,
			SourceReference: rec.SourceReference,
			Thumbnail:       rec.Thumbnail,
			DurationSeconds: rec.DurationSeconds,
			Category:        rec.Category,
			Tags:            rec.Tags,
			UploadedAt:      rec.UploadedAt,
			LastSyncedAt:    now,
			Metadata:        rec.Metadata,
		})
	}

	logger.Debug("{source/source - FetchAssets} fetched %d assets (%d records)", len(assets), len(records))
	return assets, nil
}

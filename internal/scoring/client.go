package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// Client pushes fused tracks to the scoring service over HTTP, reusing the
// bearer token that authorized the originating observation so the trust
// chain is preserved end-to-end. It satisfies fusion.ThreatSubmitter.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient creates a new scoring push client
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log.Named("scoring-client"),
	}
}

// SubmitTrack posts one track to the scoring submit endpoint. A single
// attempt is made; the caller treats any error as best-effort.
func (c *Client) SubmitTrack(ctx context.Context, track *fusion.Track, bearerToken string) error {
	body, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/scoring/tracks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("scoring push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scoring rejected track %s: status %d", track.TrackID, resp.StatusCode)
	}

	c.logger.Debug("Track pushed to scoring",
		logger.String("track_id", track.TrackID))
	return nil
}

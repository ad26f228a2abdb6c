// Package tagservice implements the TagSearch capability: a
// rate-limited, retrying HTTP client over a Beatport-style tag-lookup
// service, used by Analysis's batch tag-fix operation. Requests are
// bounded to a 10s total deadline per item (§6.3); on timeout the
// caller gets ExternalUnavailable, not a crash of the batch.
package tagservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jvegaf/symphony-engine/internal/engineerr"
)

const (
	userAgent    = "symphony-engine/0.1"
	rateLimitDur = 250 * time.Millisecond

	maxRetries   = 3
	initialDelay = time.Second
	maxDelay     = 8 * time.Second

	// PerItemDeadline bounds one Search call end-to-end, per §6.3.
	PerItemDeadline = 10 * time.Second
)

// Candidate is one ranked match returned by the tag-lookup service.
type Candidate struct {
	RemoteID        string
	Title           string
	MixName         string
	Artists         []string
	BPM             *float64
	Key             *string
	Genre           *string
	Label           *string
	ReleaseDate     *string
	DurationSecs    *float64
	ArtworkURL      *string
	SimilarityScore float64
}

// TagSearch is the capability Analysis's batch tag-fix depends on.
// Variants are fixed at build time per §9 ("dynamic dispatch... modeled
// as a small capability set").
type TagSearch interface {
	Search(ctx context.Context, title, artist string, durationSecs float64) ([]Candidate, error)
}

// Client is the default TagSearch implementation, talking to a
// Beatport-style search endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	lastRequest time.Time
	mu          sync.Mutex
}

// NewClient returns a Client targeting baseURL, authenticating with
// apiKey (sent as a bearer token) if non-empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: PerItemDeadline},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type searchResponse struct {
	Results []struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		MixName     string   `json:"mix_name"`
		Artists     []string `json:"artists"`
		BPM         *float64 `json:"bpm"`
		Key         *string  `json:"key"`
		Genre       *string  `json:"genre"`
		Label       *string  `json:"label"`
		ReleaseDate *string  `json:"release_date"`
		Duration    *float64 `json:"duration_secs"`
		Artwork     *string  `json:"artwork_url"`
		Score       float64  `json:"similarity_score"`
	} `json:"results"`
}

// Search queries the tag-lookup service for candidates matching
// (title, artist, duration). A per-call deadline of PerItemDeadline is
// enforced regardless of ctx's own deadline.
func (c *Client) Search(ctx context.Context, title, artist string, durationSecs float64) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, PerItemDeadline)
	defer cancel()

	params := url.Values{}
	params.Set("title", title)
	params.Set("artist", artist)
	params.Set("duration", fmt.Sprintf("%.2f", durationSecs))

	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpTagSearch, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpTagSearch, errTimeout)
		}
		return nil, engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpTagSearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpTagSearch,
			fmt.Errorf("tag service status %d", resp.StatusCode))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, engineerr.Wrap(engineerr.KindExternalUnavailable, engineerr.OpTagSearch, err)
	}

	candidates := make([]Candidate, 0, len(result.Results))
	for _, r := range result.Results {
		candidates = append(candidates, Candidate{
			RemoteID:        r.ID,
			Title:           r.Title,
			MixName:         r.MixName,
			Artists:         r.Artists,
			BPM:             r.BPM,
			Key:             r.Key,
			Genre:           r.Genre,
			Label:           r.Label,
			ReleaseDate:     r.ReleaseDate,
			DurationSecs:    r.Duration,
			ArtworkURL:      r.Artwork,
			SimilarityScore: r.Score,
		})
	}
	return candidates, nil
}

// waitForRateLimit serializes outbound requests, mirroring the
// teacher's MusicBrainz client.
func (c *Client) waitForRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < rateLimitDur {
		time.Sleep(rateLimitDur - elapsed)
	}
	c.lastRequest = time.Now()
}

func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	c.waitForRateLimit()
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
			delay = min(delay*2, maxDelay)
			c.waitForRateLimit()
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode < 500 {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("tag service status %d", resp.StatusCode)
	}
	return nil, fmt.Errorf("tag search failed after %d attempts: %w", maxRetries+1, lastErr)
}

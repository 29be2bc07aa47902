package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/rank"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

func languageOf(s string) coherency.Language { return coherency.Language(s) }

func coherencyFromTotal(total float64) coherency.Score { return coherency.Score{Total: total} }

// RemoteTier reaches a remote pattern store over HTTP/JSON with
// bearer-token auth: POST /api/search for queries, GET /api/health for
// reachability. Remote writes are not part of the core.
type RemoteTier struct {
	name    string
	baseURL string
	bearer  string
	client  *http.Client
}

// NewRemoteTier constructs a RemoteTier. timeout bounds the underlying
// http.Client in addition to whatever per-call context deadline Federation
// applies.
func NewRemoteTier(name, baseURL, bearer string, timeout time.Duration) *RemoteTier {
	return &RemoteTier{
		name:    name,
		baseURL: baseURL,
		bearer:  bearer,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *RemoteTier) Name() store.Tier { return store.RemoteTier(r.name) }

type searchRequest struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Language    string   `json:"language,omitempty"`
}

type searchResponse struct {
	Patterns []remotePattern `json:"patterns"`
}

type remotePattern struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Language    string   `json:"language"`
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Coherency   float64  `json:"coherencyTotal"`
	UsageCount  int      `json:"usageCount"`
	SuccessCount int     `json:"successCount"`
}

// Search POSTs the query to <baseURL>/api/search and decodes the pattern list.
func (r *RemoteTier) Search(ctx context.Context, q rank.Query) ([]store.Pattern, error) {
	reqBody := searchRequest{Description: q.Description, Tags: q.Tags, Language: string(q.Language)}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal federation search request: %w", err)
	}

	endpoint, err := url.JoinPath(r.baseURL, "api", "search")
	if err != nil {
		return nil, fmt.Errorf("build federation search url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create federation search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("federation search request to %s failed: %w", r.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("remote tier %s returned status %d: %s", r.name, httpResp.StatusCode, string(bodyBytes))
	}

	var resp searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode federation search response from %s: %w", r.name, err)
	}

	logging.FederationDebug("remote tier %s returned %d patterns", r.name, len(resp.Patterns))

	out := make([]store.Pattern, 0, len(resp.Patterns))
	for _, rp := range resp.Patterns {
		out = append(out, store.Pattern{
			ID: rp.ID, Name: rp.Name, Language: languageOf(rp.Language), Code: rp.Code,
			Description: rp.Description, Tags: rp.Tags,
			CoherencyScore: coherencyFromTotal(rp.Coherency),
			UsageCount:     rp.UsageCount, SuccessCount: rp.SuccessCount,
			Status: store.StatusProven,
		})
	}
	return out, nil
}

// Health probes GET <baseURL>/api/health, reporting reachability without
// consuming a search slot.
func (r *RemoteTier) Health(ctx context.Context) error {
	endpoint, err := url.JoinPath(r.baseURL, "api", "health")
	if err != nil {
		return fmt.Errorf("build federation health url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create federation health request: %w", err)
	}
	if r.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health probe of %s failed: %w", r.name, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return fmt.Errorf("remote tier %s unhealthy: status %d", r.name, httpResp.StatusCode)
	}
	return nil
}

var _ Tier = (*RemoteTier)(nil)

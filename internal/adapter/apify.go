package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

const (
	// DefaultApifyBaseURL is the public Apify API root.
	DefaultApifyBaseURL = "https://api.apify.com/v2"
	// DefaultRecencyWindow is how far back a dated posting may be.
	DefaultRecencyWindow = 48 * time.Hour

	maxResponseBytes = 64 << 20
)

// apifyInput is the actor input built from a group's search query.
type apifyInput struct {
	Keywords          []string `json:"keywords"`
	Query             string   `json:"query"`
	Locations         []string `json:"locations,omitempty"`
	WorkModes         []string `json:"workModes,omitempty"`
	JobType           string   `json:"jobType,omitempty"`
	MaxResults        int      `json:"maxResults,omitempty"`
	PostedWithinHours int      `json:"postedWithinHours"`
}

// ApifyConfig holds the settings for an ApifyAdapter.
type ApifyConfig struct {
	BaseURL       string
	Actor         string
	Token         string
	RecencyWindow time.Duration
}

// ApifyAdapter searches job postings through an Apify actor that returns its
// dataset items synchronously.
type ApifyAdapter struct {
	baseURL string
	actor   string
	token   string
	window  time.Duration
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewApifyAdapter creates an adapter for the configured actor.
func NewApifyAdapter(cfg ApifyConfig, client *http.Client, logger *slog.Logger) *ApifyAdapter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultApifyBaseURL
	}
	window := cfg.RecencyWindow
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return &ApifyAdapter{
		baseURL: baseURL,
		actor:   strings.ReplaceAll(cfg.Actor, "/", "~"),
		token:   cfg.Token,
		window:  window,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// Search runs the actor once for the query and returns normalized postings
// that fall inside the recency window.
func (a *ApifyAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.CanonicalPosting, error) {
	input := apifyInput{
		Keywords:          q.Keywords,
		Query:             strings.Join(q.Keywords, " OR "),
		Locations:         q.Locations,
		JobType:           q.JobType,
		MaxResults:        q.MaxResults,
		PostedWithinHours: int(a.window / time.Hour),
	}
	for _, m := range q.WorkModes {
		input.WorkModes = append(input.WorkModes, string(m))
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("apify search for %s: %w", q.GroupID, err)
	}

	url := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items", a.baseURL, a.actor)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("apify search for %s: %w", q.GroupID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apify search for %s: %w", q.GroupID, err)
	}
	defer resp.Body.Close()

	// run-sync-get-dataset-items answers 201 on some actor versions
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &model.HTTPError{
			Service:    "apify",
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("search for %s: %s", q.GroupID, strings.TrimSpace(string(snippet))),
		}
	}

	var items []rawItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&items); err != nil {
		return nil, fmt.Errorf("apify search for %s: decode items: %w", q.GroupID, err)
	}

	now := a.now()
	postings := make([]model.CanonicalPosting, 0, len(items))
	var noID, stale int
	for _, item := range items {
		p, ok := normalize(item, now)
		if !ok {
			noID++
			a.logger.Debug("dropping item without identifier", "group", q.GroupID, "title", describeItem(item))
			continue
		}
		if !withinWindow(p, now, a.window) {
			stale++
			continue
		}
		postings = append(postings, p)
	}

	a.logger.Debug("apify search complete",
		"group", q.GroupID,
		"items", len(items),
		"kept", len(postings),
		"no_id", noID,
		"stale", stale,
	)
	return postings, nil
}

package search

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/hyphertext/internal/consts"
)

// DefaultBraveURL is the Brave web search endpoint.
const DefaultBraveURL = "https://api.search.brave.com/res/v1/web/search"

// BraveSearchProvider implements Provider for the Brave Search API
type BraveSearchProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewBraveSearchProvider creates a Brave provider. Empty endpoint and zero
// timeout select the defaults.
func NewBraveSearchProvider(apiKey, endpoint string, timeout time.Duration) *BraveSearchProvider {
	if endpoint == "" {
		endpoint = DefaultBraveURL
	}
	if timeout <= 0 {
		timeout = consts.SearchTimeout
	}
	return &BraveSearchProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search performs a web search using the Brave API
func (b *BraveSearchProvider) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if numResults <= 0 {
		numResults = consts.SearchResultCount
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(numResults))
	params.Set("text_decorations", "false")
	params.Set("search_lang", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress response: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(body, 1024))
		return nil, fmt.Errorf("brave API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var decoded braveResponse
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Web.Results))
	for _, r := range decoded.Web.Results {
		results = append(results, Result{Title: r.Title, Description: r.Description, URL: r.URL})
	}
	return results, nil
}

// Name returns the provider name
func (b *BraveSearchProvider) Name() string {
	return "brave"
}

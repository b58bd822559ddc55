package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Result represents a single search result
type Result struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Provider defines the interface for web search providers
type Provider interface {
	// Search performs a web search with the given query
	Search(ctx context.Context, query string, numResults int) ([]Result, error)

	// Name returns the name of the search provider
	Name() string
}

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("search query is empty")

// unavailableResult is what the agent sees when no provider is configured.
var unavailableResult = Result{
	Title:       "Search unavailable",
	Description: "No search API key configured.",
	URL:         "",
}

// Unavailable answers every query with a single explanatory result so the
// agent loop keeps going without credentials.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Search(context.Context, string, int) ([]Result, error) {
	r := unavailableResult
	if u.Reason != "" {
		r.Description = u.Reason
	}
	return []Result{r}, nil
}

func (u Unavailable) Name() string { return "unavailable" }

// FormatResults renders results as the numbered plain text block that is
// handed to the model.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}

	lines := make([]string, 0, len(results)*4)
	for i, r := range results {
		lines = append(lines,
			fmt.Sprintf("%d. %s", i+1, r.Title),
			"   "+r.Description,
			"   "+r.URL,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// Options selects and configures a provider.
type Options struct {
	Provider          string // "brave", "exa" or ""
	BraveAPIKey       string
	BraveURL          string
	ExaAPIKey         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewProvider builds the configured provider. Missing credentials yield
// Unavailable rather than an error.
func NewProvider(opts Options) (Provider, error) {
	var p Provider
	switch opts.Provider {
	case "brave":
		if opts.BraveAPIKey == "" {
			return Unavailable{Reason: "No Brave Search API key configured."}, nil
		}
		p = NewBraveSearchProvider(opts.BraveAPIKey, opts.BraveURL, opts.Timeout)
	case "exa":
		if opts.ExaAPIKey == "" {
			return Unavailable{Reason: "No Exa API key configured."}, nil
		}
		p = NewExaSearchProvider(opts.ExaAPIKey, "", opts.Timeout)
	case "":
		return Unavailable{Reason: "Web search is disabled."}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", opts.Provider)
	}

	if opts.RequestsPerSecond > 0 {
		p = NewRateLimited(p, opts.RequestsPerSecond, 1)
	}
	return p, nil
}

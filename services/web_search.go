package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/models"
)

// WebSearchClient queries a Bing Web Search v7 compatible endpoint.
type WebSearchClient struct {
	endpoint   string
	key        string
	market     string
	httpClient *http.Client
}

func NewWebSearchClient(cfg *config.Config) *WebSearchClient {
	return &WebSearchClient{
		endpoint: cfg.WebSearchEndpoint,
		key:      cfg.WebSearchKey,
		market:   cfg.WebSearchMarket,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether a subscription key is set.
func (c *WebSearchClient) Configured() bool {
	return c.key != ""
}

type webSearchResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			Snippet string `json:"snippet"`
			URL     string `json:"url"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search returns up to top web results for the query.
func (c *WebSearchClient) Search(ctx context.Context, query string, top int) ([]models.WebSource, error) {
	if c.key == "" {
		return nil, fmt.Errorf("WEB_SEARCH_KEY is not set")
	}
	if top <= 0 {
		top = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(top))
	params.Set("mkt", c.market)
	params.Set("textDecorations", "false")
	params.Set("textFormat", "Raw")

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	// Common misconfiguration gets an actionable message.
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf(
			"web search 401 unauthorized: check that WEB_SEARCH_KEY is a valid Web Search v7 key and WEB_SEARCH_ENDPOINT matches the resource")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search failed with status %d", resp.StatusCode)
	}

	var payload webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	sources := make([]models.WebSource, 0, top)
	for _, v := range payload.WebPages.Value {
		if len(sources) >= top {
			break
		}
		sources = append(sources, models.WebSource{
			Title:   v.Name,
			Snippet: v.Snippet,
			URL:     v.URL,
		})
	}
	return sources, nil
}

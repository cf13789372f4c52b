// API service for making raw HTTP requests against the Spotify Web API
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultAPIBaseURL string = "https://api.spotify.com/v1"

// DumpEndpoints are the well-known read endpoints [APIService.Dump] walks.
var DumpEndpoints = []string{"/me", "/me/playlists", "/me/player/devices"}

// APIService exposes raw Web API access for debugging and scripting. The
// HTTP client is expected to inject access tokens.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a raw API client.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
//
// The path is relative to the versioned API root, with or without a leading
// slash ("me/player" and "/me/player" are equivalent).
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	fullURL := a.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Dump fetches every endpoint in [DumpEndpoints] and collects the responses
// by path. The first transport failure aborts the walk since it affects the
// remaining endpoints equally.
func (a *APIService) Dump(ctx context.Context) (map[string]*APIResponse, error) {
	responses := make(map[string]*APIResponse, len(DumpEndpoints))

	for _, endpoint := range DumpEndpoints {
		resp, err := a.Get(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", endpoint, err)
		}

		responses[endpoint] = resp
	}

	return responses, nil
}

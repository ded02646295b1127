package sermons

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
)

// maxErrorBody bounds how much of an upstream error body is kept
const maxErrorBody = 4 << 10

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID      json.RawMessage `json:"id"`
	Snippet struct {
		ChannelID    string `json:"channelId"`
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
	} `json:"snippet"`
}

// videoID returns id.videoId, or id itself when the API returns a bare string
func (i searchItem) videoID() string {
	var asString string
	if err := json.Unmarshal(i.ID, &asString); err == nil {
		return asString
	}
	var asObject struct {
		VideoID string `json:"videoId"`
	}
	if err := json.Unmarshal(i.ID, &asObject); err == nil {
		return asObject.VideoID
	}
	return ""
}

// YouTubeClient calls the search endpoint of the YouTube Data API v3
type YouTubeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewYouTubeClient creates a client for baseURL (no trailing slash)
func NewYouTubeClient(baseURL, apiKey string, timeout time.Duration) *YouTubeClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &YouTubeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FindChannelID returns the id of the first channel matching handle, or ""
func (c *YouTubeClient) FindChannelID(ctx context.Context, handle string) (string, error) {
	q := url.Values{
		"q":          {handle},
		"type":       {"channel"},
		"part":       {"snippet"},
		"maxResults": {"1"},
	}
	var resp searchResponse
	if err := c.search(ctx, q, "Channel lookup failed", &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].Snippet.ChannelID, nil
}

// ChannelVideos lists the newest videos of a channel
func (c *YouTubeClient) ChannelVideos(ctx context.Context, channelID string, count int) ([]searchItem, error) {
	q := url.Values{
		"channelId":  {channelID},
		"part":       {"snippet,id"},
		"order":      {"date"},
		"maxResults": {strconv.Itoa(count)},
		"type":       {"video"},
	}
	var resp searchResponse
	if err := c.search(ctx, q, "Channel videos fetch failed", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SearchVideos runs a free-text video search, newest first
func (c *YouTubeClient) SearchVideos(ctx context.Context, query string, count int) ([]searchItem, error) {
	q := url.Values{
		"q":          {query},
		"type":       {"video"},
		"order":      {"date"},
		"part":       {"snippet"},
		"maxResults": {strconv.Itoa(count)},
	}
	var resp searchResponse
	if err := c.search(ctx, q, "Direct video search failed", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// search calls /search. Failures carry failMsg, the upstream status and
// the upstream body.
func (c *YouTubeClient) search(ctx context.Context, q url.Values, failMsg string, out interface{}) error {
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return services.WrapInternal("failed to build YouTube request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.WrapExternal(failMsg, http.StatusBadGateway, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return services.WrapExternal(failMsg, resp.StatusCode, string(body),
			fmt.Errorf("youtube search returned %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.WrapExternal(failMsg, http.StatusBadGateway, "", fmt.Errorf("decode search response: %w", err))
	}
	return nil
}

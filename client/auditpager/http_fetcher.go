package auditpager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
)

// TokenSource supplies the signed-in admin's access token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// APIError is a non-2xx answer from the audit endpoint
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("audit request failed (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("audit request failed (%d)", e.Status)
}

// HTTPFetcher reads pages from GET /api/admin/audit
type HTTPFetcher struct {
	endpoint   string
	tokens     TokenSource
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher for the server at baseURL
func NewHTTPFetcher(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/admin/audit",
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchPage implements Fetcher
func (f *HTTPFetcher) FetchPage(ctx context.Context, after *string, limit int) (*models.AuditPage, error) {
	token, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if after != nil {
		q.Set("after", *after)
	}
	target := f.endpoint
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body utils.ErrorResponse
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(data, &body) == nil {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
		}
		return nil, apiErr
	}

	var page models.AuditPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode audit page: %w", err)
	}
	if page.Data == nil {
		page.Data = []models.AuditEntry{}
	}
	return &page, nil
}

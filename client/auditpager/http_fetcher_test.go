package auditpager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_FetchPage(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/audit", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"6f1f0f3e-3d2b-4b8e-9a55-0f7d2c1e9b10","new_role":"admin","created_at":"2026-05-01T09:30:00Z"}],"next_cursor":"2026-05-01T09:30:00Z","has_more":true}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", StaticToken("tok"), time.Second)
	after := "2026-05-02T00:00:00Z"

	pg, err := f.FetchPage(context.Background(), &after, 10)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "after=2026-05-02T00%3A00%3A00Z&limit=10", gotQuery)
	require.Len(t, pg.Data, 1)
	assert.Equal(t, "admin", pg.Data[0].NewRole)
	require.NotNil(t, pg.NextCursor)
	assert.Equal(t, "2026-05-01T09:30:00Z", *pg.NextCursor)
	assert.True(t, pg.HasMore)
}

func TestHTTPFetcher_FirstPageOmitsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":null,"next_cursor":null,"has_more":false}`))
	}))
	defer srv.Close()

	pg, err := NewHTTPFetcher(srv.URL, StaticToken("tok"), 0).FetchPage(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
	assert.NotNil(t, pg.Data)
	assert.Empty(t, pg.Data)
	assert.Nil(t, pg.NextCursor)
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden","message":"Forbidden: admin role required"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, StaticToken("tok"), time.Second).FetchPage(context.Background(), nil, 25)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "forbidden", apiErr.Code)
	assert.Equal(t, "Forbidden: admin role required", apiErr.Message)
}

func TestPager_WithHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"data":[],"next_cursor":"2026-05-01T00:00:00Z","has_more":true}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","message":"Internal server error"}`))
	}))
	defer srv.Close()

	p := New(NewHTTPFetcher(srv.URL, StaticToken("tok"), time.Second), 25, nil)
	require.NoError(t, p.Load(context.Background()))
	assert.True(t, p.State().CanNext())

	err := p.Next(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.False(t, p.State().HasMore)
	assert.Equal(t, 0, p.State().Depth)
}

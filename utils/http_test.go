package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	t.Run("plain ok", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteOK(w, OKResponse{OK: true}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	})

	t.Run("ok with warning", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteOK(w, OKResponse{OK: true, Warning: "audit log write failed"}))

		assert.JSONEq(t, `{"ok":true,"warning":"audit log write failed"}`, w.Body.String())
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Title string `json:"title"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"hello"}`))
		var b body
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &b))
		assert.Equal(t, "hello", b.Title)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var b body
		assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &b), io.EOF)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
		var b body
		err := DecodeJSON(httptest.NewRecorder(), r, &b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON body")
	})
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteBadRequest(w, "Missing parameters", map[string]interface{}{"newRole": "newRole is required"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "Missing parameters", response.Message)
	assert.Equal(t, "newRole is required", response.Details["newRole"])
}

func TestWriteUnauthorizedAndForbidden(t *testing.T) {
	tests := []struct {
		name        string
		write       func(http.ResponseWriter, string) error
		message     string
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{"unauthorized custom", WriteUnauthorized, "Invalid token", http.StatusUnauthorized, "unauthorized", "Invalid token"},
		{"unauthorized default", WriteUnauthorized, "", http.StatusUnauthorized, "unauthorized", "Authentication required"},
		{"forbidden custom", WriteForbidden, "Forbidden: admin role required", http.StatusForbidden, "forbidden", "Forbidden: admin role required"},
		{"forbidden default", WriteForbidden, "", http.StatusForbidden, "forbidden", "Access forbidden"},
		{"not found default", WriteNotFound, "", http.StatusNotFound, "not_found", "Resource not found"},
		{"internal default", WriteInternalServerError, "", http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w, tt.message))

			assert.Equal(t, tt.wantStatus, w.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantMessage, response.Message)
		})
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteMethodNotAllowed(w))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"method_not_allowed","message":"Method Not Allowed"}`, w.Body.String())
}

func TestWriteTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteTooManyRequests(w, "", 60*time.Second))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t,
		`{"error":"rate_limit_exceeded","message":"Too Many Requests","details":{"retry_after_seconds":60}}`,
		w.Body.String())
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{60 * time.Second, 60},
		{1500 * time.Millisecond, 2},
		{time.Millisecond, 1},
		{0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, RetryAfterSeconds(tt.in))
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status    int
		wantError string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusForbidden, "forbidden"},
		{http.StatusNotFound, "not_found"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
		{http.StatusTooManyRequests, "rate_limit_exceeded"},
		{http.StatusBadGateway, "upstream_error"},
		{http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.status, "message", nil))

			assert.Equal(t, tt.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
		})
	}
}

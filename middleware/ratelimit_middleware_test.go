package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/ratelimit"
	"go.uber.org/zap"
)

// MockLimiter is a mock implementation of ratelimit.Limiter
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Admit(ctx context.Context, key string) (ratelimit.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

func TestCallerKey(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"first forwarded entry", "203.0.113.7, 10.0.0.1", "10.0.0.2:5555", "203.0.113.7"},
		{"single forwarded entry", "198.51.100.4", "10.0.0.2:5555", "198.51.100.4"},
		{"blank forwarded entry falls back", " , 10.0.0.1", "192.0.2.1:443", "192.0.2.1"},
		{"remote address without port", "", "192.0.2.9", "192.0.2.9"},
		{"ipv6 remote address", "", "[2001:db8::1]:8080", "2001:db8::1"},
		{"nothing known", "", "", "global"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/change-role", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, CallerKey(req))
		})
	}
}

func TestRateLimit(t *testing.T) {
	logger := zap.NewNop()

	t.Run("allowed request reaches handler", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Admit", mock.Anything, "203.0.113.7").
			Return(ratelimit.Decision{Allowed: true, Remaining: 19}, nil)

		handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "19", w.Header().Get("X-RateLimit-Remaining"))
		limiter.AssertExpectations(t)
	})

	t.Run("rejected request gets 429 with Retry-After", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Admit", mock.Anything, mock.Anything).
			Return(ratelimit.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil)

		handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
		assert.Equal(t, "rate_limit_exceeded", decodeError(t, w).Error)
	})

	t.Run("limiter failure returns 500", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Admit", mock.Anything, mock.Anything).
			Return(ratelimit.Decision{}, errors.New("redis: connection refused"))

		handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("real limiter blocks after capacity", func(t *testing.T) {
		limiter, err := ratelimit.NewMemoryLimiter(ratelimit.Config{Capacity: 2, RefillInterval: time.Minute})
		require.NoError(t, err)

		handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})
}

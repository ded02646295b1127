package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/sermons"
	"go.uber.org/zap"
)

type MockSermonFeed struct {
	mock.Mock
}

func (m *MockSermonFeed) Feed(ctx context.Context, handle string, count int) ([]models.Sermon, error) {
	args := m.Called(ctx, handle, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Sermon), args.Error(1)
}

func TestHandleFetchYouTube(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		query      string
		wantHandle string
		wantCount  int
	}{
		{"defaults", "", "", 0},
		{"explicit handle and max", "?handle=@GraceChurch&max=3", "@GraceChurch", 3},
		{"max above ceiling is clamped", "?max=500", "", sermons.MaxResults},
		{"non-numeric max uses default", "?max=lots", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := new(MockSermonFeed)
			handler := NewSermonsHandler(feed, logger)

			feed.On("Feed", mock.Anything, tt.wantHandle, tt.wantCount).Return([]models.Sermon{
				{Title: "Grace Abounds", Speaker: "FCM Liverpool", YouTubeID: "abc123", Date: "10/03/2024"},
			}, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/fetchYouTube"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.HandleFetchYouTube(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"items":[{"title":"Grace Abounds","speaker":"FCM Liverpool","youtubeId":"abc123","date":"10/03/2024"}]}`, w.Body.String())
			feed.AssertExpectations(t)
		})
	}

	t.Run("empty feed is an empty list", func(t *testing.T) {
		feed := new(MockSermonFeed)
		handler := NewSermonsHandler(feed, logger)
		feed.On("Feed", mock.Anything, mock.Anything, mock.Anything).Return([]models.Sermon(nil), nil)

		w := httptest.NewRecorder()
		handler.HandleFetchYouTube(w, httptest.NewRequest(http.MethodGet, "/api/fetchYouTube", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[]}`, w.Body.String())
	})

	t.Run("missing api key returns 500", func(t *testing.T) {
		feed := new(MockSermonFeed)
		handler := NewSermonsHandler(feed, logger)
		feed.On("Feed", mock.Anything, mock.Anything, mock.Anything).Return(nil, sermons.ErrAPIKeyMissing)

		w := httptest.NewRecorder()
		handler.HandleFetchYouTube(w, httptest.NewRequest(http.MethodGet, "/api/fetchYouTube", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "YOUTUBE_API_KEY not configured", decodeErrorBody(t, w).Message)
	})

	t.Run("upstream failure keeps status", func(t *testing.T) {
		feed := new(MockSermonFeed)
		handler := NewSermonsHandler(feed, logger)
		feed.On("Feed", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.WrapExternal("Channel lookup failed", http.StatusForbidden, "quotaExceeded", nil))

		w := httptest.NewRecorder()
		handler.HandleFetchYouTube(w, httptest.NewRequest(http.MethodGet, "/api/fetchYouTube", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		body := decodeErrorBody(t, w)
		assert.Equal(t, "Channel lookup failed", body.Message)
		assert.Equal(t, "quotaExceeded", body.Details["detail"])
	})
}

package sermons

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"go.uber.org/zap"
)

type fakeYouTube struct {
	*httptest.Server
	channelID     string
	channelStatus int
	videosStatus  int
	calls         atomic.Int32
	delay         time.Duration
	queries       chan string
}

const videosBody = `{"items":[
	{"id":{"kind":"youtube#video","videoId":"abc123"},"snippet":{"title":"Grace Abounds","channelTitle":"FCM Liverpool","publishedAt":"2024-03-10T23:30:00Z"}},
	{"id":{"kind":"youtube#video","videoId":"def456"},"snippet":{"title":"","channelTitle":"","publishedAt":""}},
	{"id":{"kind":"youtube#channel","channelId":"UCxyz"},"snippet":{"title":"not a video"}},
	{"id":"ghi789","snippet":{"title":"Bare id"}}
]}`

func newFakeYouTube(t *testing.T) *fakeYouTube {
	f := &fakeYouTube{channelStatus: http.StatusOK, videosStatus: http.StatusOK, queries: make(chan string, 16)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		q := r.URL.Query()

		if q.Get("type") == "channel" {
			if f.channelStatus != http.StatusOK {
				w.WriteHeader(f.channelStatus)
				_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
				return
			}
			items := []interface{}{}
			if f.channelID != "" {
				items = append(items, map[string]interface{}{
					"id":      map[string]string{"channelId": f.channelID},
					"snippet": map[string]string{"channelId": f.channelID},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
			return
		}

		select {
		case f.queries <- q.Get("channelId") + "|" + q.Get("q") + "|" + q.Get("maxResults"):
		default:
		}
		if f.videosStatus != http.StatusOK {
			w.WriteHeader(f.videosStatus)
			_, _ = w.Write([]byte("upstream broke"))
			return
		}
		_, _ = w.Write([]byte(videosBody))
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestService(f *fakeYouTube, ttl time.Duration) *Service {
	return NewService(Config{
		APIKey:    "test-key",
		BaseURL:   f.URL,
		CacheTTL:  ttl,
		CacheSize: 8,
	}, zap.NewNop())
}

func TestService_Feed_ChannelVideos(t *testing.T) {
	f := newFakeYouTube(t)
	f.channelID = "UC123"

	sermons, err := newTestService(f, 0).Feed(context.Background(), "", 0)
	require.NoError(t, err)

	assert.Equal(t, "UC123||6", <-f.queries)
	require.Len(t, sermons, 3)

	assert.Equal(t, "Grace Abounds", sermons[0].Title)
	assert.Equal(t, "FCM Liverpool", sermons[0].Speaker)
	assert.Equal(t, "abc123", sermons[0].YouTubeID)
	assert.Equal(t, "10/03/2024", sermons[0].Date)

	assert.Equal(t, DefaultTitle, sermons[1].Title)
	assert.Equal(t, DefaultSpeaker, sermons[1].Speaker)
	assert.Equal(t, "", sermons[1].Date)

	assert.Equal(t, "ghi789", sermons[2].YouTubeID)
}

func TestService_Feed_FallsBackToVideoSearch(t *testing.T) {
	f := newFakeYouTube(t)

	_, err := newTestService(f, 0).Feed(context.Background(), "@GraceChapel", 3)
	require.NoError(t, err)

	assert.Equal(t, "|@GraceChapel sermon|3", <-f.queries)
}

func TestService_Feed_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name          string
		channelID     string
		channelStatus int
		videosStatus  int
		wantStatus    int
		wantMessage   string
	}{
		{name: "channel lookup", channelStatus: http.StatusForbidden, wantStatus: http.StatusForbidden, wantMessage: "Channel lookup failed"},
		{name: "channel videos", channelID: "UC1", videosStatus: http.StatusInternalServerError, wantStatus: http.StatusInternalServerError, wantMessage: "Channel videos fetch failed"},
		{name: "direct search", videosStatus: http.StatusServiceUnavailable, wantStatus: http.StatusServiceUnavailable, wantMessage: "Direct video search failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeYouTube(t)
			f.channelID = tt.channelID
			if tt.channelStatus != 0 {
				f.channelStatus = tt.channelStatus
			}
			if tt.videosStatus != 0 {
				f.videosStatus = tt.videosStatus
			}

			_, err := newTestService(f, time.Minute).Feed(context.Background(), "", 0)
			require.Error(t, err)
			assert.True(t, services.IsExternalError(err))
			assert.Equal(t, tt.wantMessage, services.GetErrorMessage(err))
			details := services.GetErrorDetails(err)
			assert.Equal(t, tt.wantStatus, details["status"])
			assert.NotEmpty(t, details["detail"])
		})
	}
}

func TestService_Feed_CachesResults(t *testing.T) {
	f := newFakeYouTube(t)
	f.channelID = "UC123"
	svc := newTestService(f, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := svc.Feed(context.Background(), "@FCMLiverpool", 6)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.calls.Load(), "one channel lookup and one video list")

	_, err := svc.Feed(context.Background(), "@FCMLiverpool", 4)
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.calls.Load(), "a different max is a different feed")
}

func TestService_Feed_CollapsesConcurrentMisses(t *testing.T) {
	f := newFakeYouTube(t)
	f.channelID = "UC123"
	f.delay = 50 * time.Millisecond
	svc := newTestService(f, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Feed(context.Background(), "", 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(4))
}

func TestService_Feed_NotConfigured(t *testing.T) {
	_, err := NewService(Config{}, zap.NewNop()).Feed(context.Background(), "", 0)
	assert.True(t, services.IsNotConfiguredError(err))
	assert.Equal(t, "YOUTUBE_API_KEY not configured", services.GetErrorMessage(err))
}

func TestParseMax(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 6},
		{"x", 6},
		{"0", 6},
		{"3", 3},
		{"-2", 1},
		{"500", MaxResults},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMax(tt.raw, 6))
		})
	}
}

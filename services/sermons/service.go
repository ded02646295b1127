// Package sermons builds the sermons feed from a church's YouTube channel.
package sermons

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Feed defaults
const (
	DefaultHandle  = "@FCMLiverpool"
	DefaultMax     = 6
	MaxResults     = 50
	DefaultTitle   = "Untitled"
	DefaultSpeaker = "FCM Liverpool"
	// DateLayout renders publish dates as dd/mm/yyyy
	DateLayout = "02/01/2006"
)

// ErrAPIKeyMissing is returned when no YouTube API key is configured
var ErrAPIKeyMissing = services.NewDomainError(services.ErrorTypeNotConfigured, "YOUTUBE_API_KEY not configured", nil)

// Config holds configuration for the Service
type Config struct {
	APIKey        string
	BaseURL       string
	DefaultHandle string
	DefaultMax    int
	CacheTTL      time.Duration
	CacheSize     int
	Timeout       time.Duration
}

// Service serves cached sermon feeds
type Service struct {
	client        *YouTubeClient
	cache         *FeedCache
	group         singleflight.Group
	defaultHandle string
	defaultMax    int
	logger        *zap.Logger
}

// NewService creates a new sermons service
func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultHandle == "" {
		cfg.DefaultHandle = DefaultHandle
	}
	if cfg.DefaultMax <= 0 {
		cfg.DefaultMax = DefaultMax
	}
	s := &Service{
		defaultHandle: cfg.DefaultHandle,
		defaultMax:    cfg.DefaultMax,
		logger:        logger,
	}
	if cfg.APIKey != "" {
		s.client = NewYouTubeClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	}
	if cfg.CacheTTL > 0 {
		s.cache = NewFeedCache(cfg.CacheSize, cfg.CacheTTL)
	}
	return s
}

// ParseMax reads the max query parameter. Missing or invalid values use
// fallback; everything else is clamped to [1, MaxResults].
func ParseMax(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return fallback
	}
	return max(1, min(n, MaxResults))
}

// Feed returns up to count sermons for handle. Empty handle and
// non-positive count fall back to the configured defaults.
func (s *Service) Feed(ctx context.Context, handle string, count int) ([]models.Sermon, error) {
	if s.client == nil {
		return nil, ErrAPIKeyMissing
	}
	if handle = strings.TrimSpace(handle); handle == "" {
		handle = s.defaultHandle
	}
	if count <= 0 {
		count = s.defaultMax
	}

	key := handle + "|" + strconv.Itoa(count)
	if s.cache != nil {
		if sermons, ok := s.cache.Get(key); ok {
			return sermons, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		sermons, err := s.fetch(ctx, handle, count)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, sermons)
		}
		return sermons, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("sermons fetch shared", zap.String("handle", handle))
	}
	return v.([]models.Sermon), nil
}

func (s *Service) fetch(ctx context.Context, handle string, count int) ([]models.Sermon, error) {
	channelID, err := s.client.FindChannelID(ctx, handle)
	if err != nil {
		return nil, err
	}

	var items []searchItem
	if channelID != "" {
		items, err = s.client.ChannelVideos(ctx, channelID, count)
	} else {
		s.logger.Debug("no channel for handle, searching videos", zap.String("handle", handle))
		items, err = s.client.SearchVideos(ctx, handle+" sermon", count)
	}
	if err != nil {
		return nil, err
	}

	return toSermons(items), nil
}

// toSermons maps search results; items without a video id are dropped
func toSermons(items []searchItem) []models.Sermon {
	sermons := make([]models.Sermon, 0, len(items))
	for _, item := range items {
		id := item.videoID()
		if id == "" {
			continue
		}
		sermon := models.Sermon{
			Title:     item.Snippet.Title,
			Speaker:   item.Snippet.ChannelTitle,
			YouTubeID: id,
		}
		if sermon.Title == "" {
			sermon.Title = DefaultTitle
		}
		if sermon.Speaker == "" {
			sermon.Speaker = DefaultSpeaker
		}
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			sermon.Date = t.UTC().Format(DateLayout)
		}
		sermons = append(sermons, sermon)
	}
	return sermons
}

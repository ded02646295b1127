// Package push stores browser push subscriptions and broadcasts
// notifications to them with Web Push (VAPID).
package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SubscriptionKeys are the browser's encryption keys
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// BrowserSubscription is PushSubscription.toJSON() from the browser
type BrowserSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscribeRequest is the body of POST /api/subscribe
type SubscribeRequest struct {
	Subscription *BrowserSubscription `json:"subscription"`
	UserID       string               `json:"userId,omitempty"`
}

// SendRequest is the body of POST /api/sendPush
type SendRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// SendResult counts delivery attempts and removed stale subscriptions
type SendResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Config holds VAPID and delivery settings
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	ContactEmail    string
	TTL             int
	MaxConcurrency  int
	// HTTPClient overrides the client used to reach push services
	HTTPClient webpush.HTTPClient
}

// Service implements subscribe and send
type Service struct {
	subs   repositories.PushSubscriptionRepository
	cfg    Config
	logger *zap.Logger
}

// NewService creates a new push service
func NewService(subs repositories.PushSubscriptionRepository, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &Service{subs: subs, cfg: cfg, logger: logger}
}

// Configured reports whether subscriptions can be stored
func (s *Service) Configured() bool {
	return s != nil && s.subs != nil
}

// CanSend reports whether VAPID keys are present
func (s *Service) CanSend() bool {
	return s.Configured() && s.cfg.VAPIDPublicKey != "" && s.cfg.VAPIDPrivateKey != ""
}

// Subscribe stores or refreshes a browser subscription
func (s *Service) Subscribe(ctx context.Context, req *SubscribeRequest) error {
	if !s.Configured() {
		return services.ErrNotConfigured
	}
	if req == nil || req.Subscription == nil || strings.TrimSpace(req.Subscription.Endpoint) == "" {
		return services.ErrMissingSubscription
	}
	userID, err := utils.ParseOptionalUUID(req.UserID)
	if err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, "Invalid userId", err)
	}

	sub := &models.PushSubscription{
		UserID:   userID,
		Endpoint: req.Subscription.Endpoint,
		P256dh:   optional(req.Subscription.Keys.P256dh),
		Auth:     optional(req.Subscription.Keys.Auth),
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return services.WrapInternal("failed to save subscription", err)
	}
	return nil
}

// Send delivers the message to every subscription, or only to the user's.
// Subscriptions the push service reports as gone are deleted.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if !s.CanSend() {
		return nil, services.ErrNotConfigured
	}
	if req == nil || strings.TrimSpace(req.Title) == "" {
		return nil, services.ErrMissingTitle
	}
	userID, err := utils.ParseOptionalUUID(req.UserID)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "Invalid userId", err)
	}

	subs, err := s.subs.List(ctx, userID)
	if err != nil {
		return nil, services.WrapInternal("failed to fetch subscriptions", err)
	}

	msg := models.PushMessage{Title: req.Title, Body: req.Body, URL: req.URL}
	if msg.URL == "" {
		msg.URL = "/"
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, services.WrapInternal("failed to encode notification", err)
	}

	stale := s.deliver(ctx, subs, payload)

	result := &SendResult{Sent: len(subs), Failed: len(stale)}
	if len(stale) > 0 {
		removed, err := s.subs.DeleteByEndpoints(ctx, stale)
		if err != nil {
			s.logger.Warn("failed to remove stale subscriptions", zap.Int("count", len(stale)), zap.Error(err))
		} else {
			s.logger.Info("removed stale subscriptions", zap.Int64("count", removed))
		}
	}
	return result, nil
}

// deliver fans out to the push services and returns the endpoints that
// answered 404 or 410
func (s *Service) deliver(ctx context.Context, subs []*models.PushSubscription, payload []byte) []string {
	gone := make([]bool, len(subs))
	var errCount atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			status, err := s.sendOne(gctx, sub, payload)
			switch {
			case status == http.StatusNotFound || status == http.StatusGone:
				gone[i] = true
			case err != nil:
				errCount.Add(1)
				s.logger.Debug("push delivery failed", zap.String("endpoint_host", endpointHost(sub.Endpoint)), zap.Error(err))
			}
			// One failing subscription must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	if n := errCount.Load(); n > 0 {
		s.logger.Warn("some push deliveries failed", zap.Int32("count", n))
	}

	var stale []string
	for i, isGone := range gone {
		if isGone {
			stale = append(stale, subs[i].Endpoint)
		}
	}
	return stale
}

var errPushRejected = errors.New("push service rejected the notification")

func (s *Service) sendOne(ctx context.Context, sub *models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: deref(sub.P256dh),
			Auth:   deref(sub.Auth),
		},
	}, &webpush.Options{
		HTTPClient:      s.cfg.HTTPClient,
		Subscriber:      strings.TrimPrefix(s.cfg.ContactEmail, "mailto:"),
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errPushRejected
	}
	return resp.StatusCode, nil
}

func endpointHost(endpoint string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	host, _, _ := strings.Cut(rest, "/")
	return host
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

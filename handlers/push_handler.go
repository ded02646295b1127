package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vinodhsukumarvictor/Church-Bible-App/middleware"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/identity"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/push"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// PushSender stores subscriptions and sends notifications
type PushSender interface {
	Subscribe(ctx context.Context, req *push.SubscribeRequest) error
	Send(ctx context.Context, req *push.SendRequest) (*push.SendResult, error)
}

// PushHandler handles the Web Push endpoints
type PushHandler struct {
	push   PushSender
	authz  Authorizer
	logger *zap.Logger
}

// NewPushHandler creates a new PushHandler
func NewPushHandler(sender PushSender, authz Authorizer, logger *zap.Logger) *PushHandler {
	return &PushHandler{
		push:   sender,
		authz:  authz,
		logger: logger,
	}
}

// HandleSubscribe handles POST /api/subscribe
func (h *PushHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req push.SubscribeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			HandleServiceError(w, r, services.ErrMissingSubscription, h.logger)
			return
		}
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.push.Subscribe(r.Context(), &req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, utils.OKResponse{OK: true})
}

// HandleSendPush handles POST /api/sendPush. Only privileged callers may
// broadcast.
func (h *PushHandler) HandleSendPush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req push.SendRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			HandleServiceError(w, r, services.ErrMissingTitle, h.logger)
			return
		}
		HandleValidationError(w, err, h.logger)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		HandleServiceError(w, r, services.ErrMissingTitle, h.logger)
		return
	}

	if !h.authz.Configured() {
		HandleServiceError(w, r, services.ErrNotConfigured, h.logger)
		return
	}
	sender, err := h.authz.Authorize(ctx, identity.BearerToken(r.Header.Get("Authorization")))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	result, err := h.push.Send(ctx, &req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("push notification sent",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("sender_id", sender.ID.String()),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))

	_ = utils.WriteOK(w, result)
}

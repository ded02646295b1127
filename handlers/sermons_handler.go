package handlers

import (
	"context"
	"net/http"

	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/sermons"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// SermonFeed returns the latest sermons of a channel
type SermonFeed interface {
	Feed(ctx context.Context, handle string, count int) ([]models.Sermon, error)
}

// SermonsResponse is the body of GET /api/fetchYouTube
type SermonsResponse struct {
	Items []models.Sermon `json:"items"`
}

// SermonsHandler serves the sermons feed
type SermonsHandler struct {
	feed   SermonFeed
	logger *zap.Logger
}

// NewSermonsHandler creates a new SermonsHandler
func NewSermonsHandler(feed SermonFeed, logger *zap.Logger) *SermonsHandler {
	return &SermonsHandler{feed: feed, logger: logger}
}

// HandleFetchYouTube handles GET /api/fetchYouTube?handle=&max=
func (h *SermonsHandler) HandleFetchYouTube(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	count := sermons.ParseMax(query.Get("max"), 0)

	items, err := h.feed.Feed(r.Context(), query.Get("handle"), count)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	if items == nil {
		items = []models.Sermon{}
	}

	if err := utils.WriteOK(w, SermonsResponse{Items: items}); err != nil {
		h.logger.Error("failed to write sermons response", zap.Error(err))
	}
}

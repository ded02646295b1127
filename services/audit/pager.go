// Package audit pages through the admin audit log, newest first.
package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"go.uber.org/zap"
)

// Page size bounds
const (
	DefaultLimit = 25
	MaxLimit     = 200
)

// PageRequest selects one page of the log
type PageRequest struct {
	Limit int
	// After restricts the page to rows created strictly before it
	After *time.Time
}

// ParsePageRequest reads the limit and after query parameters. A missing,
// non-numeric or zero limit means DefaultLimit; anything else is clamped to
// [1, MaxLimit]. An after value that is not an RFC 3339 timestamp is a
// validation error.
func ParsePageRequest(limitParam, afterParam string) (PageRequest, error) {
	req := PageRequest{Limit: ClampLimit(limitParam)}

	if after := strings.TrimSpace(afterParam); after != "" {
		t, err := models.ParseCursor(after)
		if err != nil {
			return PageRequest{}, services.ErrInvalidCursor
		}
		req.After = &t
	}
	return req, nil
}

// ClampLimit normalises the limit query parameter
func ClampLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return DefaultLimit
	}
	return max(1, min(n, MaxLimit))
}

// Pager reads audit pages and enriches them with profile names
type Pager struct {
	audits   repositories.AuditRepository
	profiles repositories.ProfileRepository
	logger   *zap.Logger
}

// NewPager creates a new audit pager
func NewPager(audits repositories.AuditRepository, profiles repositories.ProfileRepository, logger *zap.Logger) *Pager {
	return &Pager{
		audits:   audits,
		profiles: profiles,
		logger:   logger,
	}
}

// Configured reports whether the pager has a database behind it
func (p *Pager) Configured() bool {
	return p != nil && p.audits != nil && p.profiles != nil
}

// ListPage returns one page. It fetches one extra row to learn whether an
// older page exists.
func (p *Pager) ListPage(ctx context.Context, req PageRequest) (*models.AuditPage, error) {
	if !p.Configured() {
		return nil, services.ErrNotConfigured
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	rows, err := p.audits.ListBefore(ctx, req.After, req.Limit+1)
	if err != nil {
		return nil, services.WrapInternal("failed to list audit log", err)
	}

	page := &models.AuditPage{Data: make([]models.AuditEntry, 0, min(len(rows), req.Limit))}
	if len(rows) > req.Limit {
		page.HasMore = true
		rows = rows[:req.Limit]
	}

	for _, rc := range rows {
		page.Data = append(page.Data, models.NewAuditEntry(rc))
	}
	p.enrich(ctx, page.Data)

	if n := len(rows); n > 0 {
		cursor := models.FormatCursor(rows[n-1].CreatedAt)
		page.NextCursor = &cursor
	}

	return page, nil
}

// enrich fills the display names and emails. Lookup failures are logged and
// leave the fields null.
func (p *Pager) enrich(ctx context.Context, entries []models.AuditEntry) {
	ids := collectProfileIDs(entries)
	if len(ids) == 0 {
		return
	}

	profiles, err := p.profiles.GetByIDs(ctx, ids)
	if err != nil {
		p.logger.Warn("failed to enrich audit entries", zap.Int("profiles", len(ids)), zap.Error(err))
		return
	}

	byID := make(map[uuid.UUID]*models.Profile, len(profiles))
	for _, prof := range profiles {
		byID[prof.ID] = prof
	}

	for i := range entries {
		e := &entries[i]
		if e.ChangedBy != nil {
			if prof, ok := byID[*e.ChangedBy]; ok {
				e.ChangedByName = nonEmpty(prof.FullName)
				e.ChangedByEmail = nonEmpty(prof.Email)
			}
		}
		if e.TargetUser != nil {
			if prof, ok := byID[*e.TargetUser]; ok {
				e.TargetUserName = nonEmpty(prof.FullName)
				e.TargetUserEmail = nonEmpty(prof.Email)
			}
		}
	}
}

func collectProfileIDs(entries []models.AuditEntry) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id *uuid.UUID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	for i := range entries {
		add(entries[i].ChangedBy)
		add(entries[i].TargetUser)
	}
	return ids
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

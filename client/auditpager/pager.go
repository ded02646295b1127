// Package auditpager drives the admin console's audit log navigation.
//
// The server only pages forward, so the pager remembers the cursor of every
// page it has left behind and replays them to go back.
package auditpager

import (
	"context"
	"errors"
	"sync"

	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"go.uber.org/zap"
)

var (
	ErrBusy           = errors.New("a page is already loading")
	ErrNoMorePages    = errors.New("no more pages")
	ErrNoPreviousPage = errors.New("no previous page")
	// ErrStaleResponse is returned to a caller whose fetch was superseded
	// by a newer one. The pager state reflects the newer fetch.
	ErrStaleResponse = errors.New("response superseded by a newer request")
)

// Fetcher retrieves one page of the audit log. after is nil for the first page.
type Fetcher interface {
	FetchPage(ctx context.Context, after *string, limit int) (*models.AuditPage, error)
}

// State is a snapshot of what the console displays
type State struct {
	Entries       []models.AuditEntry
	CurrentCursor *string
	NextCursor    *string
	Depth         int
	HasMore       bool
	Loading       bool
}

// CanNext reports whether the next-page control is enabled
func (s State) CanNext() bool { return s.HasMore && !s.Loading }

// CanPrev reports whether the previous-page control is enabled
func (s State) CanPrev() bool { return s.Depth > 0 && !s.Loading }

// Pager is safe for concurrent use
type Pager struct {
	fetcher Fetcher
	limit   int
	logger  *zap.Logger

	mu            sync.Mutex
	currentCursor *string
	cursorStack   []*string
	hasMore       bool
	loading       bool
	entries       []models.AuditEntry
	nextCursor    *string
	generation    uint64
}

// New creates a pager requesting limit rows per page. A non-positive limit
// leaves the page size to the server.
func New(fetcher Fetcher, limit int, logger *zap.Logger) *Pager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{fetcher: fetcher, limit: limit, logger: logger}
}

// State returns a copy of the current navigation state
func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]models.AuditEntry, len(p.entries))
	copy(entries, p.entries)
	return State{
		Entries:       entries,
		CurrentCursor: p.currentCursor,
		NextCursor:    p.nextCursor,
		Depth:         len(p.cursorStack),
		HasMore:       p.hasMore,
		Loading:       p.loading,
	}
}

// Load fetches the first page and forgets any navigation history
func (p *Pager) Load(ctx context.Context) error {
	p.mu.Lock()
	p.cursorStack = nil
	p.currentCursor = nil
	gen := p.begin()
	p.mu.Unlock()

	return p.fetch(ctx, gen, nil, nil)
}

// Refresh re-fetches the displayed page. It supersedes a fetch in flight.
func (p *Pager) Refresh(ctx context.Context) error {
	p.mu.Lock()
	after := p.currentCursor
	gen := p.begin()
	p.mu.Unlock()

	return p.fetch(ctx, gen, after, nil)
}

// Next advances to the page after the displayed one
func (p *Pager) Next(ctx context.Context) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return ErrBusy
	}
	if !p.hasMore || p.nextCursor == nil {
		p.mu.Unlock()
		return ErrNoMorePages
	}
	prev := p.currentCursor
	after := p.nextCursor
	gen := p.begin()
	p.mu.Unlock()

	return p.fetch(ctx, gen, after, func() {
		p.cursorStack = append(p.cursorStack, prev)
		p.currentCursor = after
	})
}

// Prev returns to the page displayed before the last Next
func (p *Pager) Prev(ctx context.Context) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return ErrBusy
	}
	n := len(p.cursorStack)
	if n == 0 {
		p.mu.Unlock()
		return ErrNoPreviousPage
	}
	target := p.cursorStack[n-1]
	p.cursorStack = p.cursorStack[:n-1]
	p.currentCursor = target
	gen := p.begin()
	p.mu.Unlock()

	return p.fetch(ctx, gen, target, nil)
}

// begin must be called with mu held
func (p *Pager) begin() uint64 {
	p.generation++
	p.loading = true
	return p.generation
}

func (p *Pager) fetch(ctx context.Context, gen uint64, after *string, onSuccess func()) error {
	page, err := p.fetcher.FetchPage(ctx, after, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.logger.Debug("discarding stale audit page", zap.Uint64("generation", gen), zap.Uint64("current", p.generation))
		return ErrStaleResponse
	}
	p.loading = false

	if err != nil {
		p.entries = nil
		p.hasMore = false
		p.nextCursor = nil
		p.logger.Warn("failed to load audit page", zap.Error(err))
		return err
	}

	p.entries = page.Data
	p.hasMore = page.HasMore
	p.nextCursor = page.NextCursor
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

// Package pager implements incremental catalog loading: one cursor per
// scroll container, advanced a page at a time as the viewer nears the end of
// the row. It is used both by the browse handlers and as a library by Go
// clients embedding the catalog.
package pager

import (
	"context"
	"sync"

	"suggesterr/models"
)

// Scroll-trigger thresholds. A fetch is warranted when the viewer has
// scrolled past 80% of the row, or sits within 20px of its end (which covers
// rows narrower than the viewport, where the ratio can misbehave).
const (
	scrollThresholdRatio = 0.8
	scrollEndSlackPx     = 20
)

// ScrollMetrics is the client-reported geometry of one scroll container.
type ScrollMetrics struct {
	ScrollLeft  float64 `json:"scroll_left"`
	ClientWidth float64 `json:"client_width"`
	ScrollWidth float64 `json:"scroll_width"`
}

// NearEnd reports whether the metrics warrant loading another page.
func (m ScrollMetrics) NearEnd() bool {
	if m.ScrollWidth <= 0 {
		return false
	}
	position := m.ScrollLeft + m.ClientWidth
	return position/m.ScrollWidth >= scrollThresholdRatio ||
		position >= m.ScrollWidth-scrollEndSlackPx
}

// FetchFunc fetches one page for a container. Implementations must not
// mutate pager state; the pager owns the cursor.
type FetchFunc func(ctx context.Context, key string, page int) (models.CatalogPage, error)

// AppendFunc receives newly fetched items for a container, in upstream
// order. Optional.
type AppendFunc func(key string, items []models.CatalogItem)

// SkipReason explains why LoadMore did nothing.
type SkipReason string

const (
	SkipInFlight  SkipReason = "fetch_in_flight"
	SkipEndOfData SkipReason = "end_of_data"
)

// Result describes the outcome of a LoadMore call.
type Result struct {
	Skipped    bool                 `json:"skipped"`
	SkipReason SkipReason           `json:"skip_reason,omitempty"`
	Items      []models.CatalogItem `json:"items,omitempty"`
	Page       int                  `json:"page"`
	EndOfData  bool                 `json:"end_of_data"`
}

type cursor struct {
	page      int
	endOfData bool
	inFlight  bool
	gen       uint64
}

// Pager tracks one cursor per container key and enforces single-flight
// incremental fetches.
type Pager struct {
	mu      sync.Mutex
	cursors map[string]*cursor

	fetch  FetchFunc
	append AppendFunc

	// Loading-indicator hooks. End always runs after Begin.
	begin func(key string)
	end   func(key string)
}

// Option configures a Pager.
type Option func(*Pager)

// WithAppend sets the append sink invoked with fetched items.
func WithAppend(fn AppendFunc) Option {
	return func(p *Pager) { p.append = fn }
}

// WithLoadingHooks sets callbacks invoked around each fetch, typically to
// show and hide a loading indicator.
func WithLoadingHooks(begin, end func(key string)) Option {
	return func(p *Pager) {
		p.begin = begin
		p.end = end
	}
}

// New creates a Pager around the given fetch function.
func New(fetch FetchFunc, opts ...Option) *Pager {
	p := &Pager{
		cursors: make(map[string]*cursor),
		fetch:   fetch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pager) cursorFor(key string) *cursor {
	c, ok := p.cursors[key]
	if !ok {
		c = &cursor{}
		p.cursors[key] = c
	}
	return c
}

// Cursor returns the current page and flags for a container. A container
// never touched reports page 0.
func (p *Pager) Cursor(key string) (page int, endOfData, inFlight bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.cursorFor(key)
	return c.page, c.endOfData, c.inFlight
}

// MaybeLoadMore runs LoadMore only when the scroll metrics warrant it.
func (p *Pager) MaybeLoadMore(ctx context.Context, key string, metrics ScrollMetrics) (Result, error) {
	if !metrics.NearEnd() {
		return Result{Skipped: true}, nil
	}
	return p.LoadMore(ctx, key)
}

// LoadMore fetches the next page for a container. It no-ops while a fetch is
// already in flight and after the container has ended. The cursor advances
// only on a successful non-empty fetch; an error leaves it unchanged and
// never wedged.
func (p *Pager) LoadMore(ctx context.Context, key string) (Result, error) {
	p.mu.Lock()
	c := p.cursorFor(key)
	if c.inFlight {
		p.mu.Unlock()
		return Result{Skipped: true, SkipReason: SkipInFlight, Page: c.page}, nil
	}
	if c.endOfData {
		p.mu.Unlock()
		return Result{Skipped: true, SkipReason: SkipEndOfData, Page: c.page, EndOfData: true}, nil
	}
	c.inFlight = true
	nextPage := c.page + 1
	gen := c.gen
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		c.inFlight = false
		p.mu.Unlock()
	}()

	if p.begin != nil {
		p.begin(key)
	}
	if p.end != nil {
		defer p.end(key)
	}

	page, err := p.fetch(ctx, key, nextPage)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A Reset during the fetch invalidates this result.
	if c.gen != gen {
		return Result{Skipped: true, SkipReason: SkipInFlight, Page: c.page}, nil
	}

	if len(page.Items) == 0 {
		c.endOfData = true
		return Result{Page: c.page, EndOfData: true}, nil
	}

	c.page = nextPage
	if page.Page >= page.TotalPages {
		c.endOfData = true
	}

	if p.append != nil {
		p.append(key, page.Items)
	}

	return Result{Items: page.Items, Page: c.page, EndOfData: c.endOfData}, nil
}

// Reset returns a container to its initial state so the next LoadMore
// fetches page 1 again. This is the only way a cursor moves backward. A
// fetch in flight at reset time is discarded when it lands.
func (p *Pager) Reset(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.cursorFor(key)
	c.page = 0
	c.endOfData = false
	c.gen++
}

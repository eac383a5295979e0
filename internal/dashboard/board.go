// Package dashboard holds the fetched collections behind the production
// board and derives the per-day view from them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"prodboard/internal/core"
	applog "prodboard/internal/log"
	"prodboard/internal/production"
	"prodboard/internal/sheets"
)

// Sources are the three read ports the board fetches from.
type Sources struct {
	History  sheets.HistoryReader
	Requests sheets.RequestReader
	Meta     sheets.MetaReader
}

// Data is an immutable snapshot of everything the board has fetched.
type Data struct {
	Production []core.ProductionRow
	Requests   []core.ProductionRow
	Options    core.DropdownOptions
	Index      production.ProcessGroupIndex
	LoadedAt   time.Time
}

// Board owns the three collections. A failed fetch leaves the previous
// copy of that collection in place.
type Board struct {
	src    Sources
	loc    *time.Location
	logger *applog.Logger

	mu     sync.RWMutex
	data   Data
	loaded bool
}

func NewBoard(src Sources, loc *time.Location, logger *applog.Logger) *Board {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Board{
		src:    src,
		loc:    loc,
		logger: logger.WithComponent(applog.ComponentDashboard),
		data: Data{
			Options: production.GroupMetadata(nil),
			Index:   production.ProcessGroupIndex{},
		},
	}
}

// Location is the zone dates are normalized in.
func (b *Board) Location() *time.Location { return b.loc }

// Load fetches the three collections concurrently. Each failure is logged
// and reported in the joined error; successful fetches are applied either
// way. There is no retry.
func (b *Board) Load(ctx context.Context) error {
	var (
		hist, reqs []core.ProductionRow
		meta       []core.MetadataOption
		histErr    error
		reqsErr    error
		metaErr    error
	)

	// Errors are kept per collection so one failure does not cancel the
	// other fetches.
	var g errgroup.Group
	g.Go(func() error {
		hist, histErr = b.src.History.ListProduction(ctx)
		return nil
	})
	g.Go(func() error {
		reqs, reqsErr = b.src.Requests.ListRequests(ctx)
		return nil
	})
	g.Go(func() error {
		meta, metaErr = b.src.Meta.ListMeta(ctx)
		return nil
	})
	_ = g.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	if histErr == nil {
		b.data.Production = hist
	} else {
		b.logFetchError(ctx, "production history", histErr)
	}
	if reqsErr == nil {
		b.data.Requests = reqs
	} else {
		b.logFetchError(ctx, "production requests", reqsErr)
	}
	if metaErr == nil {
		opts := production.GroupMetadata(meta)
		b.data.Options = opts
		b.data.Index = production.BuildProcessGroupIndex(opts[core.CategoryProcess])
	} else {
		b.logFetchError(ctx, "metadata", metaErr)
	}
	b.data.LoadedAt = time.Now()
	b.loaded = true

	b.logger.InfoContext(ctx, "Dashboard data loaded",
		"production_rows", len(b.data.Production),
		"request_rows", len(b.data.Requests),
		"processes", len(b.data.Options[core.CategoryProcess]))

	return errors.Join(
		wrapFetch("production history", histErr),
		wrapFetch("production requests", reqsErr),
		wrapFetch("metadata", metaErr),
	)
}

// EnsureLoaded runs Load once, on the first render.
func (b *Board) EnsureLoaded(ctx context.Context) error {
	b.mu.RLock()
	loaded := b.loaded
	b.mu.RUnlock()
	if loaded {
		return nil
	}
	return b.Load(ctx)
}

// Loaded reports whether at least one Load has completed.
func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

// Snapshot returns the current data. Slices are shared and must not be
// modified by callers.
func (b *Board) Snapshot() Data {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// View builds the board for sel from the cached data. It never fetches.
func (b *Board) View(sel Selection) View {
	v := Build(b.Snapshot(), sel.Date, b.loc)
	v.Modal = sel.Modal
	v.Loaded = b.Loaded()
	return v
}

// ScopeRows returns the cached rows of one (date, mode, group) scope.
func (b *Board) ScopeRows(date string, mode core.Mode, group core.Group) []core.ProductionRow {
	return ScopeRows(b.Snapshot(), date, mode, group, b.loc)
}

func (b *Board) logFetchError(ctx context.Context, what string, err error) {
	b.logger.ErrorContext(ctx, "Failed to fetch "+what,
		applog.FieldOperation, applog.OpLoad,
		applog.FieldError, err)
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", what, err)
}

// ScopeRows filters data to one day and mode, then keeps the rows whose
// item classifies into group.
func ScopeRows(d Data, date string, mode core.Mode, group core.Group, loc *time.Location) []core.ProductionRow {
	src := d.Production
	if mode == core.ModeRequest {
		src = d.Requests
	}
	day := production.FilterByDate(src, date, loc)
	out := make([]core.ProductionRow, 0, len(day))
	for _, r := range day {
		if production.Classify(r.Item.String(), d.Index) == group {
			out = append(out, r)
		}
	}
	return out
}

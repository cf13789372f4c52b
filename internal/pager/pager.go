// Package pager implements offset pagination over remote collections.
//
// Sources report a window of items plus the collection total. [FetchAll]
// advances the offset by the number of items actually received, never by the
// requested page size, so sources that return short pages are still walked
// correctly.
package pager

import (
	"context"
	"fmt"

	"github.com/desertthunder/spin/internal/shared"
)

// DefaultPageSize is used when a fetch starts with no explicit page size.
const DefaultPageSize = 50

// Cursor locates a window within a remote collection.
type Cursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// Page is one window of a remote collection.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Cursor Cursor `json:"cursor"`
}

// PageFunc fetches one window of a remote collection. Implementations return
// the items in the window and the collection total as reported by the source.
type PageFunc[T any] func(ctx context.Context, limit, offset int) (items []T, total int, err error)

// Option adjusts fetch behavior.
type Option func(*settings)

type settings struct {
	bestEffort bool
}

// WithBestEffort keeps the items fetched before a mid-walk failure instead of
// discarding them. The failure is still reported.
func WithBestEffort() Option {
	return func(s *settings) {
		s.bestEffort = true
	}
}

// FetchPage retrieves a single window of a collection.
func FetchPage[T any](ctx context.Context, fn PageFunc[T], limit, offset int) (*Page[T], error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if offset < 0 {
		offset = 0
	}

	items, total, err := fn(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: at offset %d: %v", shared.ErrPagination, offset, err)
	}

	return &Page[T]{
		Items:  items,
		Cursor: Cursor{Offset: offset, Limit: limit, Total: total},
	}, nil
}

// FetchAll walks a collection from the beginning and returns every item in
// source order.
//
// Fetching stops once the offset reaches the reported total or a window
// comes back short. A mid-walk failure discards everything fetched so far
// unless [WithBestEffort] is set.
func FetchAll[T any](ctx context.Context, fn PageFunc[T], pageSize int, opts ...Option) ([]T, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return fetchFailed(all, s, offset, err)
		}

		items, total, err := fn(ctx, pageSize, offset)
		if err != nil {
			return fetchFailed(all, s, offset, err)
		}

		all = append(all, items...)
		offset += len(items)

		if len(items) < pageSize {
			break
		}

		if total > 0 && offset >= total {
			break
		}
	}

	return all, nil
}

func fetchFailed[T any](partial []T, s settings, offset int, err error) ([]T, error) {
	wrapped := fmt.Errorf("%w: at offset %d: %v", shared.ErrPagination, offset, err)

	if s.bestEffort {
		return partial, wrapped
	}

	return nil, wrapped
}

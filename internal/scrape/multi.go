package scrape

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"leadhunt-engine/internal/scrape/types"

	"golang.org/x/sync/errgroup"
)

// Multi searches several sources concurrently and merges their records in
// source order. A failing source is logged and skipped; Search only fails
// when every source does.
type Multi struct {
	Sources []types.Source
}

func (m *Multi) Name() string { return "multi" }

func timeoutFor(name string) time.Duration {
	switch name {
	case "html":
		return 5 * time.Minute
	case "mail":
		return 2 * time.Minute
	}
	return time.Minute
}

func (m *Multi) Search(ctx context.Context, term string) (types.SearchResult, error) {
	results := make([]types.SearchResult, len(m.Sources))
	errs := make([]error, len(m.Sources))

	var g errgroup.Group
	for i, src := range m.Sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, timeoutFor(src.Name()))
			defer cancel()

			res, err := src.Search(sctx, term)
			if err != nil {
				log.Printf("[source:%s] term=%q error: %v", src.Name(), term, err)
				errs[i] = err
				return nil // best-effort: don't cancel siblings
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var out types.SearchResult
	out.Source = m.Name()
	var parts []finalizePart
	failed := 0
	for i, res := range results {
		if errs[i] != nil {
			failed++
			continue
		}
		log.Printf("[source:%s] term=%q records=%d finalize=%v", m.Sources[i].Name(), term, len(res.Records), res.Finalize != nil)
		out.Records = append(out.Records, res.Records...)
		parts = append(parts, finalizePart{n: len(res.Records), fn: res.Finalize})
	}
	if len(m.Sources) > 0 && failed == len(m.Sources) {
		return types.SearchResult{}, errors.Join(errs...)
	}
	for _, p := range parts {
		if p.fn != nil {
			out.Finalize = joinFinalize(parts)
			break
		}
	}
	return out, nil
}

// finalizePart is one source's slice of the merged records.
type finalizePart struct {
	n  int
	fn func(context.Context, int) error
}

// joinFinalize splits the merged processed count back over the sources in
// merge order and runs their finalizers concurrently.
func joinFinalize(parts []finalizePart) func(context.Context, int) error {
	return func(ctx context.Context, processed int) error {
		var mu sync.Mutex
		var errs []error
		var g errgroup.Group
		for _, p := range parts {
			take := min(processed, p.n)
			processed -= take
			if p.fn == nil {
				continue
			}
			g.Go(func() error {
				if err := p.fn(ctx, take); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
		return errors.Join(errs...)
	}
}

package types

import (
	"context"

	"leadhunt-engine/internal/domain"
)

// SearchResult is what one source returns for one search term.
type SearchResult struct {
	Source  string
	Records []domain.RawLead
	// Finalize, when set, runs once the session is done with Records.
	// processed counts the leading records it handled; an interrupted
	// session passes fewer than len(Records). Mail uses it to mark only
	// those messages seen.
	Finalize func(ctx context.Context, processed int) error
}

// Source hands out raw listings for a search term.
type Source interface {
	Name() string
	Search(ctx context.Context, term string) (SearchResult, error)
}

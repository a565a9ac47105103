package rank

import "leadhunt-engine/internal/domain"

// Scorer derives priority and a 1..10 quality score from which contact
// fields a lead carries. Implementations must be pure.
type Scorer interface {
	Score(lead domain.Lead) (priority domain.Priority, quality int)
}

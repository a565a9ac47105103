// engine/internal/rank/contact_scorer.go
package rank

import (
	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
)

const (
	MinQuality = 1
	MaxQuality = 10
)

type Weights struct {
	Base              int
	Phone             int
	Website           int
	Email             int
	Category          int
	GenericCategories []string
}

func DefaultWeights() Weights {
	return WeightsFromConfig(config.Default().Scoring)
}

func WeightsFromConfig(s config.Scoring) Weights {
	return Weights{
		Base:              s.Base,
		Phone:             s.PhoneWeight,
		Website:           s.WebsiteWeight,
		Email:             s.EmailWeight,
		Category:          s.CategoryWeight,
		GenericCategories: s.GenericCategories,
	}
}

// ContactScorer: priority by number of contact channels present,
// quality = base + per-field weights, clamped to [1,10].
type ContactScorer struct {
	W Weights
}

func NewContactScorer(w Weights) ContactScorer {
	return ContactScorer{W: w}
}

func (s ContactScorer) Score(l domain.Lead) (domain.Priority, int) {
	return priorityFor(l.Channels()), s.quality(l)
}

func priorityFor(channels int) domain.Priority {
	switch {
	case channels >= 3:
		return domain.PriorityUrgent
	case channels == 2:
		return domain.PriorityHigh
	case channels == 1:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func (s ContactScorer) quality(l domain.Lead) int {
	score := s.W.Base
	if l.Phone.Present() {
		score += s.W.Phone
	}
	if l.Website.Present() {
		score += s.W.Website
	}
	if l.Email.Present() {
		score += s.W.Email
	}
	if l.HasCategory(s.W.GenericCategories) {
		score += s.W.Category
	}
	return clamp(score, MinQuality, MaxQuality)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package dedup

// Gate remembers the names already accepted in one session. Matching is
// exact and case-sensitive, and nothing survives a restart.
type Gate struct {
	seen map[string]struct{}
}

func NewGate() *Gate {
	return &Gate{seen: make(map[string]struct{})}
}

// Accept records name and returns true the first time it is seen; later
// calls return false without changing state.
func (g *Gate) Accept(name string) bool {
	if g.seen == nil {
		g.seen = make(map[string]struct{})
	}
	if _, ok := g.seen[name]; ok {
		return false
	}
	g.seen[name] = struct{}{}
	return true
}

func (g *Gate) Len() int { return len(g.seen) }

func (g *Gate) Reset() { g.seen = make(map[string]struct{}) }

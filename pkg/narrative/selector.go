package narrative

import (
	"math/rand/v2"
	"sync"

	"github.com/jwebster45206/verse-engine/pkg/environment"
)

// Select picks the item to present from pool in env.
//
// An unseen matching item is always preferred and is marked shown. When
// every matching item has been seen, one of them is repeated without
// changing its flag. Nil means nothing matches. Within a tier the choice is
// uniform.
func Select(pool *Pool, env environment.State, rng *rand.Rand) *Item {
	if pool == nil {
		return nil
	}
	unseen, seen := pool.Candidates(env)

	if len(unseen) > 0 {
		chosen := unseen[rng.IntN(len(unseen))]
		chosen.shown = true
		return chosen
	}
	if len(seen) > 0 {
		return seen[rng.IntN(len(seen))]
	}
	return nil
}

// Selector carries the random source used by Select
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector. A nil rng is replaced with a randomly seeded one.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng}
}

// Select picks an item; see the package-level Select
func (s *Selector) Select(pool *Pool, env environment.State) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Select(pool, env, s.rng)
}

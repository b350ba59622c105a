package narrative

import "github.com/jwebster45206/verse-engine/pkg/environment"

// Pool owns the items of one site. Shown flags live on the items but only
// the pool resets them.
type Pool struct {
	items []*Item
	index map[string]*Item
}

// NewPool takes ownership of items and clears their shown flags, which marks
// the start of the pool's lifecycle
func NewPool(items []*Item) *Pool {
	p := &Pool{
		items: make([]*Item, 0, len(items)),
		index: make(map[string]*Item, len(items)),
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		p.items = append(p.items, it)
		if it.ID != "" {
			p.index[it.ID] = it
		}
	}
	p.Reset()
	return p
}

// Reset marks every item unseen
func (p *Pool) Reset() {
	for _, it := range p.items {
		it.shown = false
	}
}

// Items returns the items in declaration order
func (p *Pool) Items() []*Item {
	return p.items
}

// Len returns the number of items
func (p *Pool) Len() int {
	return len(p.items)
}

// Get looks up an item by ID
func (p *Pool) Get(id string) (*Item, bool) {
	it, ok := p.index[id]
	return it, ok
}

// First returns the first declared item, or nil for an empty pool
func (p *Pool) First() *Item {
	if len(p.items) == 0 {
		return nil
	}
	return p.items[0]
}

// Candidates splits the items matching env into unseen and seen tiers.
// Items that do not match are left out of both.
func (p *Pool) Candidates(env environment.State) (unseen, seen []*Item) {
	for _, it := range p.items {
		if !it.When.Matches(env) {
			continue
		}
		if it.shown {
			seen = append(seen, it)
		} else {
			unseen = append(unseen, it)
		}
	}
	return unseen, seen
}

// ShownCount returns how many items have been presented this run
func (p *Pool) ShownCount() int {
	n := 0
	for _, it := range p.items {
		if it.shown {
			n++
		}
	}
	return n
}

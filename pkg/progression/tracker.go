// Package progression counts completed plots and reveals one reward slot
// each time another fraction of the tracked plots is done.
package progression

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jwebster45206/verse-engine/pkg/effects"
)

// RewardSlot is a physical reward revealed at a milestone
type RewardSlot struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Milestone describes one fired milestone
type Milestone struct {
	Number    int    // 1-based, in firing order
	Completed int    // distinct completions when it fired
	SlotIndex int    // activated slot, -1 when none was left
	SlotID    string // empty when none was left
}

// Snapshot is the persistable part of a tracker
type Snapshot struct {
	Plots           []string `json:"plots"`
	Completed       []string `json:"completed"`
	MilestonesFired int      `json:"milestones_fired"`
	ActiveSlots     []int    `json:"active_slots"`
	UnitSize        int      `json:"unit_size"`
	Sealed          bool     `json:"sealed"`
}

// Tracker fires milestone events as plots complete. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	visuals effects.Visuals
	logger  *slog.Logger

	slots     []RewardSlot
	active    []bool
	plots     map[string]bool // plot -> completed
	order     []string
	completed int
	fired     int
	unit      int
	sealed    bool

	listeners []func(Milestone)
}

// NewTracker creates a tracker over slots, revealed in declaration order
func NewTracker(slots []RewardSlot, visuals effects.Visuals, logger *slog.Logger) *Tracker {
	return &Tracker{
		visuals: visuals,
		logger:  logger,
		slots:   append([]RewardSlot(nil), slots...),
		active:  make([]bool, len(slots)),
		plots:   make(map[string]bool),
	}
}

// OnMilestone registers a listener, called outside the tracker's lock
func (t *Tracker) OnMilestone(fn func(Milestone)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// RegisterPlot adds a plot to the tracked set. Registering a known plot, or
// any plot once the set is sealed, is a no-op returning false.
func (t *Tracker) RegisterPlot(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == "" || t.sealed {
		return false
	}
	if _, ok := t.plots[id]; ok {
		return false
	}
	t.plots[id] = false
	t.order = append(t.order, id)
	return true
}

// Seal fixes the tracked set and computes the milestone unit size. The first
// completion seals implicitly.
func (t *Tracker) Seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seal()
}

func (t *Tracker) seal() {
	if t.sealed {
		return
	}
	t.sealed = true
	if len(t.slots) > 0 {
		t.unit = len(t.plots) / len(t.slots)
	}
	t.logger.Debug("Progression sealed",
		"plots", len(t.plots),
		"slots", len(t.slots),
		"unit_size", t.unit)
}

// OnPlotCompleted records a completion. It returns false for unknown plots
// and repeated completions.
func (t *Tracker) OnPlotCompleted(id string) bool {
	t.mu.Lock()
	t.seal()
	done, ok := t.plots[id]
	if !ok || done {
		t.mu.Unlock()
		return false
	}
	t.plots[id] = true
	t.completed++

	var fired *Milestone
	if t.unit > 0 && t.completed == t.unit*(t.fired+1) {
		m := t.fireLocked()
		fired = &m
	}
	listeners := append([]func(Milestone){}, t.listeners...)
	completed, total := t.completed, len(t.plots)
	t.mu.Unlock()

	t.logger.Info("Plot completed", "plot_id", id, "completed", completed, "total", total)
	if fired != nil {
		for _, fn := range listeners {
			fn(*fired)
		}
	}
	return true
}

// fireLocked activates the next inactive slot. Milestones past the last
// slot still count but reveal nothing.
func (t *Tracker) fireLocked() Milestone {
	t.fired++
	m := Milestone{Number: t.fired, Completed: t.completed, SlotIndex: -1}
	for i, on := range t.active {
		if on {
			continue
		}
		t.active[i] = true
		m.SlotIndex = i
		m.SlotID = t.slots[i].ID
		t.visuals.RevealRewardSlot(i)
		t.visuals.SetVisualEffectActive(effects.RewardEffect(t.slots[i].ID), true)
		break
	}
	t.logger.Info("Milestone reached",
		"milestone", m.Number,
		"completed", m.Completed,
		"slot_index", m.SlotIndex,
		"slot_id", m.SlotID)
	return m
}

// Completed returns how many distinct plots have completed
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Tracked returns the number of registered plots
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.plots)
}

// MilestonesFired returns the number of milestones reached so far
func (t *Tracker) MilestonesFired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// IsCompleted reports whether a plot has completed
func (t *Tracker) IsCompleted(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plots[id]
}

// Slots returns the reward slots with their activation state
func (t *Tracker) Slots() ([]RewardSlot, []bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RewardSlot(nil), t.slots...), append([]bool(nil), t.active...)
}

// Snapshot copies the tracker state for persistence
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{
		Plots:           append([]string{}, t.order...),
		Completed:       []string{},
		MilestonesFired: t.fired,
		ActiveSlots:     []int{},
		UnitSize:        t.unit,
		Sealed:          t.sealed,
	}
	for _, id := range t.order {
		if t.plots[id] {
			snap.Completed = append(snap.Completed, id)
		}
	}
	sort.Strings(snap.Completed)
	for i, on := range t.active {
		if on {
			snap.ActiveSlots = append(snap.ActiveSlots, i)
		}
	}
	return snap
}

// Restore replays a snapshot onto a tracker with the same plots registered.
// Reward slots recorded as active are revealed again so the host catches up.
// A tracker that already has completions only accepts a snapshot that
// includes all of them.
func (t *Tracker) Restore(snap Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	saved := make(map[string]bool, len(snap.Completed))
	for _, id := range snap.Completed {
		if _, ok := t.plots[id]; !ok {
			return fmt.Errorf("unknown plot in snapshot: %s", id)
		}
		saved[id] = true
	}
	for id, done := range t.plots {
		if done && !saved[id] {
			return fmt.Errorf("snapshot is behind: plot %s already completed", id)
		}
	}
	for _, i := range snap.ActiveSlots {
		if i < 0 || i >= len(t.slots) {
			return fmt.Errorf("reward slot %d out of range", i)
		}
	}

	t.seal()
	for _, id := range snap.Completed {
		if !t.plots[id] {
			t.plots[id] = true
			t.completed++
		}
	}
	t.fired = max(t.fired, snap.MilestonesFired)
	for _, i := range snap.ActiveSlots {
		if t.active[i] {
			continue
		}
		t.active[i] = true
		t.visuals.RevealRewardSlot(i)
		t.visuals.SetVisualEffectActive(effects.RewardEffect(t.slots[i].ID), true)
	}

	t.logger.Info("Progression restored",
		"completed", t.completed,
		"milestones_fired", t.fired)
	return nil
}

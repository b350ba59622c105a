package trigger

import (
	"time"

	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
)

// Sequence presents a fixed list of verses in order, one per step, and a
// closing verse once every step is taken. Verses that arrive while another
// session is running wait for it to end.
type Sequence struct {
	deps         Deps
	verses       []*narrative.Item
	closing      *narrative.Item
	steps        int
	closingDelay time.Duration

	step     int
	queue    []*narrative.Item
	timer    *scheduler.Timer
	closed   bool
	onFinal  []func()
	onChange []func()
}

// SequenceSnapshot is the saved position of a sequence. Queued holds the
// ids of verses still waiting for the stage.
type SequenceSnapshot struct {
	Step          int      `json:"step"`
	ClosingHanded bool     `json:"closing_handed"`
	Queued        []string `json:"queued,omitempty"`
}

// SequenceConfig describes an ordered verse trigger
type SequenceConfig struct {
	Verses  []*narrative.Item
	Closing *narrative.Item
	// Steps is the number of advances expected, usually one per plot
	Steps int
	// ClosingDelay is added to the first verse's narration before the
	// closing verse
	ClosingDelay time.Duration
}

// NewSequence creates a sequence at its first step
func NewSequence(cfg SequenceConfig, deps Deps) *Sequence {
	return &Sequence{
		deps:         deps,
		verses:       cfg.Verses,
		closing:      cfg.Closing,
		steps:        cfg.Steps,
		closingDelay: cfg.ClosingDelay,
	}
}

// OnFinalStep registers a listener called when the last step is taken
func (q *Sequence) OnFinalStep(fn func()) {
	q.onFinal = append(q.onFinal, fn)
}

// OnChange registers a listener for progress made outside Advance: the
// closing verse being handed out or a queued verse taking the stage
func (q *Sequence) OnChange(fn func()) {
	q.onChange = append(q.onChange, fn)
}

func (q *Sequence) changed() {
	for _, fn := range q.onChange {
		fn()
	}
}

// Advance takes the next step, presenting its verse. It returns false once
// every step has been taken.
func (q *Sequence) Advance() bool {
	if q.step >= q.steps {
		return false
	}
	q.step++
	if q.step <= len(q.verses) {
		q.present(q.verses[q.step-1])
	}
	q.deps.Logger.Debug("Sequence advanced", "step", q.step, "steps", q.steps)

	if q.step == q.steps {
		for _, fn := range q.onFinal {
			fn()
		}
		q.scheduleClosing()
	}
	return true
}

func (q *Sequence) scheduleClosing() {
	if q.closing == nil {
		q.closed = true
		return
	}
	delay := q.closingDelay
	if len(q.verses) > 0 && q.verses[0].HasAudio() {
		delay += q.verses[0].AudioDuration()
	}
	q.timer = q.deps.Sched.After(delay, func() {
		q.timer = nil
		q.closed = true
		q.present(q.closing)
		q.changed()
	})
}

func (q *Sequence) present(item *narrative.Item) {
	if item == nil {
		return
	}
	if q.deps.Presenter.Start(item) {
		return
	}
	q.queue = append(q.queue, item)
	q.deps.Logger.Debug("Verse queued behind active session", "item_id", item.ID)
}

// SessionEnded presents the next queued verse, if any
func (q *Sequence) SessionEnded() {
	if len(q.queue) == 0 {
		return
	}
	item := q.queue[0]
	if q.deps.Presenter.Start(item) {
		q.queue = q.queue[1:]
		q.changed()
	}
}

// Step returns the number of steps taken
func (q *Sequence) Step() int {
	return q.step
}

// Steps returns the number of steps expected
func (q *Sequence) Steps() int {
	return q.steps
}

// Pending returns the number of verses waiting for the stage
func (q *Sequence) Pending() int {
	return len(q.queue)
}

// Done reports whether every verse, the closing one included, has been
// handed to the presenter
func (q *Sequence) Done() bool {
	return q.step >= q.steps && q.closed && len(q.queue) == 0
}

// Snapshot copies the sequence position for persistence
func (q *Sequence) Snapshot() SequenceSnapshot {
	snap := SequenceSnapshot{Step: q.step, ClosingHanded: q.closed && q.closing != nil}
	for _, item := range q.queue {
		snap.Queued = append(snap.Queued, item.ID)
	}
	return snap
}

// Restore resumes saved progress. It never moves back a step. Queued verses
// wait for the stage again, and a closing verse that was due but never
// handed out is scheduled anew.
func (q *Sequence) Restore(snap SequenceSnapshot) {
	step := min(snap.Step, q.steps)
	if step < q.step {
		return
	}
	q.step = step

	q.queue = q.queue[:0]
	for _, id := range snap.Queued {
		if item := q.lookup(id); item != nil {
			q.queue = append(q.queue, item)
		}
	}

	if snap.ClosingHanded {
		q.closed = true
	}
	if q.step == q.steps && q.steps > 0 && !q.closed && q.timer == nil {
		q.scheduleClosing()
	}
	if len(q.queue) > 0 {
		q.SessionEnded()
	}
}

func (q *Sequence) lookup(id string) *narrative.Item {
	for _, item := range q.verses {
		if item != nil && item.ID == id {
			return item
		}
	}
	if q.closing != nil && q.closing.ID == id {
		return q.closing
	}
	return nil
}

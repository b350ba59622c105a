// Package world wires the clock, the session, the triggers and the farm into
// one context. Every exported operation is serialized on the world's
// scheduler, so World is safe for concurrent use.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/progression"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
	"github.com/jwebster45206/verse-engine/pkg/session"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
)

var (
	ErrUnknownSite   = errors.New("unknown site")
	ErrUnknownAction = errors.New("unknown action")
)

const saveTimeout = 5 * time.Second

// World is the running installation
type World struct {
	id     string
	sched  *scheduler.Scheduler
	sink   effects.Sink
	store  ProgressStore
	logger *slog.Logger

	clock   *environment.Clock
	session *session.Session
	tracker *progression.Tracker
	field   *plot.Field
	farm    *trigger.Sequence

	gates       map[string]*trigger.Gate
	gateOrder   []string
	actions     map[string]*trigger.ActionGate
	actionOrder []string

	// revision counts saves; guarded by the scheduler
	revision  int64
	saves     chan *Progress
	stopSaver func()
	standby   atomic.Bool
}

// New builds a world. store may be nil when progress is not persisted.
func New(id string, cfg Config, sink effects.Sink, store ProgressStore, logger *slog.Logger) (*World, error) {
	if id == "" {
		return nil, errors.New("world id is required")
	}
	if sink == nil {
		sink = effects.Nop{}
	}

	var selectorRand *rand.Rand
	if cfg.Seed != 0 {
		selectorRand = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
		if cfg.Clock.Rand == nil {
			cfg.Clock.Rand = rand.New(rand.NewPCG(cfg.Seed+1, cfg.Seed^0x6a09e667f3bcc909))
		}
	}

	sched := scheduler.New()
	w := &World{
		id:      id,
		sched:   sched,
		sink:    sink,
		store:   store,
		logger:  logger.With("world_id", id),
		gates:   make(map[string]*trigger.Gate),
		actions: make(map[string]*trigger.ActionGate),
		saves:   make(chan *Progress, 1),
	}
	w.clock = environment.NewClock(sched, sink, sink, w.logger, cfg.Clock)
	w.session = session.New(sched, sink, w.logger, cfg.Session)

	deps := trigger.Deps{
		Sched:     sched,
		Presenter: w.session,
		Env:       w.clock,
		Selector:  narrative.NewSelector(selectorRand),
		Sink:      sink,
		Logger:    w.logger,
	}

	for _, site := range cfg.Sites {
		if site.ID == "" {
			return nil, errors.New("site id is required")
		}
		if _, dup := w.gates[site.ID]; dup {
			return nil, fmt.Errorf("duplicate site id: %s", site.ID)
		}
		w.gates[site.ID] = trigger.NewGate(trigger.GateConfig{
			ID:       site.ID,
			Label:    site.Label,
			Pool:     narrative.NewPool(site.Items),
			Cooldown: site.Cooldown,
		}, deps)
		w.gateOrder = append(w.gateOrder, site.ID)
	}

	for _, action := range cfg.Actions {
		if action.ID == "" {
			return nil, errors.New("action id is required")
		}
		if _, dup := w.actions[action.ID]; dup {
			return nil, fmt.Errorf("duplicate action id: %s", action.ID)
		}
		w.actions[action.ID] = trigger.NewActionGate(action, deps)
		w.actionOrder = append(w.actionOrder, action.ID)
	}

	farm := cfg.Farm
	if farm == nil {
		farm = &Farm{}
	}
	w.tracker = progression.NewTracker(farm.Rewards, sink, w.logger)
	w.field = plot.NewField(sched, sink, w.logger, cfg.Plot)
	for _, id := range farm.Plots {
		if !w.field.Add(id) {
			return nil, fmt.Errorf("invalid or duplicate plot id: %q", id)
		}
		w.tracker.RegisterPlot(id)
	}
	w.tracker.Seal()

	verses := make([]*narrative.Item, 0, len(farm.Verses))
	for _, v := range farm.Verses {
		if v == nil {
			continue
		}
		if v.Title == "" {
			v.Title = farm.Title
		}
		verses = append(verses, v)
	}
	if farm.Closing != nil && farm.Closing.Title == "" {
		farm.Closing.Title = farm.Title
	}
	w.farm = trigger.NewSequence(trigger.SequenceConfig{
		Verses:       verses,
		Closing:      farm.Closing,
		Steps:        len(farm.Plots),
		ClosingDelay: farm.ClosingDelay,
	}, deps)

	w.session.OnEnd(func(string) {
		for _, id := range w.gateOrder {
			w.gates[id].SessionEnded()
		}
		w.farm.SessionEnded()
	})
	w.field.OnGrown(func(plotID string) {
		w.completePlot(plotID)
	})
	w.farm.OnChange(w.save)
	w.farm.OnFinalStep(func() {
		w.logger.Info("Farm complete", "plots", w.tracker.Tracked())
	})
	w.clock.Subscribe(func(st environment.State) {
		w.logger.Debug("Environment changed", "environment", st.String())
	})

	return w, nil
}

// ID returns the world id
func (w *World) ID() string {
	return w.id
}

// Scheduler returns the scheduler driving the world
func (w *World) Scheduler() *scheduler.Scheduler {
	return w.sched
}

// Start restores saved progress, then starts the clock and opens every site
func (w *World) Start(ctx context.Context) error {
	if w.store != nil {
		if err := w.reload(ctx); err != nil {
			return err
		}
		w.startSaver()
	}

	w.sched.Do(func() {
		w.clock.Start()
		w.field.Activate()
		for _, id := range w.gateOrder {
			w.gates[id].Activate()
		}
	})
	w.logger.Info("World started",
		"sites", len(w.gateOrder),
		"actions", len(w.actionOrder),
		"plots", w.tracker.Tracked())
	return nil
}

// Stop halts the clock and flushes the last queued save. Sessions in flight
// stop advancing with the scheduler.
func (w *World) Stop() {
	w.sched.Do(w.clock.Stop)
	if w.stopSaver != nil {
		w.stopSaver()
	}
	w.logger.Info("World stopped")
}

// Follow puts the world on standby: another replica drives it, so nothing
// is saved from here until Lead.
func (w *World) Follow() {
	if !w.standby.Swap(true) {
		w.logger.Info("World on standby")
	}
}

// Lead takes the world off standby, first catching up on progress the
// previous leader saved.
func (w *World) Lead(ctx context.Context) error {
	if w.store != nil {
		if err := w.reload(ctx); err != nil {
			return err
		}
	}
	if w.standby.Swap(false) {
		w.logger.Info("World leading")
	}
	return nil
}

// Leading reports whether this replica may change the world
func (w *World) Leading() bool {
	return !w.standby.Load()
}

// Advance moves the world's virtual time forward
func (w *World) Advance(d time.Duration) int {
	return w.sched.Advance(d)
}

// RequestPresentation asks a site to present a verse. It returns true only
// when a session started.
func (w *World) RequestPresentation(siteID string) (bool, error) {
	var started bool
	var err error
	w.sched.Do(func() {
		g, ok := w.gates[siteID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownSite, siteID)
			return
		}
		started = g.RequestPresentation()
	})
	return started, err
}

// RequestModeSwitch changes the view of the active session
func (w *World) RequestModeSwitch(v session.View) bool {
	var ok bool
	w.sched.Do(func() { ok = w.session.SwitchTo(v) })
	return ok
}

// NotifyPlotCompleted records a plot completed outside the field
func (w *World) NotifyPlotCompleted(plotID string) bool {
	var ok bool
	w.sched.Do(func() { ok = w.completePlot(plotID) })
	return ok
}

// WorkPlot strokes a plot with a tool
func (w *World) WorkPlot(plotID, tool string) (plot.State, error) {
	var st plot.State
	var err error
	w.sched.Do(func() {
		st, err = w.field.Work(plotID, tool)
		// a plot that grew was saved with its completion
		if err == nil && !st.Grown {
			w.save()
		}
	})
	return st, err
}

// RequestAction starts an environment-gated action
func (w *World) RequestAction(actionID string) (bool, error) {
	var started bool
	var err error
	w.sched.Do(func() {
		a, ok := w.actions[actionID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
			return
		}
		started = a.Request()
	})
	return started, err
}

// SetSiteEnabled holds a site closed or releases it
func (w *World) SetSiteEnabled(siteID string, enabled bool) error {
	var err error
	w.sched.Do(func() {
		g, ok := w.gates[siteID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownSite, siteID)
			return
		}
		if enabled {
			g.Enable()
		} else {
			g.Disable()
		}
	})
	return err
}

// QueryIsSessionActive reports whether a verse is on display
func (w *World) QueryIsSessionActive() bool {
	var active bool
	w.sched.Do(func() { active = w.session.Active() })
	return active
}

// QueryEnvironment returns the current season and weather
func (w *World) QueryEnvironment() environment.State {
	return w.clock.State()
}

// SessionSnapshot copies the presentation state
func (w *World) SessionSnapshot() session.Snapshot {
	var snap session.Snapshot
	w.sched.Do(func() { snap = w.session.Snapshot() })
	return snap
}

// Sites lists every site in declaration order
func (w *World) Sites() []trigger.GateStatus {
	var out []trigger.GateStatus
	w.sched.Do(func() {
		out = make([]trigger.GateStatus, 0, len(w.gateOrder))
		for _, id := range w.gateOrder {
			out = append(out, w.gates[id].Status())
		}
	})
	return out
}

// Actions lists every action in declaration order
func (w *World) Actions() []trigger.ActionStatus {
	var out []trigger.ActionStatus
	w.sched.Do(func() {
		out = make([]trigger.ActionStatus, 0, len(w.actionOrder))
		for _, id := range w.actionOrder {
			out = append(out, w.actions[id].Status())
		}
	})
	return out
}

// Progress returns the farm's progression
func (w *World) Progress() ProgressView {
	var view ProgressView
	w.sched.Do(func() {
		rewards, revealed := w.tracker.Slots()
		view = ProgressView{
			Completed:       w.tracker.Completed(),
			Tracked:         w.tracker.Tracked(),
			MilestonesFired: w.tracker.MilestonesFired(),
			Rewards:         rewards,
			Revealed:        revealed,
			Plots:           w.field.States(),
			Step:            w.farm.Step(),
			Steps:           w.farm.Steps(),
			Done:            w.farm.Done(),
		}
	})
	return view
}

// completePlot runs on the scheduler
func (w *World) completePlot(plotID string) bool {
	if !w.tracker.OnPlotCompleted(plotID) {
		return false
	}
	w.field.MarkGrown(plotID)
	w.farm.Advance()
	w.save()
	return true
}

// save queues a snapshot for the saver. Only the newest snapshot waits;
// it runs on the scheduler, so nothing else fills the queue in between.
func (w *World) save() {
	if w.store == nil || w.standby.Load() {
		return
	}
	w.revision++
	p := &Progress{
		WorldID:   w.id,
		Revision:  w.revision,
		Tracker:   w.tracker.Snapshot(),
		Plots:     w.field.States(),
		Sequence:  w.farm.Snapshot(),
		UpdatedAt: time.Now().UTC(),
	}
	select {
	case <-w.saves:
	default:
	}
	w.saves <- p
}

func (w *World) startSaver() {
	stop, done := make(chan struct{}), make(chan struct{})
	w.stopSaver = sync.OnceFunc(func() {
		close(stop)
		<-done
	})
	go w.runSaver(stop, done)
}

func (w *World) runSaver(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case p := <-w.saves:
			w.write(p)
		case <-stop:
			select {
			case p := <-w.saves:
				w.write(p)
			default:
			}
			return
		}
	}
}

func (w *World) write(p *Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := w.store.SaveProgress(ctx, p); err != nil {
		w.logger.Error("Failed to save progress", "error", err, "revision", p.Revision)
	}
}

// reload restores stored progress newer than what the world already has
func (w *World) reload(ctx context.Context) error {
	p, err := w.store.LoadProgress(ctx, w.id)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	if p == nil {
		return nil
	}
	var restoreErr error
	w.sched.Do(func() {
		if p.Revision > 0 && p.Revision <= w.revision {
			return
		}
		restoreErr = w.restore(p)
	})
	if restoreErr != nil {
		return fmt.Errorf("failed to restore progress: %w", restoreErr)
	}
	return nil
}

// restore runs on the scheduler
func (w *World) restore(p *Progress) error {
	if err := w.tracker.Restore(p.Tracker); err != nil {
		return err
	}
	// saves made while restoring must come after the stored revision
	w.revision = max(w.revision, p.Revision)
	states := make([]plot.State, 0, len(p.Plots)+len(p.Tracker.Completed))
	states = append(states, p.Plots...)
	for _, id := range p.Tracker.Completed {
		states = append(states, plot.State{ID: id, Grown: true})
	}
	w.field.Restore(states)
	w.farm.Restore(p.Sequence)
	w.logger.Info("Progress restored",
		"revision", p.Revision,
		"completed", len(p.Tracker.Completed),
		"sequence_step", p.Sequence.Step,
		"saved_at", p.UpdatedAt)
	return nil
}

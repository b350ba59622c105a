// Package plot models the farm plots worked with a tool until they are grown.
package plot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
)

var (
	ErrUnknownPlot  = errors.New("unknown plot")
	ErrAlreadyGrown = errors.New("plot already grown")
	ErrWrongTool    = errors.New("wrong tool")
	ErrCoolingDown  = errors.New("tool is cooling down")
)

// Options controls how plots grow
type Options struct {
	Stages      int           // growth stages, the last one is grown
	Tool        string        // tool tag that works the soil
	DigCooldown time.Duration // per tool, between two strokes
}

// DefaultOptions matches the installation: five stages worked with a rake
func DefaultOptions() Options {
	return Options{
		Stages:      5,
		Tool:        "rake",
		DigCooldown: time.Second,
	}
}

// State is the externally visible state of a plot
type State struct {
	ID    string `json:"id"`
	Stage int    `json:"stage"`
	Grown bool   `json:"grown"`
}

type plot struct {
	id    string
	stage int
	grown bool
}

// Field holds every plot of the farm. Not goroutine-safe; call it from the
// scheduler goroutine.
type Field struct {
	sched   *scheduler.Scheduler
	sink    effects.Sink
	logger  *slog.Logger
	opts    Options
	plots   map[string]*plot
	order   []string
	cooling map[string]*scheduler.Timer
	onGrown []func(plotID string)
}

// NewField creates a field with the given plot ids, all at the first stage
func NewField(sched *scheduler.Scheduler, sink effects.Sink, logger *slog.Logger, opts Options, ids ...string) *Field {
	if opts.Stages < 2 {
		opts.Stages = 2
	}
	f := &Field{
		sched:   sched,
		sink:    sink,
		logger:  logger,
		opts:    opts,
		plots:   make(map[string]*plot),
		cooling: make(map[string]*scheduler.Timer),
	}
	for _, id := range ids {
		f.Add(id)
	}
	return f
}

// Add registers a new plot. Duplicate ids are ignored.
func (f *Field) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := f.plots[id]; ok {
		return false
	}
	f.plots[id] = &plot{id: id, stage: 1}
	f.order = append(f.order, id)
	return true
}

// OnGrown registers a listener for plots reaching their last stage
func (f *Field) OnGrown(fn func(plotID string)) {
	f.onGrown = append(f.onGrown, fn)
}

// Activate shows the farming marker on every plot still growing
func (f *Field) Activate() {
	for _, id := range f.order {
		if !f.plots[id].grown {
			f.sink.SetVisualEffectActive(effects.FarmingPointEffect(id), true)
		}
	}
}

// Work strokes a plot with a tool and returns the plot's new stage.
func (f *Field) Work(plotID, tool string) (State, error) {
	p, ok := f.plots[plotID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownPlot, plotID)
	}
	if p.grown {
		return p.state(), ErrAlreadyGrown
	}
	tool = strings.ToLower(strings.TrimSpace(tool))
	if tool != strings.ToLower(f.opts.Tool) {
		return p.state(), fmt.Errorf("%w: %q", ErrWrongTool, tool)
	}
	if _, busy := f.cooling[tool]; busy {
		return p.state(), ErrCoolingDown
	}

	f.sink.PlayOneShot(effects.ClipDig)
	f.cooling[tool] = f.sched.After(f.opts.DigCooldown, func() {
		delete(f.cooling, tool)
	})

	f.sink.PlayOneShot(effects.ClipGrow)
	p.stage++
	f.logger.Debug("Plot worked", "plot_id", plotID, "stage", p.stage)

	if p.stage >= f.opts.Stages {
		p.grown = true
		f.sink.SetVisualEffectActive(effects.FarmingPointEffect(plotID), false)
		f.logger.Info("Plot grown", "plot_id", plotID)
		for _, fn := range f.onGrown {
			fn(plotID)
		}
	}
	return p.state(), nil
}

// Get returns one plot's state
func (f *Field) Get(plotID string) (State, bool) {
	p, ok := f.plots[plotID]
	if !ok {
		return State{}, false
	}
	return p.state(), true
}

// States returns every plot in registration order
func (f *Field) States() []State {
	out := make([]State, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.plots[id].state())
	}
	return out
}

// MarkGrown finishes a plot completed outside the field, such as by an
// external trigger. It does not notify listeners.
func (f *Field) MarkGrown(plotID string) bool {
	p, ok := f.plots[plotID]
	if !ok || p.grown {
		return false
	}
	p.grown = true
	p.stage = f.opts.Stages
	f.sink.SetVisualEffectActive(effects.FarmingPointEffect(plotID), false)
	return true
}

// Restore brings plots back to saved stages without firing listeners, for
// resuming saved progress. Plots never move back a stage.
func (f *Field) Restore(states []State) {
	for _, st := range states {
		p, ok := f.plots[st.ID]
		if !ok || p.grown {
			continue
		}
		if st.Grown {
			p.grown = true
			p.stage = f.opts.Stages
			continue
		}
		if stage := min(st.Stage, f.opts.Stages-1); stage > p.stage {
			p.stage = stage
		}
	}
}

func (p *plot) state() State {
	return State{ID: p.id, Stage: p.stage, Grown: p.grown}
}

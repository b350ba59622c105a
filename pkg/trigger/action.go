package trigger

import (
	"time"

	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
)

// ActionConfig describes an environment-gated action such as feeding the
// chickens
type ActionConfig struct {
	ID       string
	Label    string
	When     narrative.Condition
	Duration time.Duration
	Clip     string // one-shot played when the action starts
}

// ActionStatus is the externally visible state of an action
type ActionStatus struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Running bool   `json:"running"`
	Allowed bool   `json:"allowed"`
}

// ActionGate runs an action for a fixed duration, refusing new requests
// until it is over or while the environment does not match
type ActionGate struct {
	cfg     ActionConfig
	deps    Deps
	running bool
}

// NewActionGate creates an idle action
func NewActionGate(cfg ActionConfig, deps Deps) *ActionGate {
	return &ActionGate{cfg: cfg, deps: deps}
}

// ID returns the action id
func (a *ActionGate) ID() string {
	return a.cfg.ID
}

// Request starts the action, returning false when it is already running or
// the environment does not allow it
func (a *ActionGate) Request() bool {
	if a.running {
		return false
	}
	env := a.deps.Env.State()
	if !a.cfg.When.Matches(env) {
		a.deps.Logger.Debug("Action not available in environment",
			"action_id", a.cfg.ID,
			"environment", env.String())
		return false
	}

	a.running = true
	a.deps.Sink.SetVisualEffectActive(effects.ActionEffect(a.cfg.ID), true)
	if a.cfg.Clip != "" {
		a.deps.Sink.PlayOneShot(a.cfg.Clip)
	}
	a.deps.Sched.After(a.cfg.Duration, func() {
		a.running = false
		a.deps.Sink.SetVisualEffectActive(effects.ActionEffect(a.cfg.ID), false)
	})

	a.deps.Logger.Info("Action started", "action_id", a.cfg.ID, "duration", a.cfg.Duration)
	return true
}

// Running reports whether the action is in progress
func (a *ActionGate) Running() bool {
	return a.running
}

// Status copies the action state
func (a *ActionGate) Status() ActionStatus {
	return ActionStatus{
		ID:      a.cfg.ID,
		Label:   a.cfg.Label,
		Running: a.running,
		Allowed: !a.running && a.cfg.When.Matches(a.deps.Env.State()),
	}
}

// Package trigger holds the entry points that turn a visitor's interaction
// into a presentation: per-site gates, the farm's ordered verses and
// environment-gated actions.
//
// None of the types here are goroutine-safe; drive them from the scheduler.
package trigger

import (
	"log/slog"

	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
)

// Presenter runs at most one presentation at a time
type Presenter interface {
	Start(item *narrative.Item) bool
	Active() bool
}

// EnvironmentSource reports the current season and weather
type EnvironmentSource interface {
	State() environment.State
}

// Deps are the collaborators shared by every trigger
type Deps struct {
	Sched     *scheduler.Scheduler
	Presenter Presenter
	Env       EnvironmentSource
	Selector  *narrative.Selector
	Sink      effects.Sink
	Logger    *slog.Logger
}

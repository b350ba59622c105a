package trigger

import (
	"time"

	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
)

// DefaultCooldown applies to sites whose first verse has no narration
const DefaultCooldown = 5 * time.Second

// GateConfig describes one trigger site
type GateConfig struct {
	ID       string
	Label    string
	Pool     *narrative.Pool
	Cooldown time.Duration // zero picks the first verse's audio length or DefaultCooldown
}

// GateStatus is the externally visible state of a gate
type GateStatus struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Enabled     bool   `json:"enabled"`
	Visible     bool   `json:"visible"`
	CoolingDown bool   `json:"cooling_down"`
	Held        bool   `json:"held"`
	Items       int    `json:"items"`
	Shown       int    `json:"shown"`
}

// Gate is a cooldown-gated trigger site with its own pool of verses
type Gate struct {
	id       string
	label    string
	pool     *narrative.Pool
	cooldown time.Duration
	deps     Deps

	enabled  bool
	cooling  bool
	awaiting bool // waiting for the session it started to end
	held     bool // disabled from outside
	timer    *scheduler.Timer
}

// NewGate creates a disabled gate; call Activate once the world is running
func NewGate(cfg GateConfig, deps Deps) *Gate {
	pool := cfg.Pool
	if pool == nil {
		pool = narrative.NewPool(nil)
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
		if first := pool.First(); first != nil && first.HasAudio() {
			cooldown = first.AudioDuration()
		}
	}
	return &Gate{
		id:       cfg.ID,
		label:    cfg.Label,
		pool:     pool,
		cooldown: cooldown,
		deps:     deps,
	}
}

// ID returns the site id
func (g *Gate) ID() string {
	return g.id
}

// Pool returns the site's verses
func (g *Gate) Pool() *narrative.Pool {
	return g.pool
}

// Cooldown returns the minimum time between two presentations of the site
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// Activate enables the gate for the first time
func (g *Gate) Activate() {
	g.tryEnable()
}

// RequestPresentation picks a verse for the current environment and starts
// it. It returns true only when a session actually started.
func (g *Gate) RequestPresentation() bool {
	if !g.enabled {
		g.deps.Logger.Debug("Presentation ignored, gate disabled", "site_id", g.id)
		return false
	}
	if g.deps.Presenter.Active() {
		g.deps.Logger.Debug("Presentation ignored, session active", "site_id", g.id)
		return false
	}

	env := g.deps.Env.State()
	item := g.deps.Selector.Select(g.pool, env)
	if item == nil {
		g.deps.Logger.Info("No verse matches environment",
			"site_id", g.id,
			"environment", env.String())
		return false
	}
	if !g.deps.Presenter.Start(item) {
		return false
	}

	g.setEnabled(false)
	g.cooling = true
	g.awaiting = true
	g.timer = g.deps.Sched.After(g.cooldown, func() {
		g.cooling = false
		g.timer = nil
		g.tryEnable()
	})

	g.deps.Logger.Info("Presentation started",
		"site_id", g.id,
		"item_id", item.ID,
		"cooldown", g.cooldown)
	return true
}

// SessionEnded is called when any session finishes
func (g *Gate) SessionEnded() {
	if !g.awaiting {
		return
	}
	g.awaiting = false
	g.tryEnable()
}

// Enable lifts an outside hold; the gate reopens once its cooldown is over
func (g *Gate) Enable() {
	g.held = false
	g.tryEnable()
}

// Disable holds the gate closed until Enable is called
func (g *Gate) Disable() {
	g.held = true
	g.setEnabled(false)
}

// Enabled reports whether the gate accepts a request
func (g *Gate) Enabled() bool {
	return g.enabled
}

// AffordanceVisible reports whether the site should advertise itself
func (g *Gate) AffordanceVisible() bool {
	return g.enabled && !g.deps.Presenter.Active()
}

// Status copies the gate state
func (g *Gate) Status() GateStatus {
	return GateStatus{
		ID:          g.id,
		Label:       g.label,
		Enabled:     g.enabled,
		Visible:     g.AffordanceVisible(),
		CoolingDown: g.cooling,
		Held:        g.held,
		Items:       g.pool.Len(),
		Shown:       g.pool.ShownCount(),
	}
}

func (g *Gate) tryEnable() {
	if g.cooling || g.awaiting || g.held {
		return
	}
	g.setEnabled(true)
}

func (g *Gate) setEnabled(on bool) {
	if g.enabled == on {
		return
	}
	g.enabled = on
	g.deps.Sink.SetVisualEffectActive(effects.TriggerEffect(g.id), on)
}

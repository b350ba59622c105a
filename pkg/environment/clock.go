package environment

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/jwebster45206/verse-engine/pkg/scheduler"
)

// RainGuard decides whether the weather ticker may make it rain in a season
type RainGuard int

const (
	// GuardSeasonal only lets it rain in spring and summer
	GuardSeasonal RainGuard = iota
	// GuardLegacy toggles weather in every season, matching the shipped game
	// whose seasonal check could never be false
	GuardLegacy
)

func (g RainGuard) String() string {
	if g == GuardLegacy {
		return "legacy"
	}
	return "seasonal"
}

// ParseRainGuard parses "seasonal" or "legacy"
func ParseRainGuard(name string) (RainGuard, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "seasonal":
		return GuardSeasonal, nil
	case "legacy":
		return GuardLegacy, nil
	}
	return GuardSeasonal, fmt.Errorf("unknown rain guard %q", name)
}

// Options configures a Clock
type Options struct {
	SeasonPeriod     time.Duration
	MinWeatherPeriod time.Duration
	MaxWeatherPeriod time.Duration
	RainGuard        RainGuard
	Rand             *rand.Rand
}

// DefaultOptions mirrors the tuning of the installation
func DefaultOptions() Options {
	return Options{
		SeasonPeriod:     40 * time.Second,
		MinWeatherPeriod: 30 * time.Second,
		MaxWeatherPeriod: 60 * time.Second,
		RainGuard:        GuardSeasonal,
	}
}

// Clock owns the environment state and advances it on two independent
// tickers: a fixed season period and a jittered weather period.
type Clock struct {
	sched   *scheduler.Scheduler
	audio   effects.Audio
	visuals effects.Visuals
	logger  *slog.Logger
	opts    Options
	rng     *rand.Rand

	mu           sync.RWMutex
	state        State
	listeners    []func(State)
	running      bool
	seasonTimer  *scheduler.Timer
	weatherTimer *scheduler.Timer
}

// NewClock creates a clock in the initial Spring/Sunny state. It does not tick
// until Start is called.
func NewClock(sched *scheduler.Scheduler, audio effects.Audio, visuals effects.Visuals, logger *slog.Logger, opts Options) *Clock {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.MaxWeatherPeriod < opts.MinWeatherPeriod {
		opts.MaxWeatherPeriod = opts.MinWeatherPeriod
	}
	return &Clock{
		sched:   sched,
		audio:   audio,
		visuals: visuals,
		logger:  logger,
		opts:    opts,
		rng:     rng,
		state:   Initial(),
	}
}

// State returns the current environment
func (c *Clock) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Running reports whether the tickers are scheduled
func (c *Clock) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Subscribe registers a listener called after every season or weather change
func (c *Clock) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start publishes the current ambience and schedules both tickers
func (c *Clock) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	st := c.state
	c.mu.Unlock()

	c.audio.PlayAmbient(effects.AmbientSeason, int(st.Season))
	c.visuals.SetVisualEffectActive(effects.EffectRain, st.Weather == Rainy)
	c.audio.PlayAmbient(effects.AmbientWeather, int(st.Weather))

	c.logger.Info("Environment clock started",
		"season", st.Season.String(),
		"weather", st.Weather.String(),
		"season_period", c.opts.SeasonPeriod,
		"rain_guard", c.opts.RainGuard.String())

	c.scheduleSeason()
	c.scheduleWeather()
}

// Stop cancels both tickers. The state is kept; Start resumes from it.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.seasonTimer.Stop()
	c.weatherTimer.Stop()
	c.seasonTimer = nil
	c.weatherTimer = nil
	c.logger.Info("Environment clock stopped")
}

func (c *Clock) scheduleSeason() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.opts.SeasonPeriod <= 0 {
		return
	}
	c.seasonTimer = c.sched.After(c.opts.SeasonPeriod, func() {
		c.TickSeason()
		c.scheduleSeason()
	})
}

func (c *Clock) scheduleWeather() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.opts.MaxWeatherPeriod <= 0 {
		return
	}
	c.weatherTimer = c.sched.After(c.nextWeatherDelay(), func() {
		c.TickWeather()
		c.scheduleWeather()
	})
}

// nextWeatherDelay draws uniformly from [MinWeatherPeriod, MaxWeatherPeriod]
func (c *Clock) nextWeatherDelay() time.Duration {
	span := c.opts.MaxWeatherPeriod - c.opts.MinWeatherPeriod
	if span <= 0 {
		return c.opts.MinWeatherPeriod
	}
	return c.opts.MinWeatherPeriod + time.Duration(c.rng.Int64N(int64(span)+1))
}

// TickSeason advances to the next season and publishes it
func (c *Clock) TickSeason() Season {
	c.mu.Lock()
	c.state.Season = c.state.Season.Next()
	st := c.state
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	c.audio.PlayAmbient(effects.AmbientSeason, int(st.Season))
	c.logger.Info("Season changed", "season", st.Season.String())

	for _, fn := range listeners {
		fn(st)
	}
	return st.Season
}

// TickWeather toggles the weather, or forces it sunny when the season does
// not allow rain, and publishes the result
func (c *Clock) TickWeather() Weather {
	c.mu.Lock()
	if c.rainAllowed(c.state.Season) {
		if c.state.Weather == Rainy {
			c.state.Weather = Sunny
		} else {
			c.state.Weather = Rainy
		}
	} else {
		c.state.Weather = Sunny
	}
	st := c.state
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	c.visuals.SetVisualEffectActive(effects.EffectRain, st.Weather == Rainy)
	c.audio.PlayAmbient(effects.AmbientWeather, int(st.Weather))
	c.logger.Info("Weather changed", "weather", st.Weather.String(), "season", st.Season.String())

	for _, fn := range listeners {
		fn(st)
	}
	return st.Weather
}

func (c *Clock) rainAllowed(s Season) bool {
	if c.opts.RainGuard == GuardLegacy {
		// season != Autumn || season != Winter holds for every season
		return true
	}
	return s != Autumn && s != Winter
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/session"
)

// Progress store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Event bus backends
const (
	BusLocal = "local"
	BusRedis = "redis"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	RawLogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	RedisURL      string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	DataDir       string        `env:"DATA_DIR" envDefault:"data"`
	ProgressStore string        `env:"PROGRESS_STORE" envDefault:"memory"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"data/progress.db"`
	WorldID       string        `env:"WORLD_ID" envDefault:"garden"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"50ms"`
	RNGSeed       uint64        `env:"RNG_SEED" envDefault:"0"`
	EventBus      string        `env:"EVENT_BUS" envDefault:"local"`
	WorkerID      string        `env:"WORKER_ID"`
	WorldLockTTL  time.Duration `env:"WORLD_LOCK_TTL" envDefault:"30s"`
	// ResetProgress deletes saved progress at startup, for a fresh farm
	ResetProgress bool `env:"RESET_PROGRESS" envDefault:"false"`

	SeasonPeriod     time.Duration `env:"SEASON_PERIOD" envDefault:"40s"`
	WeatherMinPeriod time.Duration `env:"WEATHER_MIN_PERIOD" envDefault:"30s"`
	WeatherMaxPeriod time.Duration `env:"WEATHER_MAX_PERIOD" envDefault:"60s"`
	RainGuard        string        `env:"RAIN_GUARD" envDefault:"seasonal"`

	CharDelay              time.Duration `env:"CHAR_DELAY" envDefault:"50ms"`
	PreRevealDelay         time.Duration `env:"PRE_REVEAL_DELAY" envDefault:"1s"`
	PoemReadingTime        time.Duration `env:"POEM_READING_TIME" envDefault:"10s"`
	ReadingTimeIncrement   time.Duration `env:"READING_TIME_INCREMENT" envDefault:"6s"`
	DescriptionReadingTime time.Duration `env:"DESCRIPTION_READING_TIME" envDefault:"15s"`
	FadeDuration           time.Duration `env:"FADE_DURATION" envDefault:"1s"`
	FadeStep               time.Duration `env:"FADE_STEP" envDefault:"50ms"`
	TextLengthLimit        int           `env:"TEXT_LENGTH_LIMIT" envDefault:"30"`
	TextOffset             float64       `env:"TEXT_OFFSET" envDefault:"100"`

	TriggerCooldown time.Duration `env:"TRIGGER_COOLDOWN" envDefault:"0s"`
	DigCooldown     time.Duration `env:"DIG_COOLDOWN" envDefault:"1s"`
}

// Load reads the configuration from the environment and validates it. A
// dotenv file (ENV_FILE, default .env) fills in variables the process
// environment leaves unset.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)
	cfg.ProgressStore = strings.ToLower(strings.TrimSpace(cfg.ProgressStore))
	cfg.EventBus = strings.ToLower(strings.TrimSpace(cfg.EventBus))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the world cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.WorldID == "" {
		errs = append(errs, errors.New("WORLD_ID is required"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("TICK_INTERVAL must be positive"))
	}
	if c.SeasonPeriod <= 0 {
		errs = append(errs, errors.New("SEASON_PERIOD must be positive"))
	}
	if c.WeatherMinPeriod <= 0 {
		errs = append(errs, errors.New("WEATHER_MIN_PERIOD must be positive"))
	}
	if c.WeatherMaxPeriod < c.WeatherMinPeriod {
		errs = append(errs, fmt.Errorf("WEATHER_MAX_PERIOD (%s) is below WEATHER_MIN_PERIOD (%s)",
			c.WeatherMaxPeriod, c.WeatherMinPeriod))
	}
	if _, err := environment.ParseRainGuard(c.RainGuard); err != nil {
		errs = append(errs, fmt.Errorf("RAIN_GUARD: %w", err))
	}
	if c.CharDelay < 0 || c.PreRevealDelay < 0 || c.FadeDuration < 0 || c.FadeStep < 0 {
		errs = append(errs, errors.New("session delays must not be negative"))
	}
	switch c.ProgressStore {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown PROGRESS_STORE %q", c.ProgressStore))
	}
	switch c.EventBus {
	case BusLocal, BusRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_BUS %q", c.EventBus))
	}
	if c.WorldLockTTL < time.Second {
		errs = append(errs, errors.New("WORLD_LOCK_TTL must be at least 1s"))
	}
	return errors.Join(errs...)
}

// ClockOptions builds the environment clock settings
func (c *Config) ClockOptions() environment.Options {
	guard, _ := environment.ParseRainGuard(c.RainGuard)
	return environment.Options{
		SeasonPeriod:     c.SeasonPeriod,
		MinWeatherPeriod: c.WeatherMinPeriod,
		MaxWeatherPeriod: c.WeatherMaxPeriod,
		RainGuard:        guard,
	}
}

// SessionOptions builds the presentation pacing
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.PreRevealDelay = c.PreRevealDelay
	opts.CharDelay = c.CharDelay
	opts.PoemReadingTime = c.PoemReadingTime
	opts.ReadingTimeIncrement = c.ReadingTimeIncrement
	opts.DescriptionReadingTime = c.DescriptionReadingTime
	opts.FadeDuration = c.FadeDuration
	opts.FadeStep = c.FadeStep
	opts.TextLengthLimit = c.TextLengthLimit
	opts.TextOffset = c.TextOffset
	return opts
}

// PlotOptions builds the farm plot settings
func (c *Config) PlotOptions() plot.Options {
	opts := plot.DefaultOptions()
	opts.DigCooldown = c.DigCooldown
	return opts
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

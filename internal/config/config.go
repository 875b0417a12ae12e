// Package config loads engine budgets and policies from a YAML file and
// HOLLOW_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/eval"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/solver"
	"github.com/roach88/hollow/internal/suggest"
)

// EnvPrefix prefixes environment overrides: engine.timeout is read from
// HOLLOW_ENGINE_TIMEOUT.
const EnvPrefix = "HOLLOW"

// EngineConfig bounds propagation.
type EngineConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxVisits int           `mapstructure:"max_visits"`
	Revert    RevertConfig  `mapstructure:"revert"`
}

// RevertConfig mirrors engine.RevertPolicy.
type RevertConfig struct {
	KeepSuggestions bool `mapstructure:"keep_suggestions"`
	KeepTraces      bool `mapstructure:"keep_traces"`
}

// SolverConfig mirrors solver.Config.
type SolverConfig struct {
	IntMin        int64 `mapstructure:"int_min"`
	IntMax        int64 `mapstructure:"int_max"`
	MaxDomain     int   `mapstructure:"max_domain"`
	MaxSteps      int   `mapstructure:"max_steps"`
	MinimizeCores bool  `mapstructure:"minimize_cores"`
}

// EvalConfig bounds the partial evaluator.
type EvalConfig struct {
	TraceLimit int `mapstructure:"trace_limit"`
	MaxSteps   int `mapstructure:"max_steps"`
	MaxDepth   int `mapstructure:"max_depth"`
}

// SuggestConfig controls the suggestion dispatcher. When enabled,
// suggestions are enumerated from solver models.
type SuggestConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Rate           float64       `mapstructure:"rate"`
	Burst          int           `mapstructure:"burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxSuggestions int           `mapstructure:"max_suggestions"`
}

// Config holds all runtime configuration.
// Values are populated from the config file, HOLLOW_* env vars and CLI flags.
type Config struct {
	DB        string        `mapstructure:"db"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Engine    EngineConfig  `mapstructure:"engine"`
	Solver    SolverConfig  `mapstructure:"solver"`
	Eval      EvalConfig    `mapstructure:"eval"`
	Suggest   SuggestConfig `mapstructure:"suggest"`
}

// New returns a viper instance with every default set and environment
// overrides enabled. Callers may bind flags to it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	sc := solver.DefaultConfig()

	v.SetDefault("db", "hollow.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("engine.timeout", engine.DefaultTimeout)
	v.SetDefault("engine.max_visits", engine.DefaultMaxVisits)
	v.SetDefault("engine.revert.keep_suggestions", false)
	v.SetDefault("engine.revert.keep_traces", false)
	v.SetDefault("solver.int_min", sc.IntMin)
	v.SetDefault("solver.int_max", sc.IntMax)
	v.SetDefault("solver.max_domain", sc.MaxDomain)
	v.SetDefault("solver.max_steps", sc.MaxSteps)
	v.SetDefault("solver.minimize_cores", sc.MinimizeCores)
	v.SetDefault("eval.trace_limit", eval.DefaultTraceLimit)
	v.SetDefault("eval.max_steps", eval.DefaultMaxSteps)
	v.SetDefault("eval.max_depth", eval.DefaultMaxDepth)
	v.SetDefault("suggest.enabled", false)
	v.SetDefault("suggest.rate", float64(suggest.DefaultRate))
	v.SetDefault("suggest.burst", suggest.DefaultRate)
	v.SetDefault("suggest.timeout", suggest.DefaultTimeout)
	v.SetDefault("suggest.max_suggestions", suggest.DefaultMaxSuggestions)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) over the defaults and environment.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals v and validates the result.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q: must be text or json", c.LogFormat)
	}
	if c.Solver.IntMin > c.Solver.IntMax {
		return fmt.Errorf("solver.int_min %d exceeds solver.int_max %d", c.Solver.IntMin, c.Solver.IntMax)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if c.Engine.MaxVisits < 0 {
		return fmt.Errorf("engine.max_visits must not be negative, got %d", c.Engine.MaxVisits)
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Logger builds the structured logger described by the log settings.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SolverConfig returns the reference solver's configuration.
func (c Config) SolverConfig() solver.Config {
	return solver.Config{
		IntMin:        c.Solver.IntMin,
		IntMax:        c.Solver.IntMax,
		MaxDomain:     c.Solver.MaxDomain,
		MaxSteps:      c.Solver.MaxSteps,
		MinimizeCores: c.Solver.MinimizeCores,
	}
}

// EngineOptions returns the propagation engine's options.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithTimeout(c.Engine.Timeout),
		engine.WithMaxVisits(c.Engine.MaxVisits),
		engine.WithRevertPolicy(engine.RevertPolicy{
			KeepSuggestions: c.Engine.Revert.KeepSuggestions,
			KeepTraces:      c.Engine.Revert.KeepTraces,
		}),
	}
}

// EvalOptions returns the evaluator's options.
func (c Config) EvalOptions() []eval.Option {
	return []eval.Option{
		eval.WithTraceLimit(c.Eval.TraceLimit),
		eval.WithMaxSteps(c.Eval.MaxSteps),
		eval.WithMaxDepth(c.Eval.MaxDepth),
	}
}

// SuggestOptions returns the dispatcher's options.
func (c Config) SuggestOptions() []suggest.Option {
	return []suggest.Option{
		suggest.WithRate(c.Suggest.Rate, c.Suggest.Burst),
		suggest.WithTimeout(c.Suggest.Timeout),
		suggest.WithMaxSuggestions(c.Suggest.MaxSuggestions),
	}
}

// SessionOptions wires everything above into session options.
func (c Config) SessionOptions(logger *slog.Logger) []session.Option {
	oracle := solver.NewBounded(c.SolverConfig())
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithOracle(oracle),
		session.WithEngineOptions(c.EngineOptions()...),
		session.WithEvalOptions(c.EvalOptions()...),
	}
	if c.Suggest.Enabled {
		gen := suggest.ModelGenerator{Oracle: oracle, Limit: c.Suggest.MaxSuggestions}
		opts = append(opts, session.WithGenerator(gen, c.SuggestOptions()...))
	}
	return opts
}

// Package engine parses engine command flags and launches the engine
// runtime.
package engine

import (
	"context"
	"flag"
	"time"

	"github.com/crucible-sim/crucible/internal/app"
	entrypoint "github.com/crucible-sim/crucible/internal/platform/cmd"
)

// Config holds engine command configuration.
type Config struct {
	HTTPPort int    `env:"CRUCIBLE_ENGINE_HTTP_PORT" envDefault:"8090"`
	GRPCPort int    `env:"CRUCIBLE_ENGINE_GRPC_PORT" envDefault:"8091"`
	DBPath   string `env:"CRUCIBLE_ENGINE_DB_PATH" envDefault:"data/engine.db"`

	OracleAPIKey      string  `env:"CRUCIBLE_ENGINE_ORACLE_API_KEY"`
	OracleBaseURL     string  `env:"CRUCIBLE_ENGINE_ORACLE_BASE_URL"`
	OracleModel       string  `env:"CRUCIBLE_ENGINE_ORACLE_MODEL" envDefault:"gpt-4o-mini"`
	OracleTemperature float64 `env:"CRUCIBLE_ENGINE_ORACLE_TEMPERATURE" envDefault:"0.7"`

	TimedEnabled          bool          `env:"CRUCIBLE_ENGINE_TIMED_ENABLED" envDefault:"true"`
	TimedInterval         time.Duration `env:"CRUCIBLE_ENGINE_TIMED_INTERVAL" envDefault:"30s"`
	ReactionInterval      time.Duration `env:"CRUCIBLE_ENGINE_REACTION_INTERVAL" envDefault:"5m"`
	DecisionWindow        time.Duration `env:"CRUCIBLE_ENGINE_DECISION_WINDOW" envDefault:"5m"`
	MaxInjectsPerDecision int           `env:"CRUCIBLE_ENGINE_MAX_INJECTS_PER_DECISION" envDefault:"2"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The engine HTTP server port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The engine health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.StringVar(&cfg.OracleAPIKey, "oracle-api-key", cfg.OracleAPIKey, "Generative oracle API key")
	fs.StringVar(&cfg.OracleBaseURL, "oracle-base-url", cfg.OracleBaseURL, "Generative oracle base URL override")
	fs.StringVar(&cfg.OracleModel, "oracle-model", cfg.OracleModel, "Generative oracle model name")
	fs.Float64Var(&cfg.OracleTemperature, "oracle-temperature", cfg.OracleTemperature, "Generative oracle sampling temperature")
	fs.BoolVar(&cfg.TimedEnabled, "timed-enabled", cfg.TimedEnabled, "Enable the timed scripted-inject scheduler")
	fs.DurationVar(&cfg.TimedInterval, "timed-interval", cfg.TimedInterval, "Timed scheduler tick interval")
	fs.DurationVar(&cfg.ReactionInterval, "reaction-interval", cfg.ReactionInterval, "Reaction scheduler evaluation interval")
	fs.DurationVar(&cfg.DecisionWindow, "decision-window", cfg.DecisionWindow, "Executed-decision evaluation window")
	fs.IntVar(&cfg.MaxInjectsPerDecision, "max-injects-per-decision", cfg.MaxInjectsPerDecision, "Conditional inject budget per dispatched decision")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the engine runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			HTTPPort:              cfg.HTTPPort,
			GRPCPort:              cfg.GRPCPort,
			DBPath:                cfg.DBPath,
			OracleAPIKey:          cfg.OracleAPIKey,
			OracleBaseURL:         cfg.OracleBaseURL,
			OracleModel:           cfg.OracleModel,
			OracleTemperature:     float32(cfg.OracleTemperature),
			TimedEnabled:          cfg.TimedEnabled,
			TimedInterval:         cfg.TimedInterval,
			ReactionInterval:      cfg.ReactionInterval,
			DecisionWindow:        cfg.DecisionWindow,
			MaxInjectsPerDecision: cfg.MaxInjectsPerDecision,
		})
	})
}

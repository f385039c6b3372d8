package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Evaluation EvaluationConfig `yaml:"evaluation" mapstructure:"evaluation"`
	Robust     RobustConfig     `yaml:"robust" mapstructure:"robust"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	// ConnectAttempts bounds retries while a Postgres server is unreachable.
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// EvaluationConfig configures clinical goal evaluation.
type EvaluationConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// UndefinedVerdict is "not_available" or "failed".
	UndefinedVerdict string  `yaml:"undefined_verdict" mapstructure:"undefined_verdict"`
	DVHBinWidth      float64 `yaml:"dvh_bin_width" mapstructure:"dvh_bin_width"`
	NominalLabel     string  `yaml:"nominal_label" mapstructure:"nominal_label"`
}

// RobustConfig configures min/max dose aggregation.
type RobustConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ReportConfig configures result files.
type ReportConfig struct {
	OutputDir string   `yaml:"output_dir" mapstructure:"output_dir"`
	Formats   []string `yaml:"formats" mapstructure:"formats"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var (
	knownDrivers  = []string{"sqlite", "postgres"}
	knownFormats  = []string{"json", "csv", "html", "xlsx"}
	knownVerdicts = []string{"not_available", "failed"}
)

const maxWorkers = 64

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("UGOALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "uncertainty-goals.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("evaluation.workers", 4)
	v.SetDefault("evaluation.undefined_verdict", "not_available")
	v.SetDefault("evaluation.dvh_bin_width", 0.01)
	v.SetDefault("evaluation.nominal_label", "Nominal")
	v.SetDefault("robust.workers", 4)
	v.SetDefault("report.output_dir", "out")
	v.SetDefault("report.formats", []string{"json", "html"})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the given command depends on. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "evaluate":
		errs = append(errs, c.validateEvaluation()...)
		errs = append(errs, c.validateReport()...)
	case "robust":
		if c.Robust.Workers < 1 || c.Robust.Workers > maxWorkers {
			errs = append(errs, "robust.workers must be between 1 and 64")
		}
	case "inspect":
	case "runs":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateEvaluation()...)
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 {
			errs = append(errs, "server.rate_limit must be > 0")
		}
		if c.Server.RateBurst < 1 {
			errs = append(errs, "server.rate_burst must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateEvaluation() []string {
	var errs []string
	if c.Evaluation.Workers < 1 || c.Evaluation.Workers > maxWorkers {
		errs = append(errs, "evaluation.workers must be between 1 and 64")
	}
	if c.Evaluation.UndefinedVerdict != "" && !slices.Contains(knownVerdicts, c.Evaluation.UndefinedVerdict) {
		errs = append(errs, "evaluation.undefined_verdict must be one of "+strings.Join(knownVerdicts, ", "))
	}
	if c.Evaluation.DVHBinWidth < 0 {
		errs = append(errs, "evaluation.dvh_bin_width must be >= 0")
	}
	return errs
}

func (c *Config) validateReport() []string {
	var errs []string
	for _, f := range c.Report.Formats {
		if !slices.Contains(knownFormats, strings.ToLower(strings.TrimSpace(f))) {
			errs = append(errs, "report.formats: unknown format "+f)
		}
	}
	return errs
}

// validateStore is only needed by commands that always open the store.
func (c *Config) validateStore() []string {
	var errs []string
	if !slices.Contains(knownDrivers, c.Store.Driver) {
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

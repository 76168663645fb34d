package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/stepline-org/stepline/internal/build"
)

// Load creates a new configuration by instantiating a Loader with the
// provided options and invoking its Load method.
func Load(opts ...LoaderOption) (*Config, error) {
	loader := NewLoader(opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Loader reads and merges configuration from the config file, environment
// variables and defaults. Each Loader owns its viper instance, so loaders
// never share state; the mutex keeps a single Loader safe against
// concurrent Load calls.
type Loader struct {
	lock       sync.Mutex
	viper      *viper.Viper
	configFile string
	warnings   []string
}

// LoaderOption defines a functional option for configuring a Loader.
type LoaderOption func(*Loader)

// WithConfigFile sets an explicit configuration file path.
func WithConfigFile(configFile string) LoaderOption {
	return func(l *Loader) {
		l.configFile = configFile
	}
}

// NewLoader creates a new Loader and applies all given options.
func NewLoader(options ...LoaderOption) *Loader {
	loader := &Loader{viper: viper.New()}
	for _, option := range options {
		option(loader)
	}
	return loader
}

// Definition is the raw configuration shape unmarshaled by viper before
// validation and path resolution.
type Definition struct {
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"logFormat"`
	Quiet     bool   `mapstructure:"quiet"`

	Paths *struct {
		DataDir string `mapstructure:"dataDir"`
		LogDir  string `mapstructure:"logDir"`
	} `mapstructure:"paths"`

	Store *struct {
		Driver    string `mapstructure:"driver"`
		DSN       string `mapstructure:"dsn"`
		Table     string `mapstructure:"table"`
		Retention string `mapstructure:"retention"`
	} `mapstructure:"store"`

	Runner *struct {
		Workers     int    `mapstructure:"workers"`
		ErrorPolicy string `mapstructure:"errorPolicy"`
		StepTimeout string `mapstructure:"stepTimeout"`
	} `mapstructure:"runner"`
}

// Load initializes viper, reads the configuration file and returns a fully
// built and validated Config.
func (l *Loader) Load() (*Config, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.setupViper(); err != nil {
		return nil, fmt.Errorf("viper setup failed: %w", err)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := l.viper.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	cfg.Warnings = l.warnings
	cfg.ConfigPath = l.viper.ConfigFileUsed()

	return cfg, nil
}

// buildConfig transforms the raw Definition into a final Config, applying
// defaults and validations.
func (l *Loader) buildConfig(def Definition) (*Config, error) {
	var cfg Config

	cfg.Global = Global{
		Debug:     def.Debug,
		LogFormat: def.LogFormat,
		Quiet:     def.Quiet,
	}

	dataDir := filepath.Join(xdg.DataHome, build.Slug)
	logDir := filepath.Join(dataDir, "logs")
	if def.Paths != nil {
		if def.Paths.DataDir != "" {
			dataDir = def.Paths.DataDir
		}
		if def.Paths.LogDir != "" {
			logDir = def.Paths.LogDir
		}
	}
	cfg.Paths = Paths{DataDir: dataDir, LogDir: logDir}

	cfg.Store = Store{
		Driver:    "sqlite",
		Table:     "step_runs",
		Retention: DefaultRetention,
	}
	if def.Store != nil {
		if def.Store.Driver != "" {
			cfg.Store.Driver = def.Store.Driver
		}
		if def.Store.DSN != "" {
			cfg.Store.DSN = def.Store.DSN
		}
		if def.Store.Table != "" {
			cfg.Store.Table = def.Store.Table
		}
		if def.Store.Retention != "" {
			retention, err := time.ParseDuration(def.Store.Retention)
			if err != nil {
				return nil, fmt.Errorf("invalid store retention %q: %w", def.Store.Retention, err)
			}
			cfg.Store.Retention = retention
		}
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = filepath.Join(cfg.Paths.DataDir, "steprun.db")
	}

	cfg.Runner = Runner{ErrorPolicy: "continueUnlessCritical"}
	if def.Runner != nil {
		cfg.Runner.Workers = def.Runner.Workers
		if def.Runner.ErrorPolicy != "" {
			cfg.Runner.ErrorPolicy = def.Runner.ErrorPolicy
		}
		if def.Runner.StepTimeout != "" {
			timeout, err := time.ParseDuration(def.Runner.StepTimeout)
			if err != nil {
				return nil, fmt.Errorf("invalid step timeout %q: %w", def.Runner.StepTimeout, err)
			}
			cfg.Runner.StepTimeout = timeout
		}
	}

	if err := l.validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper's config file location, environment variable
// binding and default values.
func (l *Loader) setupViper() error {
	if l.configFile == "" {
		configDir := filepath.Join(l.configHome(), build.Slug)
		l.viper.AddConfigPath(configDir)
		l.viper.SetConfigName("config")
	} else {
		l.viper.SetConfigFile(l.configFile)
	}
	l.viper.SetConfigType("yaml")

	l.viper.SetEnvPrefix(strings.ToUpper(build.Slug))
	l.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	l.viper.AutomaticEnv()

	l.bindEnvironmentVariables()
	l.setDefaultValues()

	return nil
}

func (l *Loader) configHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return xdg.ConfigHome
}

func (l *Loader) setDefaultValues() {
	l.viper.SetDefault("debug", false)
	l.viper.SetDefault("logFormat", "text")
	l.viper.SetDefault("quiet", false)

	l.viper.SetDefault("store.driver", "sqlite")
	l.viper.SetDefault("store.table", "step_runs")

	l.viper.SetDefault("runner.errorPolicy", "continueUnlessCritical")
}

func (l *Loader) bindEnvironmentVariables() {
	l.bindEnv("debug", "DEBUG")
	l.bindEnv("logFormat", "LOG_FORMAT")
	l.bindEnv("quiet", "QUIET")

	l.bindEnv("paths.dataDir", "DATA_DIR")
	l.bindEnv("paths.logDir", "LOG_DIR")

	l.bindEnv("store.driver", "STORE_DRIVER")
	l.bindEnv("store.dsn", "STORE_DSN")
	l.bindEnv("store.table", "STORE_TABLE")
	l.bindEnv("store.retention", "STORE_RETENTION")

	l.bindEnv("runner.workers", "WORKERS")
	l.bindEnv("runner.errorPolicy", "ERROR_POLICY")
	l.bindEnv("runner.stepTimeout", "STEP_TIMEOUT")
}

// bindEnv constructs the full environment variable name using the app
// prefix and binds it to the given key.
func (l *Loader) bindEnv(key, env string) {
	prefix := strings.ToUpper(build.Slug) + "_"
	_ = l.viper.BindEnv(key, prefix+env)
}

func (l *Loader) validateConfig(cfg *Config) error {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}

	if cfg.Store.Retention <= 0 {
		return fmt.Errorf("store retention must be positive: %s", cfg.Store.Retention)
	}

	if cfg.Runner.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", cfg.Runner.Workers)
	}

	switch cfg.Runner.ErrorPolicy {
	case "failFast", "continueUnlessCritical", "skipDependents":
	default:
		return fmt.Errorf("unknown error policy: %q", cfg.Runner.ErrorPolicy)
	}

	return nil
}

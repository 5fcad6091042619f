// Package config loads and validates the optimizer service configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when the config file or environment leaves a key unset.
const (
	DefaultCycleInterval  = 300 * time.Second
	DefaultCycleBudget    = 120 * time.Second
	DefaultArtifactTTL    = 24 * time.Hour
	DefaultStrategyTTL    = 6 * time.Hour
	DefaultSolverTimeout  = 30 * time.Second
	DefaultSolverMaxIters = 1000
	DefaultAPIPort        = 5000
	DefaultStatsEvery     = 10
)

// Config is the root service configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Versions  VersionsConfig  `mapstructure:"versions"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Solver    SolverConfig    `mapstructure:"solver"`
	API       APIConfig       `mapstructure:"api"`
	Verbosity int             `mapstructure:"verbosity"`
	Debug     bool            `mapstructure:"debug"`
}

// StorageConfig locates the remote object store holding artifacts.
type StorageConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Bucket   string `mapstructure:"bucket"`
	Secure   bool   `mapstructure:"secure"`
}

// DatabaseConfig locates the process-measurement database.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Table    string `mapstructure:"table"`
}

// ConnString renders the pgx connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// VersionsConfig locates the deployed-version pointer file and the
// last-successful-cycle timestamp file.
type VersionsConfig struct {
	PointerFile string `mapstructure:"pointer_file"`
	LastRunFile string `mapstructure:"last_run_file"`
	Watch       bool   `mapstructure:"watch"`
}

// StrategyConfig names the strategy document in the artifact store.
type StrategyConfig struct {
	Key string `mapstructure:"key"`
}

// CacheConfig controls artifact cache expiry.
type CacheConfig struct {
	// ArtifactTTL applies to models, scalers and metadata.
	ArtifactTTL time.Duration `mapstructure:"artifact_ttl"`
	// StrategyTTL applies to strategy documents, which change more often.
	StrategyTTL time.Duration `mapstructure:"strategy_ttl"`
}

// CycleConfig controls the continuous optimization loop.
type CycleConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	Budget     time.Duration `mapstructure:"budget"`
	StatsEvery int           `mapstructure:"stats_every"`
}

// SolverConfig bounds the nonlinear solver per cycle.
type SolverConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxIterations int           `mapstructure:"max_iterations"`
}

// APIConfig controls the on-demand HTTP surface.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Load reads configuration from the given file (or the default search
// path when empty), applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("optimizer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("RTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is tolerated; defaults plus env must then carry.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !asConfigFileNotFound(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.secure", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.table", "process_data")
	v.SetDefault("versions.pointer_file", "metadata/deployed_versions.yaml")
	v.SetDefault("versions.last_run_file", "metadata/last_run.yaml")
	v.SetDefault("strategy.key", "process-optimization")
	v.SetDefault("cache.artifact_ttl", DefaultArtifactTTL)
	v.SetDefault("cache.strategy_ttl", DefaultStrategyTTL)
	v.SetDefault("cycle.interval", DefaultCycleInterval)
	v.SetDefault("cycle.budget", DefaultCycleBudget)
	v.SetDefault("cycle.stats_every", DefaultStatsEvery)
	v.SetDefault("solver.timeout", DefaultSolverTimeout)
	v.SetDefault("solver.max_iterations", DefaultSolverMaxIters)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", DefaultAPIPort)
}

// Validate checks for values no deployment can run with.
func (c *Config) Validate() error {
	if c.Cycle.Interval <= 0 {
		return fmt.Errorf("cycle.interval must be positive, got %s", c.Cycle.Interval)
	}
	if c.Cycle.Budget <= 0 {
		return fmt.Errorf("cycle.budget must be positive, got %s", c.Cycle.Budget)
	}
	if c.Cache.ArtifactTTL <= 0 {
		return fmt.Errorf("cache.artifact_ttl must be positive, got %s", c.Cache.ArtifactTTL)
	}
	if c.Cache.StrategyTTL <= 0 {
		return fmt.Errorf("cache.strategy_ttl must be positive, got %s", c.Cache.StrategyTTL)
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("solver.max_iterations must be positive, got %d", c.Solver.MaxIterations)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if c.Versions.PointerFile == "" {
		return fmt.Errorf("versions.pointer_file must be set")
	}
	if c.Strategy.Key == "" {
		return fmt.Errorf("strategy.key must be set")
	}
	return nil
}

package sharder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/sharder/types"
)

// ============================================================================
// Capacity Model
// ============================================================================
//
// Expansion is driven by a simple per-shard utilization model:
//
//	utilization(shard) = activity(shard) / CapacityPerShard
//
// Activity is the number of write operations recorded against a shard in the
// current epoch; counters reset when an expansion commits, so utilization
// always measures pressure on the topology that is actually serving.
//
// The trigger is existential: the manager expands as soon as ANY shard's
// utilization reaches ExpansionLoadThreshold. One hot shard is enough,
// because rerouting over a larger table relieves every shard at once.
//
// Execution flow example (defaults):
//
//	T+0s:   Epoch 1 with 16 shards, counters zeroed
//	T+40s:  Shard 11 reaches 6400 ops (0.80 of 8000) → trigger armed
//	T+50s:  Monitor tick observes the trigger
//	        ├─ GrowthPolicy proposes 32 (doubling)
//	        └─ Expansion migrates, commits epoch 2 with 32 shards
//	T+50s:  Counters zeroed for epoch 2; cycle repeats
//
// Sizing Constraints:
//   - InitialShardCount <= MaxShardCount (shard count only ever grows)
//   - ExpansionLoadThreshold in (0, 1]; <0.5 expands aggressively
//   - ApplyRetryAttempts * ApplyRetryInterval bounds how long a write
//     waits out an in-flight migration before ErrShardUnavailable
//
// ============================================================================

// Config is the configuration for the Manager.
//
// All duration fields accept standard Go duration strings like "10s", "2ms"
// when loaded from YAML.
type Config struct {
	// InitialShardCount is the number of shards the manager starts with.
	// Must be at least 1.
	InitialShardCount uint64 `yaml:"initialShardCount"`

	// MaxShardCount is the hard ceiling on the shard count. Expansion
	// targets above it are clamped, never rejected, so the shard count is
	// always in [InitialShardCount, MaxShardCount].
	MaxShardCount uint64 `yaml:"maxShardCount"`

	// CapacityPerShard is the number of operations a single shard is
	// provisioned to absorb per epoch. Utilization is measured against it.
	CapacityPerShard uint64 `yaml:"capacityPerShard"`

	// ExpansionLoadThreshold is the utilization fraction (0.0-1.0) at which
	// a shard arms the expansion trigger. For example, 0.80 means expansion
	// starts once any shard has absorbed 80% of its per-epoch capacity.
	// Recommended: 0.75-0.85.
	ExpansionLoadThreshold float64 `yaml:"expansionLoadThreshold"`

	// MonitorInterval is how often the started manager evaluates shard
	// utilization and triggers automatic expansion.
	// Shorter intervals react faster but evaluate more often.
	// Recommended: 5-30 seconds.
	MonitorInterval time.Duration `yaml:"monitorInterval"`

	// ApplyRetryAttempts is how many times a write retries against a
	// refreshed table after finding its shard sealed for migration.
	// Together with ApplyRetryInterval it bounds the wait for an in-flight
	// table swap; writes that exhaust it fail with ErrShardUnavailable.
	ApplyRetryAttempts int `yaml:"applyRetryAttempts"`

	// ApplyRetryInterval is the pause between sealed-shard retries.
	// Recommended: 1-5 milliseconds; migrations hold a seal briefly.
	ApplyRetryInterval time.Duration `yaml:"applyRetryInterval"`

	// RedistributeWorkers caps the goroutines redistributing records during
	// an expansion. Zero selects runtime.GOMAXPROCS(0).
	RedistributeWorkers int `yaml:"redistributeWorkers"`
}

// configYAML mirrors Config for the YAML codec, with durations as strings so
// files can say "10s" instead of nanosecond integers.
type configYAML struct {
	InitialShardCount      uint64  `yaml:"initialShardCount"`
	MaxShardCount          uint64  `yaml:"maxShardCount"`
	CapacityPerShard       uint64  `yaml:"capacityPerShard"`
	ExpansionLoadThreshold float64 `yaml:"expansionLoadThreshold"`
	MonitorInterval        string  `yaml:"monitorInterval"`
	ApplyRetryAttempts     int     `yaml:"applyRetryAttempts"`
	ApplyRetryInterval     string  `yaml:"applyRetryInterval"`
	RedistributeWorkers    int     `yaml:"redistributeWorkers"`
}

// UnmarshalYAML decodes a Config, parsing duration fields with
// time.ParseDuration. Empty or absent durations decode to zero and pick up
// production values through SetDefaults.
func (cfg *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw configYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	cfg.InitialShardCount = raw.InitialShardCount
	cfg.MaxShardCount = raw.MaxShardCount
	cfg.CapacityPerShard = raw.CapacityPerShard
	cfg.ExpansionLoadThreshold = raw.ExpansionLoadThreshold
	cfg.ApplyRetryAttempts = raw.ApplyRetryAttempts
	cfg.RedistributeWorkers = raw.RedistributeWorkers

	var err error
	if cfg.MonitorInterval, err = parseDuration("monitorInterval", raw.MonitorInterval); err != nil {
		return err
	}
	if cfg.ApplyRetryInterval, err = parseDuration("applyRetryInterval", raw.ApplyRetryInterval); err != nil {
		return err
	}

	return nil
}

// MarshalYAML encodes a Config with durations in their string form.
func (cfg Config) MarshalYAML() (any, error) {
	return configYAML{
		InitialShardCount:      cfg.InitialShardCount,
		MaxShardCount:          cfg.MaxShardCount,
		CapacityPerShard:       cfg.CapacityPerShard,
		ExpansionLoadThreshold: cfg.ExpansionLoadThreshold,
		MonitorInterval:        cfg.MonitorInterval.String(),
		ApplyRetryAttempts:     cfg.ApplyRetryAttempts,
		ApplyRetryInterval:     cfg.ApplyRetryInterval.String(),
		RedistributeWorkers:    cfg.RedistributeWorkers,
	}, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", field, err)
	}

	return d, nil
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		InitialShardCount:      16,
		MaxShardCount:          8000,
		CapacityPerShard:       8000,
		ExpansionLoadThreshold: 0.80,
		MonitorInterval:        10 * time.Second,
		ApplyRetryAttempts:     25,
		ApplyRetryInterval:     2 * time.Millisecond,
		RedistributeWorkers:    0, // Auto: runtime.GOMAXPROCS(0)
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.InitialShardCount == 0 {
		cfg.InitialShardCount = defaults.InitialShardCount
	}
	if cfg.MaxShardCount == 0 {
		cfg.MaxShardCount = defaults.MaxShardCount
	}
	if cfg.CapacityPerShard == 0 {
		cfg.CapacityPerShard = defaults.CapacityPerShard
	}
	if cfg.ExpansionLoadThreshold == 0 {
		cfg.ExpansionLoadThreshold = defaults.ExpansionLoadThreshold
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = defaults.MonitorInterval
	}
	if cfg.ApplyRetryAttempts == 0 {
		cfg.ApplyRetryAttempts = defaults.ApplyRetryAttempts
	}
	if cfg.ApplyRetryInterval == 0 {
		cfg.ApplyRetryInterval = defaults.ApplyRetryInterval
	}
	// Note: RedistributeWorkers of 0 is valid (auto-size), so we don't apply a default
}

// Validate checks configuration constraints and returns an error for invalid values.
//
// Hard Validation Rules:
//   - InitialShardCount >= 1 (an empty table cannot route)
//   - MaxShardCount >= InitialShardCount (shard count only grows)
//   - CapacityPerShard >= 1 (utilization needs a denominator)
//   - ExpansionLoadThreshold in (0, 1]
//   - MonitorInterval > 0
//   - ApplyRetryAttempts >= 1 and ApplyRetryInterval > 0 (writes must be
//     able to wait out a table swap)
//   - RedistributeWorkers >= 0
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.InitialShardCount < 1 {
		return fmt.Errorf("%w: InitialShardCount must be >= 1, got %d",
			types.ErrInvalidConfig, cfg.InitialShardCount)
	}

	if cfg.MaxShardCount < cfg.InitialShardCount {
		return fmt.Errorf("%w: MaxShardCount (%d) must be >= InitialShardCount (%d)",
			types.ErrInvalidConfig, cfg.MaxShardCount, cfg.InitialShardCount)
	}

	if cfg.CapacityPerShard < 1 {
		return fmt.Errorf("%w: CapacityPerShard must be >= 1, got %d",
			types.ErrInvalidConfig, cfg.CapacityPerShard)
	}

	if cfg.ExpansionLoadThreshold <= 0 || cfg.ExpansionLoadThreshold > 1 {
		return fmt.Errorf("%w: ExpansionLoadThreshold must be in (0, 1], got %v",
			types.ErrInvalidConfig, cfg.ExpansionLoadThreshold)
	}

	if cfg.MonitorInterval <= 0 {
		return fmt.Errorf("%w: MonitorInterval must be > 0, got %v",
			types.ErrInvalidConfig, cfg.MonitorInterval)
	}

	if cfg.ApplyRetryAttempts < 1 {
		return fmt.Errorf("%w: ApplyRetryAttempts must be >= 1, got %d",
			types.ErrInvalidConfig, cfg.ApplyRetryAttempts)
	}

	if cfg.ApplyRetryInterval <= 0 {
		return fmt.Errorf("%w: ApplyRetryInterval must be > 0, got %v",
			types.ErrInvalidConfig, cfg.ApplyRetryInterval)
	}

	if cfg.RedistributeWorkers < 0 {
		return fmt.Errorf("%w: RedistributeWorkers must be >= 0, got %d",
			types.ErrInvalidConfig, cfg.RedistributeWorkers)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewManager() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// Warn if the threshold will fire expansions aggressively
	if cfg.ExpansionLoadThreshold < 0.5 {
		logger.Warn(
			"ExpansionLoadThreshold is very low, may cause frequent expansions",
			"threshold", cfg.ExpansionLoadThreshold,
			"recommended", "0.75 or higher",
		)
	}

	// Warn if there is no expansion headroom at all
	if cfg.InitialShardCount == cfg.MaxShardCount {
		logger.Warn(
			"InitialShardCount equals MaxShardCount, expansion can never run",
			"shardCount", cfg.InitialShardCount,
		)
	}

	// Warn if per-shard capacity is so small the trigger is mostly noise
	if cfg.CapacityPerShard < 100 {
		logger.Warn(
			"CapacityPerShard is very small, a handful of writes will trigger expansion",
			"capacity", cfg.CapacityPerShard,
			"recommended", "1000 or higher",
		)
	}
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// A missing file is not an error: the defaults are returned so a fresh
// deployment runs without any configuration on disk.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Validated configuration ready for NewManager
//   - error: Read, parse, or validation error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings and sizes are 10-100x smaller than production defaults to
// enable rapid iteration without sacrificing coverage. Use DefaultConfig()
// for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := sharder.TestConfig()
//	cfg.InitialShardCount = 8
//	manager, err := sharder.NewManager(&cfg)
func TestConfig() Config {
	cfg := DefaultConfig()

	// Small topology and fast timings for test execution
	cfg.InitialShardCount = 4
	cfg.MaxShardCount = 64
	cfg.CapacityPerShard = 100
	cfg.MonitorInterval = 20 * time.Millisecond
	cfg.ApplyRetryAttempts = 10
	cfg.ApplyRetryInterval = 1 * time.Millisecond
	cfg.RedistributeWorkers = 2

	return cfg
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "frontdesk.yml"

// Defaults applied by Validate.
const (
	DefaultInstance            = "default"
	DefaultRedisURL            = "redis://localhost:6379/0"
	DefaultConnectRetries      = 5
	DefaultAcceptanceThreshold = 0.35
	DefaultJaccardWeight       = 0.7
	DefaultRatioWeight         = 0.3
	DefaultRequestTimeout      = 4 * time.Hour
	DefaultSweepInterval       = time.Hour
	DefaultSweepTimeout        = time.Minute
	DefaultStoreTimeout        = 5 * time.Second
	DefaultSupervisorAddr      = ":8080"
)

// MaxInstanceNameLength bounds instance names (DNS label length).
const MaxInstanceNameLength = 63

// instanceNamePattern: lowercase alphanumeric, hyphens allowed but not at start/end.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateInstanceName checks that name is safe to embed in Redis keys and channels.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}
	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}
	if !instanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}

// FrontdeskConfig represents the top-level frontdesk.yml configuration
type FrontdeskConfig struct {
	Version    string           `yaml:"version"`
	Instance   string           `yaml:"instance,omitempty"` // Namespace for all Redis keys and channels
	Redis      RedisConfig      `yaml:"redis,omitempty"`
	Matching   MatchingConfig   `yaml:"matching,omitempty"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle,omitempty"`
	Supervisor SupervisorConfig `yaml:"supervisor,omitempty"`
}

// RedisConfig specifies the backing store
type RedisConfig struct {
	URL            string `yaml:"url,omitempty"`
	ConnectRetries *int   `yaml:"connect_retries,omitempty"` // Startup ping attempts before giving up (default 5)
}

// MatchingConfig tunes knowledge base matching
type MatchingConfig struct {
	AcceptanceThreshold *float64 `yaml:"acceptance_threshold,omitempty"` // Minimum fuzzy score to reuse an answer (default 0.35)
	JaccardWeight       *float64 `yaml:"jaccard_weight,omitempty"`       // default 0.7
	RatioWeight         *float64 `yaml:"ratio_weight,omitempty"`         // default 0.3
}

// LifecycleConfig specifies request timeout behavior
type LifecycleConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"` // How long a request may stay pending (default 4h)
	SweepInterval  time.Duration `yaml:"sweep_interval,omitempty"`  // default 1h
	SweepTimeout   time.Duration `yaml:"sweep_timeout,omitempty"`   // Bound on one sweep (default 1m)
	StoreTimeout   time.Duration `yaml:"store_timeout,omitempty"`   // Bound on one store call (default 5s)
	SweepOnStart   *bool         `yaml:"sweep_on_start,omitempty"`  // default true
}

// SupervisorConfig specifies the supervisor API
type SupervisorConfig struct {
	Addr         string `yaml:"addr,omitempty"`
	DashboardURL string `yaml:"dashboard_url,omitempty"` // Included in supervisor notifications
}

// Default returns a validated configuration with every default applied.
func Default() *FrontdeskConfig {
	c := &FrontdeskConfig{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return c
}

// Validate applies defaults and performs strict validation on the configuration
func (c *FrontdeskConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if err := ValidateInstanceName(c.Instance); err != nil {
		return err
	}

	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if c.Redis.ConnectRetries == nil {
		retries := DefaultConnectRetries
		c.Redis.ConnectRetries = &retries
	}
	if *c.Redis.ConnectRetries < 0 {
		return fmt.Errorf("redis.connect_retries must be >= 0, got %d", *c.Redis.ConnectRetries)
	}

	if err := c.Matching.validate(); err != nil {
		return err
	}
	if err := c.Lifecycle.validate(); err != nil {
		return err
	}

	if c.Supervisor.Addr == "" {
		c.Supervisor.Addr = DefaultSupervisorAddr
	}

	return nil
}

func (m *MatchingConfig) validate() error {
	if m.AcceptanceThreshold == nil {
		threshold := DefaultAcceptanceThreshold
		m.AcceptanceThreshold = &threshold
	}
	// Written as a negated range so NaN fails too.
	if t := *m.AcceptanceThreshold; !(t >= 0 && t <= 1) {
		return fmt.Errorf("matching.acceptance_threshold must be between 0 and 1, got %v", t)
	}

	// One weight given implies the other.
	switch {
	case m.JaccardWeight == nil && m.RatioWeight == nil:
		jw, rw := DefaultJaccardWeight, DefaultRatioWeight
		m.JaccardWeight, m.RatioWeight = &jw, &rw
	case m.RatioWeight == nil:
		rw := 1 - *m.JaccardWeight
		m.RatioWeight = &rw
	case m.JaccardWeight == nil:
		jw := 1 - *m.RatioWeight
		m.JaccardWeight = &jw
	}

	jw, rw := *m.JaccardWeight, *m.RatioWeight
	if !(jw >= 0 && jw <= 1) || !(rw >= 0 && rw <= 1) {
		return fmt.Errorf("matching weights must be between 0 and 1, got jaccard=%v ratio=%v", jw, rw)
	}
	if math.Abs(jw+rw-1) > 1e-9 {
		return fmt.Errorf("matching.jaccard_weight + matching.ratio_weight must equal 1, got %v", jw+rw)
	}
	return nil
}

func (l *LifecycleConfig) validate() error {
	if l.RequestTimeout == 0 {
		l.RequestTimeout = DefaultRequestTimeout
	}
	if l.SweepInterval == 0 {
		l.SweepInterval = DefaultSweepInterval
	}
	if l.SweepTimeout == 0 {
		l.SweepTimeout = DefaultSweepTimeout
	}
	if l.StoreTimeout == 0 {
		l.StoreTimeout = DefaultStoreTimeout
	}
	if l.SweepOnStart == nil {
		on := true
		l.SweepOnStart = &on
	}

	if l.RequestTimeout < 0 {
		return fmt.Errorf("lifecycle.request_timeout must be positive, got %v", l.RequestTimeout)
	}
	if l.SweepInterval < 0 {
		return fmt.Errorf("lifecycle.sweep_interval must be positive, got %v", l.SweepInterval)
	}
	if l.SweepTimeout < 0 || l.StoreTimeout < 0 {
		return fmt.Errorf("lifecycle timeouts must be positive")
	}
	return nil
}

// Load reads and validates frontdesk.yml from the specified path
func Load(path string) (*FrontdeskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config FrontdeskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault is Load, except a missing file yields Default().
func LoadOrDefault(path string) (*FrontdeskConfig, error) {
	config, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

// LoadEnvFiles loads .env-style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables, then re-validates.
// lookup is os.LookupEnv outside tests.
//
//	FRONTDESK_INSTANCE               instance
//	FRONTDESK_REDIS_URL, REDIS_URL   redis.url
//	FRONTDESK_SUPERVISOR_ADDR        supervisor.addr
//	FRONTDESK_DASHBOARD_URL          supervisor.dashboard_url
//	FRONTDESK_REQUEST_TIMEOUT        lifecycle.request_timeout (duration)
//	REQUEST_TIMEOUT_HOURS            lifecycle.request_timeout (whole hours)
//	FRONTDESK_SWEEP_INTERVAL         lifecycle.sweep_interval (duration)
//	FRONTDESK_ACCEPTANCE_THRESHOLD   matching.acceptance_threshold
func (c *FrontdeskConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("FRONTDESK_INSTANCE"); ok && v != "" {
		c.Instance = v
	}

	if v, ok := lookup("FRONTDESK_REDIS_URL"); ok && v != "" {
		c.Redis.URL = v
	} else if v, ok := lookup("REDIS_URL"); ok && v != "" {
		c.Redis.URL = v
	}

	if v, ok := lookup("FRONTDESK_SUPERVISOR_ADDR"); ok && v != "" {
		c.Supervisor.Addr = v
	}
	if v, ok := lookup("FRONTDESK_DASHBOARD_URL"); ok && v != "" {
		c.Supervisor.DashboardURL = v
	}

	if v, ok := lookup("FRONTDESK_REQUEST_TIMEOUT"); ok && v != "" {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FRONTDESK_REQUEST_TIMEOUT: %w", err)
		}
		c.Lifecycle.RequestTimeout = d
	} else if v, ok := lookup("REQUEST_TIMEOUT_HOURS"); ok && v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT_HOURS: %w", err)
		}
		if hours <= 0 {
			return fmt.Errorf("invalid REQUEST_TIMEOUT_HOURS: must be positive, got %d", hours)
		}
		c.Lifecycle.RequestTimeout = time.Duration(hours) * time.Hour
	}

	if v, ok := lookup("FRONTDESK_SWEEP_INTERVAL"); ok && v != "" {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FRONTDESK_SWEEP_INTERVAL: %w", err)
		}
		c.Lifecycle.SweepInterval = d
	}

	if v, ok := lookup("FRONTDESK_ACCEPTANCE_THRESHOLD"); ok && v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid FRONTDESK_ACCEPTANCE_THRESHOLD: %w", err)
		}
		c.Matching.AcceptanceThreshold = &t
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration after environment overrides: %w", err)
	}
	return nil
}

// parsePositiveDuration rejects zero so an explicit override is never
// mistaken for an unset field and replaced by the default.
func parsePositiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", d)
	}
	return d, nil
}

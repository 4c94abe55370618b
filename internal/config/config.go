package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultIntervalSeconds is the poll interval used when the document sets none.
const DefaultIntervalSeconds = 300

// ErrInvalid wraps every validation failure of a configuration document.
var ErrInvalid = errors.New("invalid configuration")

// Config is the daemon's configuration document.
type Config struct {
	Global  Global  `yaml:"global"`
	Entries []Entry `yaml:"entries"`
}

// Global holds settings shared by every entry.
type Global struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Entry configures one managed domain.
type Entry struct {
	Domain string `yaml:"domain"`
	// IntervalSeconds overrides Global.IntervalSeconds for this entry when set.
	IntervalSeconds *int           `yaml:"interval_seconds"`
	Provider        ProviderConfig `yaml:"provider"`
}

// ProviderConfig selects a DNS provider by Type; every other key of the
// mapping is a provider-specific setting.
type ProviderConfig struct {
	Type     string            `yaml:"type"`
	Settings map[string]string `yaml:",inline"`
}

// Interval returns the global poll interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Global.IntervalSeconds) * time.Second
}

// Interval returns the entry's own poll interval, or 0 when it follows the global one.
func (e *Entry) Interval() time.Duration {
	if e.IntervalSeconds == nil {
		return 0
	}
	return time.Duration(*e.IntervalSeconds) * time.Second
}

// Load reads and validates the configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Global: Global{IntervalSeconds: DefaultIntervalSeconds}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand ${ENV_VAR} references in setting values.
	for i := range cfg.Entries {
		for k, v := range cfg.Entries[i].Provider.Settings {
			cfg.Entries[i].Provider.Settings[k] = os.ExpandEnv(v)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem of the document at once.
func (c *Config) validate() error {
	var errs []error
	if c.Global.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("global.interval_seconds must be positive, got %d", c.Global.IntervalSeconds))
	}
	if len(c.Entries) == 0 {
		errs = append(errs, errors.New("at least one entry is required"))
	}

	seen := sets.New[string]()
	for i, e := range c.Entries {
		domain := strings.ToLower(strings.TrimSuffix(e.Domain, "."))
		switch {
		case domain == "":
			errs = append(errs, fmt.Errorf("entries[%d]: missing required field 'domain'", i))
		case seen.Has(domain):
			errs = append(errs, fmt.Errorf("entries[%d]: duplicate domain %q", i, e.Domain))
		default:
			seen.Insert(domain)
		}
		if e.IntervalSeconds != nil && *e.IntervalSeconds <= 0 {
			errs = append(errs, fmt.Errorf("entries[%d]: interval_seconds must be positive, got %d", i, *e.IntervalSeconds))
		}
		if e.Provider.Type == "" {
			errs = append(errs, fmt.Errorf("entries[%d]: missing required field 'provider.type'", i))
		}
	}

	if agg := utilerrors.NewAggregate(errs); agg != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, agg)
	}
	return nil
}

package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names accepted in the configuration file.
const (
	DriverInsights = "insights"
	DriverStreams  = "streams"
)

// DefaultTaskGroupPrefix is prepended to a task name to form its log group.
const DefaultTaskGroupPrefix = "/aws/lambda/"

// Config represents the logweave configuration file.
type Config struct {
	Groups            map[string]string `yaml:"groups"`            // alias -> log group name
	GroupDriver       DriverConfig      `yaml:"group_driver"`      // used for named log groups
	TaskDriver        DriverConfig      `yaml:"task_driver"`       // used for task log groups
	TaskGroupPrefix   string            `yaml:"task_group_prefix"` // e.g. /aws/lambda/
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Output            OutputConfig      `yaml:"output"`
}

// DriverConfig selects and tunes the retrieval driver for one log category.
type DriverConfig struct {
	Driver    string   `yaml:"driver"`     // insights or streams
	Window    Duration `yaml:"window"`     // initial/fixed window size
	Dynamic   *bool    `yaml:"dynamic"`    // insights only; nil means enabled
	DayPrefix bool     `yaml:"day_prefix"` // streams only; list sources per day
}

// IsDynamic reports whether adaptive window sizing is enabled.
func (d DriverConfig) IsDynamic() bool {
	return d.Dynamic == nil || *d.Dynamic
}

// OutputConfig defines output preferences.
type OutputConfig struct {
	Format     string `yaml:"format"`     // text, json, csv
	Timestamps string `yaml:"timestamps"` // local, utc
}

// Duration is a time.Duration that reads "90s" or "1h" style values from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Groups: make(map[string]string),
		GroupDriver: DriverConfig{
			Driver: DriverStreams,
			Window: Duration(time.Hour),
		},
		TaskDriver: DriverConfig{
			Driver: DriverInsights,
			Window: Duration(time.Hour),
		},
		TaskGroupPrefix:   DefaultTaskGroupPrefix,
		RequestsPerSecond: 5,
		Output: OutputConfig{
			Format:     "text",
			Timestamps: "local",
		},
	}
}

// ConfigPath returns the path to the logweave config file.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".logweave", "config.yaml")
}

// LoadConfig loads the configuration from path, or from ConfigPath() when
// path is empty. Returns the default config (not an error) if the file
// doesn't exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Groups == nil {
		cfg.Groups = make(map[string]string)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks driver names and window sizes.
func (c *Config) Validate() error {
	for name, d := range map[string]DriverConfig{"group_driver": c.GroupDriver, "task_driver": c.TaskDriver} {
		switch d.Driver {
		case DriverInsights, DriverStreams:
		default:
			return fmt.Errorf("%s: unknown driver %q (want %s or %s)", name, d.Driver, DriverInsights, DriverStreams)
		}
		if d.Window <= 0 {
			return fmt.Errorf("%s: window must be positive", name)
		}
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// ResolveGroup expands an @alias into its log group name. Other names are
// returned unchanged.
func (c *Config) ResolveGroup(name string) (string, bool) {
	if !strings.HasPrefix(name, "@") {
		return name, true
	}
	group, ok := c.Groups[name[1:]]
	return group, ok
}

// Aliases returns the configured alias names, each prefixed with @.
func (c *Config) Aliases() []string {
	aliases := make([]string, 0, len(c.Groups))
	for k := range c.Groups {
		aliases = append(aliases, "@"+k)
	}
	return aliases
}

// TaskGroup returns the log group holding a task's logs.
func (c *Config) TaskGroup(task string) string {
	prefix := c.TaskGroupPrefix
	if prefix == "" {
		prefix = DefaultTaskGroupPrefix
	}
	return prefix + task
}

// SaveConfig saves the configuration to ConfigPath().
func SaveConfig(cfg *Config) error {
	path := ConfigPath()
	if path == "" {
		return os.ErrNotExist
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

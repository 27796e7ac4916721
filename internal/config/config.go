// Package config loads the YAML task file describing a huectl run: how to
// reach the bridge, how to log, and the parameters of the one operation
// being performed.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jimi-c/hue/internal/reconcile"
	"github.com/jimi-c/hue/internal/reconcile/group"
)

// Config is the full task file.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Log      LogConfig      `yaml:"log"`
	State    StateConfig    `yaml:"state"`
	Group    GroupConfig    `yaml:"group"`
	Scan     ScanConfig     `yaml:"scan"`
	Register RegisterConfig `yaml:"register"`
}

// BridgeConfig contains bridge connection settings.
type BridgeConfig struct {
	Address      string   `yaml:"address"`
	Token        string   `yaml:"token"`          // overrides the host-derived token
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout per request
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // bridge API rate limit
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// StateConfig holds the parameters of the state operation. Optional
// fields are pointers so that only what the task file sets is sent.
type StateConfig struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	On             *bool     `yaml:"on"`
	Brightness     *uint8    `yaml:"brightness"`
	Hue            *uint16   `yaml:"hue"`
	Saturation     *uint8    `yaml:"saturation"`
	XY             []float64 `yaml:"xy"`
	ColorTemp      *uint16   `yaml:"color_temp"`
	RGB            *string   `yaml:"rgb"`
	Alert          *string   `yaml:"alert"`
	Effect         *string   `yaml:"effect"`
	TransitionTime *uint16   `yaml:"transition_time"`
}

// Ref returns the target reference the task addresses.
func (s *StateConfig) Ref() reconcile.Ref {
	return reconcile.Ref{ID: s.ID, Name: s.Name}
}

// Params converts the section into reconciliation parameters.
func (s *StateConfig) Params() reconcile.Params {
	return reconcile.Params{
		On:             s.On,
		Brightness:     s.Brightness,
		Hue:            s.Hue,
		Saturation:     s.Saturation,
		XY:             s.XY,
		ColorTemp:      s.ColorTemp,
		RGB:            s.RGB,
		Alert:          s.Alert,
		Effect:         s.Effect,
		TransitionTime: s.TransitionTime,
	}
}

// GroupConfig holds the parameters of the group operation.
type GroupConfig struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	State  string   `yaml:"state"`
	Lights []string `yaml:"lights"`
	Type   string   `yaml:"group_type"`
	Class  string   `yaml:"group_class"`
}

// Params converts the section into group reconciliation parameters.
func (g *GroupConfig) Params() group.Params {
	return group.Params{
		ID:     g.ID,
		Name:   g.Name,
		State:  group.State(g.State),
		Lights: g.Lights,
		Type:   g.Type,
		Class:  g.Class,
	}
}

// ScanConfig holds the parameters of the scan operation.
type ScanConfig struct {
	SerialNumbers []string `yaml:"serial_numbers"`
	Timeout       Duration `yaml:"timeout"`
}

// RegisterConfig holds the parameters of the register operation.
type RegisterConfig struct {
	Retries   int      `yaml:"retries"`
	RetryTime Duration `yaml:"retry_time"`
}

// GetLevel returns the log level with default.
func (l *LogConfig) GetLevel() string {
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the task file, applying defaults after unmarshal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if cfg.Bridge.Address == "" {
		return nil, fmt.Errorf("bridge.address is required")
	}

	// Bridge defaults
	if cfg.Bridge.Timeout == 0 {
		cfg.Bridge.Timeout = Duration(5 * time.Second)
	}
	if cfg.Bridge.RateLimitRPS == 0 {
		cfg.Bridge.RateLimitRPS = 10.0
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Group defaults match what the bridge assumes on create
	if cfg.Group.State == "" {
		cfg.Group.State = string(group.StatePresent)
	}
	if cfg.Group.Type == "" {
		cfg.Group.Type = "LightGroup"
	}
	if cfg.Group.Class == "" {
		cfg.Group.Class = "Other"
	}

	if cfg.Scan.Timeout == 0 {
		cfg.Scan.Timeout = Duration(120 * time.Second)
	}

	if cfg.Register.Retries == 0 {
		cfg.Register.Retries = 6
	}
	if cfg.Register.RetryTime == 0 {
		cfg.Register.RetryTime = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}

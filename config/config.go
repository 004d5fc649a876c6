package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Config represents the complete backtest run configuration.
type Config struct {
	Capital    float64  `json:"capital" yaml:"capital"`
	StartDate  string   `json:"start_date" yaml:"start_date"` // inclusive, YYYY-MM-DD
	EndDate    string   `json:"end_date" yaml:"end_date"`     // inclusive, YYYY-MM-DD
	Threshold  float64  `json:"threshold" yaml:"threshold"`
	Allocation float64  `json:"allocation_per_trade_pct" yaml:"allocation_per_trade_pct"`
	Pairs      []string `json:"pairs,omitempty" yaml:"pairs,omitempty"` // empty = all merged data

	EntryDay string `json:"entry_day,omitempty" yaml:"entry_day,omitempty"` // default Monday
	ExitDay  string `json:"exit_day,omitempty" yaml:"exit_day,omitempty"`   // default Friday

	DataDir   string `json:"data_dir" yaml:"data_dir"`
	ModelsDir string `json:"models_dir" yaml:"models_dir"`

	Journal  JournalConfig `json:"journal" yaml:"journal"`
	ONNXLib  string        `json:"onnx_lib,omitempty" yaml:"onnx_lib,omitempty"`
	LogLevel string        `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// JournalConfig controls where run output lands.
type JournalConfig struct {
	OutDir string `json:"out_dir,omitempty" yaml:"out_dir,omitempty"` // trade-log CSV directory
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"` // optional SQLite history
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content; YAML is tried first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every knob before any state is built.
func (c *Config) Validate() error {
	if c.Capital <= 0 {
		return fmt.Errorf("capital must be positive")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1]")
	}
	if c.Allocation <= 0 || c.Allocation > 1 {
		return fmt.Errorf("allocation_per_trade_pct must be in (0,1]")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	start, err := c.Start()
	if err != nil {
		return err
	}
	end, err := c.End()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", c.EndDate, c.StartDate)
	}

	if _, err := c.Entry(); err != nil {
		return err
	}
	if _, err := c.Exit(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Start() (time.Time, error) { return parseDate("start_date", c.StartDate) }
func (c *Config) End() (time.Time, error)   { return parseDate("end_date", c.EndDate) }

func (c *Config) Entry() (time.Weekday, error) { return parseWeekday("entry_day", c.EntryDay, time.Monday) }
func (c *Config) Exit() (time.Weekday, error)  { return parseWeekday("exit_day", c.ExitDay, time.Friday) }

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required (YYYY-MM-DD)", field)
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s %q: %w", field, raw, err)
	}
	return t.UTC(), nil
}

func parseWeekday(field, raw string, def time.Weekday) (time.Weekday, error) {
	if raw == "" {
		return def, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(raw, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("bad %s %q (want a weekday name)", field, raw)
}

// Default returns a configuration with sensible defaults; dates must still
// be supplied by the caller.
func Default() *Config {
	return &Config{
		Capital:    10_000,
		Threshold:  0.5,
		Allocation: 0.1,
		DataDir:    "data/processed",
		ModelsDir:  "data/models",
		Journal: JournalConfig{
			OutDir: "data/backtest_results",
		},
		LogLevel: "info",
	}
}

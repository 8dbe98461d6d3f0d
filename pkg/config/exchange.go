package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExchangeSource describes one rate publisher and how it is polled
type ExchangeSource struct {
	Key         string            `yaml:"key"`
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Fetcher     string            `yaml:"fetcher"`
	Pairs       []string          `yaml:"pairs"`
	Calculators map[string]string `yaml:"calculators"`
	Schedule    Schedule          `yaml:"schedule"`
	// Options are handed to the fetcher through the source metadata
	Options map[string]interface{} `yaml:"options"`
}

// Schedule is the polling policy of a source
type Schedule struct {
	Interval         time.Duration `yaml:"interval"`
	FallbackInterval time.Duration `yaml:"fallback_interval"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	Window           *Window       `yaml:"window"`
}

// Window restricts regular polling to part of the day
type Window struct {
	Start    string   `yaml:"start"`
	End      string   `yaml:"end"`
	Timezone string   `yaml:"timezone"`
	Weekdays []string `yaml:"weekdays"`
}

// ExchangeConfig holds every configured source
type ExchangeConfig struct {
	DefaultCalculator string           `yaml:"default_calculator"`
	Sources           []ExchangeSource `yaml:"sources"`

	byKey map[string]*ExchangeSource
}

// LoadExchangeConfig loads exchange source configuration from a YAML file
func LoadExchangeConfig(path string) (*ExchangeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange config file: %w", err)
	}
	return ParseExchangeConfig(data)
}

// ParseExchangeConfig parses and validates exchange configuration
func ParseExchangeConfig(data []byte) (*ExchangeConfig, error) {
	var config ExchangeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse exchange config: %w", err)
	}

	config.byKey = make(map[string]*ExchangeSource, len(config.Sources))
	for i := range config.Sources {
		source := &config.Sources[i]
		config.byKey[source.Key] = source
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the exchange configuration
func (c *ExchangeConfig) Validate() error {
	seen := make(map[string]bool)
	for _, source := range c.Sources {
		if source.Key == "" {
			return fmt.Errorf("source key is required")
		}
		if seen[source.Key] {
			return fmt.Errorf("duplicate source key: %s", source.Key)
		}
		seen[source.Key] = true

		if source.Fetcher == "" {
			return fmt.Errorf("fetcher is required for source %s", source.Key)
		}
		if len(source.Pairs) == 0 {
			return fmt.Errorf("at least one pair is required for source %s", source.Key)
		}
		for _, pair := range source.Pairs {
			parts := strings.Split(pair, "/")
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return fmt.Errorf("invalid pair %q for source %s", pair, source.Key)
			}
		}
		if err := source.Schedule.validate(); err != nil {
			return fmt.Errorf("schedule of source %s: %w", source.Key, err)
		}
	}

	return nil
}

func (s Schedule) validate() error {
	if s.Interval < 0 || s.FallbackInterval < 0 || s.RunTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if s.Window == nil {
		return nil
	}
	if s.Interval == 0 {
		return fmt.Errorf("window requires an interval")
	}
	_, err := s.Window.Resolve()
	return err
}

// Source returns a source by key
func (c *ExchangeConfig) Source(key string) (*ExchangeSource, bool) {
	source, ok := c.byKey[key]
	return source, ok
}

// Fetchers maps each source key to its fetcher name
func (c *ExchangeConfig) Fetchers() map[string]string {
	out := make(map[string]string, len(c.Sources))
	for _, source := range c.Sources {
		out[source.Key] = source.Fetcher
	}
	return out
}

// CalculatorNames maps source key to pair key to calculator name
func (c *ExchangeConfig) CalculatorNames() map[string]map[string]string {
	out := make(map[string]map[string]string, len(c.Sources))
	for _, source := range c.Sources {
		if len(source.Calculators) == 0 {
			continue
		}
		byPair := make(map[string]string, len(source.Calculators))
		for pair, name := range source.Calculators {
			byPair[strings.ToUpper(pair)] = name
		}
		out[source.Key] = byPair
	}
	return out
}

// ResolvedWindow is a parsed polling window
type ResolvedWindow struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
	Weekdays map[time.Weekday]bool
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Resolve parses the window's clock times, timezone and weekdays
func (w *Window) Resolve() (*ResolvedWindow, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("window end must be after start")
	}

	loc := time.UTC
	if w.Timezone != "" {
		loc, err = time.LoadLocation(w.Timezone)
		if err != nil {
			return nil, fmt.Errorf("window timezone: %w", err)
		}
	}

	var days map[time.Weekday]bool
	if len(w.Weekdays) > 0 {
		days = make(map[time.Weekday]bool, len(w.Weekdays))
		for _, name := range w.Weekdays {
			day, ok := weekdayNames[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("unknown weekday %q", name)
			}
			days[day] = true
		}
	}

	return &ResolvedWindow{Start: start, End: end, Location: loc, Weekdays: days}, nil
}

// Contains reports whether t falls inside the window
func (w *ResolvedWindow) Contains(t time.Time) bool {
	local := t.In(w.Location)
	if w.Weekdays != nil && !w.Weekdays[local.Weekday()] {
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.Location)
	offset := local.Sub(midnight)
	return offset >= w.Start && offset < w.End
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// NextStart returns the first window opening strictly after t
func (w *ResolvedWindow) NextStart(t time.Time) time.Time {
	local := t.In(w.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.Location)
	for day := 0; day <= 7; day++ {
		date := midnight.AddDate(0, 0, day)
		if w.Weekdays != nil && !w.Weekdays[date.Weekday()] {
			continue
		}
		start := date.Add(w.Start)
		if start.After(t) {
			return start
		}
	}
	return midnight.AddDate(0, 0, 8).Add(w.Start)
}

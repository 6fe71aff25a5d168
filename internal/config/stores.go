package config

import (
	"fmt"
	"os"
	"time"

	"bakehouse/internal/pickup"
	"gopkg.in/yaml.v3"
)

// StoreConfig represents a single store in stores.yaml.
type StoreConfig struct {
	ID       int                `yaml:"id"`
	Slug     string             `yaml:"slug"`
	Name     string             `yaml:"name"`
	Address  string             `yaml:"address"`
	Phone    string             `yaml:"phone"`
	IsActive bool               `yaml:"is_active"`
	Hours    *WeeklyHoursConfig `yaml:"hours,omitempty"`
}

// WeeklyHoursConfig is the default opening window plus the weekly days off.
type WeeklyHoursConfig struct {
	StartTime string `yaml:"start_time"` // "08:00"
	EndTime   string `yaml:"end_time"`   // "18:00"
	DaysOff   []int  `yaml:"days_off"`   // 1=Mon, 7=Sun
}

// HolidayConfig represents a holiday closing every store.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"`
}

// StoreDefaults applies to stores without their own hours.
type StoreDefaults struct {
	Hours *WeeklyHoursConfig `yaml:"hours"`
}

// StoresConfig is the root configuration for stores.yaml.
type StoresConfig struct {
	Stores   []StoreConfig   `yaml:"stores"`
	Defaults StoreDefaults   `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadStoresConfig loads and validates stores configuration from YAML file.
func LoadStoresConfig(path string) (*StoresConfig, error) {
	if path == "" {
		path = "configs/stores.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stores config: %w", err)
	}

	var cfg StoresConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse stores config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate stores config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *StoresConfig) Validate() error {
	if len(c.Stores) == 0 {
		return fmt.Errorf("no stores defined")
	}

	ids := make(map[int]bool)
	slugs := make(map[string]bool)

	for i, s := range c.Stores {
		if s.ID <= 0 {
			return fmt.Errorf("store[%d]: id must be positive, got %d", i, s.ID)
		}
		if ids[s.ID] {
			return fmt.Errorf("store[%d]: duplicate id %d", i, s.ID)
		}
		ids[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("store[%d]: name is required", i)
		}
		if s.Slug == "" {
			return fmt.Errorf("store[%d]: slug is required", i)
		}
		if slugs[s.Slug] {
			return fmt.Errorf("store[%d]: duplicate slug '%s'", i, s.Slug)
		}
		slugs[s.Slug] = true

		if s.Hours != nil {
			if err := validateHours(s.Hours, fmt.Sprintf("store[%d].hours", i)); err != nil {
				return err
			}
		}
	}

	if c.Defaults.Hours != nil {
		if err := validateHours(c.Defaults.Hours, "defaults.hours"); err != nil {
			return err
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(pickup.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func validateHours(h *WeeklyHoursConfig, prefix string) error {
	if h.StartTime == "" {
		return fmt.Errorf("%s.start_time is required", prefix)
	}
	if h.EndTime == "" {
		return fmt.Errorf("%s.end_time is required", prefix)
	}
	start, err := pickup.ParseClock(h.StartTime)
	if err != nil {
		return fmt.Errorf("%s.start_time: invalid format '%s', expected HH:MM", prefix, h.StartTime)
	}
	end, err := pickup.ParseClock(h.EndTime)
	if err != nil {
		return fmt.Errorf("%s.end_time: invalid format '%s', expected HH:MM", prefix, h.EndTime)
	}
	if end <= start {
		return fmt.Errorf("%s: end_time must be after start_time", prefix)
	}
	for i, d := range h.DaysOff {
		if _, err := pickup.WeekdayFromNumber(d); err != nil {
			return fmt.Errorf("%s.days_off[%d]: %w", prefix, i, err)
		}
	}
	return nil
}

// applyDefaults applies default hours to stores without explicit configuration.
func (c *StoresConfig) applyDefaults() {
	for i := range c.Stores {
		if c.Stores[i].Hours == nil && c.Defaults.Hours != nil {
			c.Stores[i].Hours = c.Defaults.Hours
		}
	}
}

// GetStoreByID returns store config by ID.
func (c *StoresConfig) GetStoreByID(id int) *StoreConfig {
	for i := range c.Stores {
		if c.Stores[i].ID == id {
			return &c.Stores[i]
		}
	}
	return nil
}

// IsDayOff reports whether day (1=Mon..7=Sun) is a weekly day off in h.
func (h *WeeklyHoursConfig) IsDayOff(day int) bool {
	for _, d := range h.DaysOff {
		if d == day {
			return true
		}
	}
	return false
}

// String returns a summary of the configuration.
func (c *StoresConfig) String() string {
	active := 0
	for _, s := range c.Stores {
		if s.IsActive {
			active++
		}
	}
	return fmt.Sprintf("StoresConfig: %d stores (%d active), %d holidays",
		len(c.Stores), active, len(c.Holidays))
}

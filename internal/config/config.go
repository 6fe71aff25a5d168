package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"bakehouse/internal/pickup"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Address             string   `yaml:"address"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		TrustedProxies      []string `yaml:"trusted_proxies"` // CIDRs or addresses
	} `yaml:"http"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		CartTTLHours   int    `yaml:"cart_ttl_hours"`
		IdempotencyTTL int    `yaml:"idempotency_ttl_minutes"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		Debug    bool    `yaml:"debug"`
		StaffIDs []int64 `yaml:"staff_chat_ids"`
	} `yaml:"telegram"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Pickup struct {
		Cutoff          string `yaml:"cutoff"`            // "15:00"
		HorizonDays     int    `yaml:"horizon_days"`      // 60
		SlotStepMinutes int    `yaml:"slot_step_minutes"` // 15
		Timezone        string `yaml:"timezone"`          // "Europe/Berlin"
	} `yaml:"pickup"`

	RateLimit struct {
		CheckoutPerMinute int `yaml:"checkout_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Reports struct {
		Monthly bool `yaml:"monthly"`
	} `yaml:"reports"`

	StoresPath  string   `yaml:"stores_path"`
	AdminTokens []string `yaml:"admin_tokens"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/bakehouse.db"
	}
	if cfg.StoresPath == "" {
		cfg.StoresPath = "configs/stores.yaml"
	}
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise only fail at first use.
func (c *Config) Validate() error {
	if c.Pickup.Cutoff != "" {
		if _, err := pickup.ParseCutoff(c.Pickup.Cutoff); err != nil {
			return fmt.Errorf("pickup.cutoff: %w", err)
		}
	}
	if c.Pickup.Timezone != "" {
		if _, err := time.LoadLocation(c.Pickup.Timezone); err != nil {
			return fmt.Errorf("pickup.timezone: %w", err)
		}
	}
	if c.Pickup.HorizonDays < 0 {
		return fmt.Errorf("pickup.horizon_days cannot be negative")
	}
	if _, err := parseProxies(c.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("http.trusted_proxies: %w", err)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	return nil
}

func (c *Config) PickupCutoff() pickup.Cutoff {
	cut, err := pickup.ParseCutoff(c.Pickup.Cutoff)
	if err != nil {
		return pickup.DefaultCutoff
	}
	return cut
}

func (c *Config) PickupHorizon() int {
	if c.Pickup.HorizonDays <= 0 {
		return pickup.DefaultHorizon
	}
	return c.Pickup.HorizonDays
}

func (c *Config) PickupSlotStep() time.Duration {
	return pickup.ParseStep(c.Pickup.SlotStepMinutes)
}

func (c *Config) PickupLocation() *time.Location {
	if c.Pickup.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Pickup.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TrustedProxies returns the proxies whose forwarding headers name the client.
func (c *Config) TrustedProxies() []netip.Prefix {
	out, _ := parseProxies(c.HTTP.TrustedProxies)
	return out
}

func parseProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if p, err := netip.ParsePrefix(v); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q", v)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

func (c *Config) CartTTL() time.Duration {
	if c.Redis.CartTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.Redis.CartTTLHours) * time.Hour
}

func (c *Config) IdempotencyTTL() time.Duration {
	if c.Redis.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.IdempotencyTTL) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) ReadTimeout() time.Duration {
	if c.HTTP.ReadTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTP.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.HTTP.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.HTTP.WriteTimeoutSeconds) * time.Second
}

// CheckoutRate returns the per-client submit rate in events per second and the burst size.
func (c *Config) CheckoutRate() (float64, int) {
	perMinute := c.RateLimit.CheckoutPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := c.RateLimit.Burst
	if burst <= 0 {
		burst = 3
	}
	return float64(perMinute) / 60, burst
}

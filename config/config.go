package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	ERP        ERPConfig        `yaml:"erp"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Board      BoardConfig      `yaml:"board"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port             int     `yaml:"port"`
	OperatorPasscode string  `yaml:"operator_passcode"`
	RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds  int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ERPConfig holds the upstream ERP datasource API configuration.
type ERPConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// Datasource IDs are deployment-specific; the defaults match the
	// production Plex tenant this service was written against.
	ContainerBySerialID  int `yaml:"container_by_serial_id"`
	ContainersByPartID   int `yaml:"containers_by_part_id"`
	ContainersByMasterID int `yaml:"containers_by_master_id"`
	MasterUnitLookupID   int `yaml:"master_unit_lookup_id"`
	ProdLocationsID      int `yaml:"prod_locations_id"`
}

// CleanupConfig holds the automated cleanup configuration.
type CleanupConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	SafetyLimit     int           `yaml:"safety_limit"`
	RetentionDays   int           `yaml:"retention_days"`
	Timezone        string        `yaml:"timezone"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// BoardConfig holds the settings for the live board client.
type BoardConfig struct {
	BaseURL             string        `yaml:"base_url"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
	Passcode            string        `yaml:"passcode"`
	MirrorFile          string        `yaml:"mirror_file"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Server.OperatorPasscode == "" {
		log.Printf("server.operator_passcode is not set; pick-up completion and history clearing are unprotected")
	}

	if cfg.ERP.TimeoutSeconds <= 0 {
		cfg.ERP.TimeoutSeconds = 30
	}
	if cfg.ERP.ContainerBySerialID <= 0 {
		cfg.ERP.ContainerBySerialID = 4619
	}
	if cfg.ERP.ContainersByPartID <= 0 {
		cfg.ERP.ContainersByPartID = 8566
	}
	if cfg.ERP.ContainersByMasterID <= 0 {
		cfg.ERP.ContainersByMasterID = 4390
	}
	if cfg.ERP.MasterUnitLookupID <= 0 {
		cfg.ERP.MasterUnitLookupID = 233972
	}
	if cfg.ERP.ProdLocationsID <= 0 {
		cfg.ERP.ProdLocationsID = 18120
	}

	if cfg.Cleanup.IntervalSeconds <= 0 {
		cfg.Cleanup.IntervalSeconds = 60
	}
	cfg.Cleanup.Interval = time.Duration(cfg.Cleanup.IntervalSeconds) * time.Second
	if cfg.Cleanup.SafetyLimit <= 0 {
		cfg.Cleanup.SafetyLimit = 10
	}
	if cfg.Cleanup.RetentionDays <= 0 {
		cfg.Cleanup.RetentionDays = 30
	}
	if cfg.Cleanup.Timezone == "" {
		cfg.Cleanup.Timezone = "Europe/Prague"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Board.PollIntervalSeconds <= 0 {
		cfg.Board.PollIntervalSeconds = 5
	}
	cfg.Board.PollInterval = time.Duration(cfg.Board.PollIntervalSeconds) * time.Second
}

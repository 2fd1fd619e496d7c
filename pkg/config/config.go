package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	defaultTTL           = 5 * time.Minute
	defaultSweepInterval = time.Minute
	defaultMaxUpload     = 10 * 1024 * 1024
	defaultGreeting      = "Connected to 5mChat!"
	defaultPort          = 8000
)

// Config is the main configuration struct, loaded from YAML with
// environment overrides.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Chat     ChatConfig     `yaml:"chat"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig holds the pebble path and attachment settings.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	UploadDir     string `yaml:"upload_dir"`
	MaxUploadSize string `yaml:"max_upload_size"` // humanized, e.g. "10MB"
}

// ChatConfig holds the ephemerality knobs.
type ChatConfig struct {
	TTL           string `yaml:"ttl"`            // message lifetime, default 5m
	SweepInterval string `yaml:"sweep_interval"` // cleanup cadence, default 1m
	SweepCron     string `yaml:"sweep_cron"`     // optional cron; overrides the interval
	Greeting      string `yaml:"greeting"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config at path (missing file is not an error; defaults
// apply) and applies M5CHAT_* environment overrides on top.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, uerr)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("M5CHAT_ADDR"); v != "" {
		c.Server.Address = v
		c.Server.Port = 0
	}
	if v := os.Getenv("M5CHAT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("M5CHAT_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("M5CHAT_UPLOAD_DIR"); v != "" {
		c.Storage.UploadDir = v
	}
	if v := os.Getenv("M5CHAT_MAX_UPLOAD_SIZE"); v != "" {
		c.Storage.MaxUploadSize = v
	}
	if v := os.Getenv("M5CHAT_TTL"); v != "" {
		c.Chat.TTL = v
	}
	if v := os.Getenv("M5CHAT_SWEEP_INTERVAL"); v != "" {
		c.Chat.SweepInterval = v
	}
	if v := os.Getenv("M5CHAT_SWEEP_CRON"); v != "" {
		c.Chat.SweepCron = v
	}
	if v := os.Getenv("M5CHAT_GREETING"); v != "" {
		c.Chat.Greeting = v
	}
	if v := os.Getenv("M5CHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if c.Chat.TTL != "" {
		if _, err := time.ParseDuration(c.Chat.TTL); err != nil {
			return fmt.Errorf("invalid chat.ttl %q: %w", c.Chat.TTL, err)
		}
	}
	if c.Chat.SweepInterval != "" {
		if _, err := time.ParseDuration(c.Chat.SweepInterval); err != nil {
			return fmt.Errorf("invalid chat.sweep_interval %q: %w", c.Chat.SweepInterval, err)
		}
	}
	if c.Storage.MaxUploadSize != "" {
		if _, err := humanize.ParseBytes(c.Storage.MaxUploadSize); err != nil {
			return fmt.Errorf("invalid storage.max_upload_size %q: %w", c.Storage.MaxUploadSize, err)
		}
	}
	return nil
}

// Addr returns the listen address, combining address and port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	port := c.Server.Port
	if addr != "" && port == 0 {
		return addr
	}
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// TTL returns the configured message lifetime (default 5 minutes).
func (c *Config) TTL() time.Duration {
	if c.Chat.TTL == "" {
		return defaultTTL
	}
	d, _ := time.ParseDuration(c.Chat.TTL)
	return d
}

// SweepInterval returns the cleanup cadence (default 1 minute). Ignored when
// chat.sweep_cron is set.
func (c *Config) SweepInterval() time.Duration {
	if c.Chat.SweepInterval == "" {
		return defaultSweepInterval
	}
	d, _ := time.ParseDuration(c.Chat.SweepInterval)
	return d
}

// MaxUploadBytes returns the attachment size limit (default 10MB).
func (c *Config) MaxUploadBytes() int64 {
	if c.Storage.MaxUploadSize == "" {
		return defaultMaxUpload
	}
	n, _ := humanize.ParseBytes(c.Storage.MaxUploadSize)
	return int64(n)
}

// DBPath returns the pebble path (default ./.database).
func (c *Config) DBPath() string {
	if c.Storage.DBPath == "" {
		return "./.database"
	}
	return c.Storage.DBPath
}

// UploadDir returns the attachment directory (default ./uploads).
func (c *Config) UploadDir() string {
	if c.Storage.UploadDir == "" {
		return "./uploads"
	}
	return c.Storage.UploadDir
}

// Greeting returns the text sent in the connected event.
func (c *Config) Greeting() string {
	if c.Chat.Greeting == "" {
		return defaultGreeting
	}
	return c.Chat.Greeting
}

// ParseCommandFlags parses command-line flags and reports which were
// explicitly set so they can win over file and env values.
func ParseCommandFlags() (addr, db, cfgPath string, set map[string]bool) {
	addrPtr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPtr := flag.String("db", "", "Pebble DB path (overrides config)")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, set
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WebSocket pump timings.
const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
)

// Store and notifier drivers.
const (
	StorePebble   = "pebble"
	StorePostgres = "postgres"

	NotifierLocal = "local"
	NotifierNats  = "nats"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Store struct {
		Driver      string `yaml:"driver"`
		PebblePath  string `yaml:"pebble_path"`
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"store"`
	Notifier struct {
		Driver        string `yaml:"driver"`
		NatsURL       string `yaml:"nats_url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"notifier"`
	Chat struct {
		StrictClassify     bool `yaml:"strict_classify"`
		SubscriptionBuffer int  `yaml:"subscription_buffer"`
	} `yaml:"chat"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Media struct {
		CloudinaryURL string `yaml:"cloudinary_url"`
		Folder        string `yaml:"folder"`
	} `yaml:"media"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{}
	c.Server.Addr = ":8080"
	c.Store.Driver = StorePebble
	c.Store.PebblePath = "data/chats"
	c.Notifier.Driver = NotifierLocal
	c.Notifier.NatsURL = "nats://127.0.0.1:4222"
	c.Notifier.StreamName = "CHATS"
	c.Notifier.SubjectPrefix = "chats"
	c.Chat.SubscriptionBuffer = 256
	c.Media.Folder = "pairchat_profiles"
	c.Logging.Level = "info"
	return c
}

// Load merges defaults, the optional YAML file named by CONFIG_FILE, and
// environment variables (a .env file in the working directory is read
// first when present). Environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	c := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.mergeEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	envString("SERVER_ADDR", &c.Server.Addr)
	envString("STORE_DRIVER", &c.Store.Driver)
	envString("PEBBLE_PATH", &c.Store.PebblePath)
	envString("DATABASE_URL", &c.Store.DatabaseURL)
	envString("NOTIFIER_DRIVER", &c.Notifier.Driver)
	envString("NATS_URL", &c.Notifier.NatsURL)
	envString("NATS_STREAM", &c.Notifier.StreamName)
	envString("NATS_SUBJECT_PREFIX", &c.Notifier.SubjectPrefix)
	envString("JWT_SECRET", &c.Auth.JWTSecret)
	envString("CLOUDINARY_URL", &c.Media.CloudinaryURL)
	envString("MEDIA_FOLDER", &c.Media.Folder)
	envString("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("CHAT_STRICT_CLASSIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_STRICT_CLASSIFY %q: %w", v, err)
		}
		c.Chat.StrictClassify = b
	}
	if v := os.Getenv("CHAT_SUBSCRIPTION_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_SUBSCRIPTION_BUFFER %q: %w", v, err)
		}
		c.Chat.SubscriptionBuffer = n
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StorePebble:
		if c.Store.PebblePath == "" {
			return fmt.Errorf("store.pebble_path is required for the pebble driver")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Notifier.Driver {
	case NotifierLocal, NotifierNats:
	default:
		return fmt.Errorf("unknown notifier driver %q", c.Notifier.Driver)
	}
	if c.Chat.SubscriptionBuffer <= 0 {
		return fmt.Errorf("chat.subscription_buffer must be positive, got %d", c.Chat.SubscriptionBuffer)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

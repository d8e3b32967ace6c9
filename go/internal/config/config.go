package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Store backends selectable with STORE_BACKEND
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
)

// Config is the server configuration. Values come from built-in defaults,
// then the optional YAML file named by ROOMBOARD_CONFIG, then the environment.
type Config struct {
	Port     string
	LogLevel zerolog.Level

	Store StoreConfig
	Auth  AuthConfig
	Board BoardConfig

	// StatusPresets are created in every new section
	StatusPresets []StatusPreset
}

type StoreConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	NATSURL       string
	NATSBucket    string
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type BoardConfig struct {
	TickInterval time.Duration
	WriteTimeout time.Duration
}

// StatusPreset is a status template seeded into new sections
type StatusPreset struct {
	Name       string `yaml:"name"`
	TimerType  string `yaml:"timer_type"`
	TargetTime int64  `yaml:"target_time"`
	Color      string `yaml:"color"`
}

// fileConfig is the YAML layout
type fileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Store    struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		NATS struct {
			URL    string `yaml:"url"`
			Bucket string `yaml:"bucket"`
		} `yaml:"nats"`
	} `yaml:"store"`
	Auth struct {
		TokenTTL   string `yaml:"token_ttl"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Board struct {
		TickInterval string `yaml:"tick_interval"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"board"`
	StatusPresets []StatusPreset `yaml:"status_presets"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Port:     "8080",
		LogLevel: zerolog.InfoLevel,
		Store: StoreConfig{
			Backend:     BackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "roomboard",
			NATSURL:     "nats://localhost:4222",
			NATSBucket:  "ROOMBOARD",
		},
		Auth: AuthConfig{
			TokenTTL:   12 * time.Hour,
			BcryptCost: 10,
		},
		Board: BoardConfig{
			TickInterval: time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Load reads .env (if present), the YAML file and the environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path := os.Getenv("ROOMBOARD_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that have no safe default
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendNATS, BackendPostgres:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Board.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	setString(&c.Port, file.Port)
	if file.LogLevel != "" {
		level, err := zerolog.ParseLevel(file.LogLevel)
		if err != nil {
			return fmt.Errorf("config log_level: %w", err)
		}
		c.LogLevel = level
	}
	setString(&c.Store.Backend, file.Store.Backend)
	setString(&c.Store.RedisAddr, file.Store.Redis.Addr)
	setString(&c.Store.RedisPrefix, file.Store.Redis.Prefix)
	if file.Store.Redis.DB != 0 {
		c.Store.RedisDB = file.Store.Redis.DB
	}
	setString(&c.Store.NATSURL, file.Store.NATS.URL)
	setString(&c.Store.NATSBucket, file.Store.NATS.Bucket)
	if file.Auth.BcryptCost != 0 {
		c.Auth.BcryptCost = file.Auth.BcryptCost
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", file.Auth.TokenTTL, &c.Auth.TokenTTL},
		{"board.tick_interval", file.Board.TickInterval, &c.Board.TickInterval},
		{"board.write_timeout", file.Board.WriteTimeout, &c.Board.WriteTimeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}
	if file.StatusPresets != nil {
		c.StatusPresets = file.StatusPresets
	}

	log.Info().Str("path", path).Int("status_presets", len(c.StatusPresets)).Msg("loaded config file")
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getEnv("PORT", c.Port)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		c.LogLevel = level
	}

	c.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", c.Store.Backend))
	c.Store.RedisAddr = getEnv("REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = getEnv("REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = getEnvAsInt("REDIS_DB", c.Store.RedisDB)
	c.Store.RedisPrefix = getEnv("REDIS_PREFIX", c.Store.RedisPrefix)
	c.Store.NATSURL = getEnv("NATS_URL", c.Store.NATSURL)
	c.Store.NATSBucket = getEnv("NATS_BUCKET", c.Store.NATSBucket)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.BcryptCost = getEnvAsInt("BCRYPT_COST", c.Auth.BcryptCost)

	var err error
	if c.Auth.TokenTTL, err = getEnvAsDuration("TOKEN_TTL", c.Auth.TokenTTL); err != nil {
		return err
	}
	if c.Board.TickInterval, err = getEnvAsDuration("TICK_INTERVAL", c.Board.TickInterval); err != nil {
		return err
	}
	if c.Board.WriteTimeout, err = getEnvAsDuration("WRITE_TIMEOUT", c.Board.WriteTimeout); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer setting")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

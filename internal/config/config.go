package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultCORSOrigins = "http://localhost:5173"
	defaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=residence port=5432 sslmode=disable"
)

type Config struct {
	HTTPPort    string `yaml:"http_port"`
	CORSOrigins string `yaml:"cors_origins"`
	JWTSecret   string `yaml:"jwt_secret"`

	StoreDriver string      `yaml:"store_driver"` // memory | file | redis | postgres
	StoreDir    string      `yaml:"store_dir"`
	DatabaseDSN string      `yaml:"database_dsn"`
	Redis       RedisConfig `yaml:"redis"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	CredentialValidityDays int    `yaml:"credential_validity_days"`
	CredentialImageSize    int    `yaml:"credential_image_size"`
	Timezone               string `yaml:"timezone"`
	GuestGraceHours        int    `yaml:"guest_grace_hours"`

	SeedDemoData  bool   `yaml:"seed_demo_data"`
	AdminPassword string `yaml:"admin_password"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig controls publishing of access events to gate hardware.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE,
// then environment variables, which always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		HTTPPort:               "8080",
		CORSOrigins:            defaultCORSOrigins,
		StoreDriver:            "file",
		StoreDir:               "./data",
		DatabaseDSN:            defaultDatabaseDSN,
		Redis:                  RedisConfig{Addr: "localhost:6379"},
		CredentialValidityDays: 30,
		CredentialImageSize:    200,
		Timezone:               "Local",
		GuestGraceHours:        24,
		SeedDemoData:           true,
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "residence-backend",
			Topic:    "compound/access",
		},
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)

	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.StoreDir = getEnv("STORE_DIR", cfg.StoreDir)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.CredentialValidityDays = getEnvInt("CREDENTIAL_VALIDITY_DAYS", cfg.CredentialValidityDays)
	cfg.CredentialImageSize = getEnvInt("CREDENTIAL_IMAGE_SIZE", cfg.CredentialImageSize)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.GuestGraceHours = getEnvInt("GUEST_GRACE_HOURS", cfg.GuestGraceHours)

	cfg.SeedDemoData = getEnvBool("SEED_DEMO_DATA", cfg.SeedDemoData)
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", cfg.AdminPassword)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)
}

func (c *Config) Validate() error {
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	switch c.StoreDriver {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.CredentialValidityDays <= 0 {
		return fmt.Errorf("CREDENTIAL_VALIDITY_DAYS must be positive")
	}
	if c.CredentialImageSize < 64 {
		return fmt.Errorf("CREDENTIAL_IMAGE_SIZE must be at least 64")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Warnings lists settings still on their development defaults.
func (c *Config) Warnings() []string {
	var w []string
	if c.StoreDriver == "postgres" && c.DatabaseDSN == defaultDatabaseDSN {
		w = append(w, "DATABASE_DSN is using the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		w = append(w, "CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production")
	}
	if c.JWTSecret == "" {
		w = append(w, "JWT_SECRET is not set, login is disabled and requests act as the first stored user")
	}
	if c.StoreDriver == "memory" {
		w = append(w, "STORE_DRIVER=memory, records are lost on restart")
	}
	return w
}

func (c *Config) CredentialValidity() time.Duration {
	return time.Duration(c.CredentialValidityDays) * 24 * time.Hour
}

func (c *Config) GuestGrace() time.Duration {
	return time.Duration(c.GuestGraceHours) * time.Hour
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

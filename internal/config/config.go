// Package config loads the login guard configuration from defaults, an optional
// YAML file and LOGINGUARD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: LOGINGUARD_BRUTEFORCE__LOCK_DURATION=30m.
const EnvPrefix = "LOGINGUARD_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/loginguard/config.yaml",
}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	GeoIP      GeoIPConfig      `koanf:"geoip"`
	Rules      RulesConfig      `koanf:"rules"`
	BruteForce BruteForceConfig `koanf:"bruteforce"`
	Ensemble   EnsembleConfig   `koanf:"ensemble"`
	Storage    StorageConfig    `koanf:"storage"`
	Alert      AlertConfig      `koanf:"alert"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// IngestRatePerSecond limits POST /ingest; 0 disables the limiter.
	IngestRatePerSecond float64 `koanf:"ingest_rate_per_second" validate:"gte=0"`
	IngestBurst         int     `koanf:"ingest_burst" validate:"gte=0"`
}

type GeoIPConfig struct {
	CityDBPath string `koanf:"city_db_path"`
	// BreakerMaxFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type RulesConfig struct {
	MaxSpeedKmh       float64 `koanf:"max_speed_kmh" validate:"gt=0"`
	ImpossibleTravel  int     `koanf:"impossible_travel_score" validate:"gte=0"`
	NewDevice         int     `koanf:"new_device_score" validate:"gte=0"`
	NewBrowser        int     `koanf:"new_browser_score" validate:"gte=0"`
	NewCountry        int     `koanf:"new_country_score" validate:"gte=0"`
	UnusualHour       int     `koanf:"unusual_hour_score" validate:"gte=0"`
	UnusualHourBefore int     `koanf:"unusual_hour_before" validate:"gte=0,lte=24"`
	UnusualHourAfter  int     `koanf:"unusual_hour_after" validate:"gte=-1,lte=23"`
}

type BruteForceConfig struct {
	UserWindow    time.Duration `koanf:"user_window" validate:"gt=0"`
	IPWindow      time.Duration `koanf:"ip_window" validate:"gt=0"`
	UserIPWindow  time.Duration `koanf:"user_ip_window" validate:"gt=0"`
	LockDuration  time.Duration `koanf:"lock_duration" validate:"gt=0"`
	UserThreshold int           `koanf:"user_threshold" validate:"gte=1"`
	IPThreshold   int           `koanf:"ip_threshold" validate:"gte=1"`
	// StuffingThreshold is the distinct-users-per-IP count treated as credential stuffing.
	StuffingThreshold int `koanf:"stuffing_threshold" validate:"gte=1"`
	LockThreshold     int `koanf:"lock_threshold" validate:"gte=1"`

	// DistinctUsersMaxPerIP > 0 switches to the bounded distinct-user set.
	DistinctUsersMaxPerIP int           `koanf:"distinct_users_max_per_ip" validate:"gte=0"`
	DistinctUsersTTL      time.Duration `koanf:"distinct_users_ttl" validate:"gte=0"`
}

type EnsembleConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ArtifactDir string  `koanf:"artifact_dir" validate:"required_if=Enabled true"`
	RuleWeight  float64 `koanf:"rule_weight" validate:"gte=0,lte=1"`
	IFWeight    float64 `koanf:"if_weight" validate:"gte=0,lte=1"`
	AEWeight    float64 `koanf:"ae_weight" validate:"gte=0,lte=1"`
}

type StorageConfig struct {
	Backend     string `koanf:"backend" validate:"oneof=file badger postgres"`
	EventsFile  string `koanf:"events_file"`
	ResultsFile string `koanf:"results_file"`
	BadgerDir   string `koanf:"badger_dir"`
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=Backend postgres"`
}

type AlertConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Region    string `koanf:"region" validate:"required_if=Enabled true"`
	Sender    string `koanf:"sender" validate:"required_if=Enabled true,omitempty,email"`
	Recipient string `koanf:"recipient" validate:"required_if=Enabled true,omitempty,email"`
	// Threshold is the rule (or ensemble) score at which a login raises an alert.
	Threshold int `koanf:"threshold" validate:"gte=0,lte=100"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":8000",
			IngestRatePerSecond: 50,
			IngestBurst:         100,
		},
		GeoIP: GeoIPConfig{
			CityDBPath:         "data/GeoLite2-City.mmdb",
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Rules: RulesConfig{
			MaxSpeedKmh:       800,
			ImpossibleTravel:  50,
			NewDevice:         20,
			NewBrowser:        10,
			NewCountry:        30,
			UnusualHour:       15,
			UnusualHourBefore: 5,
			UnusualHourAfter:  23, // never true on a 0-23 clock
		},
		BruteForce: BruteForceConfig{
			UserWindow:        time.Hour,
			IPWindow:          time.Hour,
			UserIPWindow:      30 * time.Minute,
			LockDuration:      15 * time.Minute,
			UserThreshold:     2,
			IPThreshold:       50,
			StuffingThreshold: 20,
			LockThreshold:     70,
		},
		Ensemble: EnsembleConfig{
			Enabled:     false,
			ArtifactDir: "models",
			RuleWeight:  0.5,
			IFWeight:    0.3,
			AEWeight:    0.2,
		},
		Storage: StorageConfig{
			Backend:     "file",
			EventsFile:  "login_events.json",
			ResultsFile: "login_results.json",
			BadgerDir:   "data/badger",
		},
		Alert: AlertConfig{
			Enabled:   false,
			Region:    "us-east-1",
			Threshold: 70,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// applied to the process environment first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LOGINGUARD_BRUTEFORCE__USER_WINDOW -> bruteforce.user_window
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("%s: failed %q constraint (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return err
	}

	sum := c.Ensemble.RuleWeight + c.Ensemble.IFWeight + c.Ensemble.AEWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("ensemble weights must sum to 1.0 (got %.4f)", sum)
	}
	return nil
}

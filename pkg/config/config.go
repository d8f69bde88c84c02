// Package config loads the ingestion worker's configuration from
// environment variables, optionally overlaid by a YAML file, and
// validates it before any component starts.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable knob the worker, dashboard, and seeder
// need. Field tags drive both YAML overlay and struct validation.
type Config struct {
	StoreURI string `yaml:"store_uri" validate:"required"`
	DBName   string `yaml:"db_name"`

	EmbedAPIKey string `yaml:"embed_api_key" validate:"required"`
	EmbedModel  string `yaml:"embed_model"`

	PrimaryURLBase    string        `yaml:"primary_url_base"`
	PrimaryTimeoutSec time.Duration `yaml:"-"`

	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBackoffSec float64       `yaml:"retry_backoff_base"`
	RetryJitterSec  float64       `yaml:"retry_jitter_max"`

	WPrimary         int     `yaml:"w_primary"`
	WSecondary       int     `yaml:"w_secondary"`
	NormalPaceSec    float64 `yaml:"normal_pace_sec"`
	LockStaleMin     int     `yaml:"lock_stale_min"`
	MaxConsecErrors  int     `yaml:"max_consec_errors"`
	GlobalPauseSec   int     `yaml:"global_pause_sec"`

	DeferIntervalMin     int `yaml:"defer_interval_min"`
	UnavailableBudgetDays int `yaml:"unavailable_budget_days"`

	VectorRangeOnly     bool `yaml:"vector_range_only"`
	YearMin             int  `yaml:"year_min"`
	YearMax             int  `yaml:"year_max"`
	VectorIfYearUnknown bool `yaml:"vector_if_year_unknown"`

	SeedPrimaryQueue bool `yaml:"seed_primary_queue"`
}

// Defaults returns a Config populated with the documented defaults.
func Defaults() Config {
	return Config{
		DBName:            "tepantlatia_db",
		EmbedModel:        "text-embedding-3-small",
		PrimaryURLBase:    "",
		PrimaryTimeoutSec: 10 * time.Second,
		RetryAttempts:     3,
		RetryBackoffSec:   1.0,
		RetryJitterSec:    0.6,
		WPrimary:          6,
		WSecondary:        1,
		NormalPaceSec:     0.35,
		LockStaleMin:      30,
		MaxConsecErrors:   5,
		GlobalPauseSec:    1200,
		DeferIntervalMin:  60,
		UnavailableBudgetDays: 3,
		VectorRangeOnly:     false,
		YearMin:             1980,
		YearMax:             2026,
		VectorIfYearUnknown: false,
		SeedPrimaryQueue:    false,
	}
}

// LoadFromEnv builds a Config from the defaults, a YAML file at
// yamlPath (if non-empty and present), then environment variable
// overrides, and finally validates it.
func LoadFromEnv(yamlPath string) (Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Wrap(err, "parse config yaml")
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "read config yaml")
		}
	}

	applyEnvOverrides(&cfg)

	v := validator.New()
	if err := v.Struct(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str(&cfg.StoreURI, "STORE_URI")
	str(&cfg.DBName, "DB_NAME")
	str(&cfg.EmbedAPIKey, "EMBED_API_KEY")
	str(&cfg.EmbedModel, "EMBED_MODEL")
	str(&cfg.PrimaryURLBase, "PRIMARY_URL_BASE")

	if v, ok := envInt("PRIMARY_TIMEOUT_SEC"); ok {
		cfg.PrimaryTimeoutSec = time.Duration(v) * time.Second
	}
	intv(&cfg.RetryAttempts, "RETRY_ATTEMPTS")
	floatv(&cfg.RetryBackoffSec, "RETRY_BACKOFF_BASE")
	floatv(&cfg.RetryJitterSec, "RETRY_JITTER_MAX")
	intv(&cfg.WPrimary, "W_PRIMARY")
	intv(&cfg.WSecondary, "W_SECONDARY")
	floatv(&cfg.NormalPaceSec, "NORMAL_PACE_SEC")
	intv(&cfg.LockStaleMin, "LOCK_STALE_MIN")
	intv(&cfg.MaxConsecErrors, "MAX_CONSEC_ERRORS")
	intv(&cfg.GlobalPauseSec, "GLOBAL_PAUSE_SEC")
	intv(&cfg.DeferIntervalMin, "DEFER_INTERVAL_MIN")
	intv(&cfg.UnavailableBudgetDays, "UNAVAILABLE_BUDGET_DAYS")
	boolv(&cfg.VectorRangeOnly, "VECTOR_RANGE_ONLY")
	intv(&cfg.YearMin, "YEAR_MIN")
	intv(&cfg.YearMax, "YEAR_MAX")
	boolv(&cfg.VectorIfYearUnknown, "VECTOR_IF_YEAR_UNKNOWN")
	boolv(&cfg.SeedPrimaryQueue, "SEED_PRIMARY_QUEUE")
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func intv(dst *int, key string) {
	if v, ok := envInt(key); ok {
		*dst = v
	}
}

func floatv(dst *float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*dst = n
}

func boolv(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.ParseBool(v)
	if err != nil {
		return
	}
	*dst = n
}

// DeferInterval returns DeferIntervalMin as a time.Duration.
func (c Config) DeferInterval() time.Duration {
	return time.Duration(c.DeferIntervalMin) * time.Minute
}

// UnavailableBudget returns UnavailableBudgetDays as a time.Duration.
func (c Config) UnavailableBudget() time.Duration {
	return time.Duration(c.UnavailableBudgetDays) * 24 * time.Hour
}

// LockStaleWindow returns LockStaleMin as a time.Duration.
func (c Config) LockStaleWindow() time.Duration {
	return time.Duration(c.LockStaleMin) * time.Minute
}

// GlobalPause returns GlobalPauseSec as a time.Duration.
func (c Config) GlobalPause() time.Duration {
	return time.Duration(c.GlobalPauseSec) * time.Second
}

// NormalPace returns NormalPaceSec as a time.Duration.
func (c Config) NormalPace() time.Duration {
	return time.Duration(c.NormalPaceSec * float64(time.Second))
}

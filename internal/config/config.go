// Package config loads the pipeline configuration.
//
// Sources, lowest to highest precedence:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. the well-known variables GOOGLE_APPLICATION_CREDENTIALS, PROJECT_ID and
//     GOOGLE_CLOUD_PROJECT
//  4. MEDALLION_* variables, where "__" separates nested keys
//     (MEDALLION_WAREHOUSE__KIND=duckdb sets warehouse.kind)
//
// A .env file is loaded into the process environment first; variables that
// are already set win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every application environment variable.
const EnvPrefix = "MEDALLION_"

// Config is the full run configuration.
type Config struct {
	// Job labels metrics and logs.
	Job string `koanf:"job"`
	// ProjectID is the first part of every table name.
	ProjectID string `koanf:"project_id"`
	// CredentialsPath is a service-account JSON key file.
	CredentialsPath string `koanf:"credentials_path"`
	// Entity names the Bronze and Silver tables.
	Entity string `koanf:"entity"`

	Source    Source    `koanf:"source"`
	Warehouse Warehouse `koanf:"warehouse"`
	Silver    Silver    `koanf:"silver"`
	Gold      Gold      `koanf:"gold"`
	Metrics   Metrics   `koanf:"metrics"`
	Log       Log       `koanf:"log"`
}

// Source selects where the raw CSV comes from: "file", "http" or "minio".
type Source struct {
	Kind       string `koanf:"kind"`
	Path       string `koanf:"path"`
	URL        string `koanf:"url"`
	Delimiter  string `koanf:"delimiter"`
	LazyQuotes bool   `koanf:"lazy_quotes"`
	HTTP       HTTP   `koanf:"http"`
	Minio      Minio  `koanf:"minio"`
}

// HTTP tunes the http source.
type HTTP struct {
	TimeoutSeconds     int  `koanf:"timeout_seconds"`
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// Minio addresses one object in an S3-compatible store.
type Minio struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	Object    string `koanf:"object"`
}

// Warehouse selects the backend: bigquery, duckdb, postgres, sqlite or mssql.
type Warehouse struct {
	Kind     string `koanf:"kind"`
	DSN      string `koanf:"dsn"`
	Location string `koanf:"location"`
}

// Silver tunes the Silver transform.
type Silver struct {
	// CoercionPolicy maps a column to drop, null or abort.
	CoercionPolicy map[string]string `koanf:"coercion_policy"`
	// DateLayouts are extra Go time layouts for posting_date.
	DateLayouts []string `koanf:"date_layouts"`
}

// Gold tunes the Gold materializer.
type Gold struct {
	Workers int `koanf:"workers"`
}

// Metrics selects a metrics backend: none, prometheus or datadog.
type Metrics struct {
	Backend        string `koanf:"backend"`
	PushgatewayURL string `koanf:"pushgateway_url"`
	DatadogAddr    string `koanf:"datadog_addr"`
	Namespace      string `koanf:"namespace"`
}

// Log configures the process logger.
type Log struct {
	Level      string `koanf:"level"`
	Encoding   string `koanf:"encoding"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Defaults are the built-in values, keyed like the YAML file.
func Defaults() map[string]any {
	return map[string]any{
		"job":               "medallion",
		"entity":            "used_cars",
		"source.kind":       "file",
		"source.path":       "vehicles.csv",
		"source.delimiter":  ",",
		"warehouse.kind":    "bigquery",
		"gold.workers":      5,
		"metrics.backend":   "none",
		"metrics.namespace": "medallion",
		"log.level":         "info",
		"log.encoding":      "json",
		"log.max_size_mb":   100,
		"log.max_backups":   3,
		"log.max_age_days":  7,
	}
}

// LoadOptions points Load at its inputs.
type LoadOptions struct {
	// File is a YAML config file; "" skips it.
	File string
	// EnvFile is a dotenv file; "" tries ".env" and ignores its absence.
	EnvFile string
}

// wellKnownEnv maps conventional variable names to config keys.
var wellKnownEnv = map[string]string{
	"GOOGLE_APPLICATION_CREDENTIALS": "credentials_path",
	"GOOGLE_CLOUD_PROJECT":           "project_id",
	"PROJECT_ID":                     "project_id",
}

// Load assembles the configuration from every source.
func Load(opt LoadOptions) (*Config, error) {
	if err := loadDotenv(opt.EnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if opt.File != "" {
		if err := k.Load(file.Provider(opt.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", opt.File, err)
		}
	}

	// GOOGLE_CLOUD_PROJECT is applied before PROJECT_ID so the latter wins.
	for _, name := range []string{"GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT", "PROJECT_ID"} {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := k.Set(wellKnownEnv[name], v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", name, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.ProjectID == "" && cfg.CredentialsPath != "" {
		id, err := projectFromCredentials(cfg.CredentialsPath)
		if err != nil {
			return nil, err
		}
		cfg.ProjectID = id
	}
	return &cfg, nil
}

// envKey turns MEDALLION_WAREHOUSE__KIND into warehouse.kind.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func loadDotenv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// projectFromCredentials reads project_id from a service-account key.
func projectFromCredentials(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read credentials %s: %w", path, err)
	}
	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &key); err != nil {
		return "", fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return key.ProjectID, nil
}

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func valid() Config {
	return Config{
		Job:       "cars",
		ProjectID: "proj",
		Entity:    "used_cars",
		Source:    Source{Kind: "file", Path: "vehicles.csv", Delimiter: ","},
		Warehouse: Warehouse{Kind: "sqlite", DSN: "medallion.db"},
		Gold:      Gold{Workers: 5},
		Metrics:   Metrics{Backend: "none"},
		Log:       Log{Level: "info", Encoding: "json"},
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ValidateConfig(valid()))
}

func TestValidateConfig_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		path   string
		msg    string
	}{
		{"missing job", func(c *Config) { c.Job = " " }, "job", "must not be empty"},
		{"missing project", func(c *Config) { c.ProjectID = "" }, "project_id", "must be set"},
		{"missing entity", func(c *Config) { c.Entity = "" }, "entity", "must not be empty"},
		{"file without path", func(c *Config) { c.Source.Path = "" }, "source.path", "non-empty path"},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }, "source.kind", "unknown source kind"},
		{"bad url", func(c *Config) { c.Source = Source{Kind: "http", URL: "vehicles.csv"} }, "source.url", "absolute http(s) url"},
		{"http timeout", func(c *Config) {
			c.Source = Source{Kind: "http", URL: "https://example.com/v.csv", HTTP: HTTP{TimeoutSeconds: -1}}
		}, "source.http.timeout_seconds", "must not be negative"},
		{"minio bucket", func(c *Config) {
			c.Source = Source{Kind: "minio", Minio: Minio{Endpoint: "s3:9000", Object: "v.csv"}}
		}, "source.minio.bucket", "requires bucket"},
		{"delimiter", func(c *Config) { c.Source.Delimiter = ";;" }, "source.delimiter", "single character"},
		{"dsn", func(c *Config) { c.Warehouse.DSN = "" }, "warehouse.dsn", "requires a dsn"},
		{"policy value", func(c *Config) {
			c.Silver.CoercionPolicy = map[string]string{"year": "skip"}
		}, "silver.coercion_policy.year", "skip"},
		{"policy column", func(c *Config) {
			c.Silver.CoercionPolicy = map[string]string{"price": "null"}
		}, "silver.coercion_policy", "not nullable"},
		{"workers", func(c *Config) { c.Gold.Workers = -1 }, "gold.workers", "negative"},
		{"pushgateway", func(c *Config) { c.Metrics.Backend = "prometheus" }, "metrics.pushgateway_url", "pushgateway_url"},
		{"datadog", func(c *Config) { c.Metrics.Backend = "datadog" }, "metrics.datadog_addr", "datadog_addr"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level", "loud"},
		{"encoding", func(c *Config) { c.Log.Encoding = "xml" }, "log.encoding", "json or console"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tc.mutate(&cfg)
			issues := ValidateConfig(cfg)
			assert.True(t, hasIssue(issues, SeverityError, tc.path, tc.msg), "issues: %+v", issues)
			assert.True(t, HasErrors(issues))
		})
	}
}

func TestValidateConfig_Warnings(t *testing.T) {
	t.Parallel()

	cfg := valid()
	cfg.Warehouse = Warehouse{Kind: "bigquery"}
	cfg.Metrics.Backend = "statsd"
	issues := ValidateConfig(cfg)

	assert.False(t, HasErrors(issues), "issues: %+v", issues)
	assert.True(t, hasIssue(issues, SeverityWarning, "credentials_path", "Application Default Credentials"))
	assert.True(t, hasIssue(issues, SeverityWarning, "warehouse.location", "project default"))
	assert.True(t, hasIssue(issues, SeverityWarning, "metrics.backend", "statsd"))

	cfg = valid()
	cfg.Warehouse = Warehouse{Kind: "duckdb"}
	assert.True(t, hasIssue(ValidateConfig(cfg), SeverityWarning, "warehouse.dsn", "in memory"))
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "job", Message: "job must not be empty"}
	assert.Equal(t, "error at job: job must not be empty", iss.Error())
}

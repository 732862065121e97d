package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"medallion/internal/silver"

	"go.uber.org/zap/zapcore"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is the dotted config key.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConfig performs static checks over cfg without mutating it.
func ValidateConfig(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, errorf("job", "job must not be empty; it labels metrics and logs"))
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		issues = append(issues, errorf("project_id",
			"project_id must be set (PROJECT_ID, GOOGLE_CLOUD_PROJECT or the credentials file)"))
	}
	if strings.TrimSpace(cfg.Entity) == "" {
		issues = append(issues, errorf("entity", "entity must not be empty"))
	}

	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateWarehouse(cfg)...)
	issues = append(issues, validateSilver(cfg.Silver)...)
	issues = append(issues, validateGold(cfg.Gold)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	issues = append(issues, validateLog(cfg.Log)...)
	return issues
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, errorf("source.path", "file source requires a non-empty path"))
		}
	case "http":
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, errorf("source.url", "http source requires an absolute http(s) url, got %q", s.URL))
		}
		if s.HTTP.TimeoutSeconds < 0 {
			issues = append(issues, errorf("source.http.timeout_seconds", "timeout_seconds must not be negative"))
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, warnf("source.http.insecure_skip_verify", "TLS certificate verification is disabled"))
		}
	case "minio":
		m := s.Minio
		for _, f := range []struct{ key, v string }{
			{"endpoint", m.Endpoint},
			{"bucket", m.Bucket},
			{"object", m.Object},
		} {
			if strings.TrimSpace(f.v) == "" {
				issues = append(issues, errorf("source.minio."+f.key, "minio source requires %s", f.key))
			}
		}
	case "":
		issues = append(issues, errorf("source.kind", "source.kind must not be empty"))
	default:
		issues = append(issues, errorf("source.kind", "unknown source kind %q (want file, http or minio)", s.Kind))
	}

	if s.Delimiter != "" && utf8.RuneCountInString(s.Delimiter) != 1 {
		issues = append(issues, errorf("source.delimiter", "delimiter must be a single character, got %q", s.Delimiter))
	}
	return issues
}

func validateWarehouse(cfg Config) []Issue {
	var issues []Issue
	w := cfg.Warehouse

	if strings.TrimSpace(w.Kind) == "" {
		return append(issues, errorf("warehouse.kind", "warehouse.kind must not be empty"))
	}
	known := map[string]struct{}{
		"bigquery": {},
		"duckdb":   {},
		"postgres": {},
		"sqlite":   {},
		"mssql":    {},
	}
	if _, ok := known[w.Kind]; !ok {
		issues = append(issues, warnf("warehouse.kind",
			"unknown warehouse kind %q; ensure a matching backend is registered", w.Kind))
	}

	switch w.Kind {
	case "postgres", "mssql", "sqlite":
		if strings.TrimSpace(w.DSN) == "" {
			issues = append(issues, errorf("warehouse.dsn", "%s warehouse requires a dsn", w.Kind))
		}
	case "duckdb":
		if w.DSN == "" || w.DSN == ":memory:" {
			issues = append(issues, warnf("warehouse.dsn", "duckdb runs in memory; tables are discarded at exit"))
		}
	case "bigquery":
		if cfg.CredentialsPath == "" {
			issues = append(issues, warnf("credentials_path",
				"no credentials file configured; Application Default Credentials will be used"))
		}
		if w.Location == "" {
			issues = append(issues, warnf("warehouse.location", "no location set; datasets use the project default"))
		}
	}
	return issues
}

func validateSilver(s Silver) []Issue {
	var issues []Issue
	policies := make(map[string]silver.Policy, len(s.CoercionPolicy))
	for col, v := range s.CoercionPolicy {
		p, err := silver.ParsePolicy(v)
		if err != nil {
			issues = append(issues, errorf("silver.coercion_policy."+col, "%v", err))
			continue
		}
		policies[col] = p
	}
	if len(issues) == 0 && len(policies) > 0 {
		if _, err := silver.NewTransformer(silver.Options{Policies: policies}); err != nil {
			issues = append(issues, errorf("silver.coercion_policy", "%v", err))
		}
	}
	for i, l := range s.DateLayouts {
		if strings.TrimSpace(l) == "" {
			issues = append(issues, errorf(fmt.Sprintf("silver.date_layouts[%d]", i), "date layout must not be empty"))
		}
	}
	return issues
}

func validateGold(g Gold) []Issue {
	switch {
	case g.Workers < 0:
		return []Issue{errorf("gold.workers", "workers must not be negative")}
	case g.Workers == 0:
		return []Issue{warnf("gold.workers", "workers=0; the default of 5 is used")}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{errorf("metrics.pushgateway_url", "prometheus metrics require a pushgateway_url")}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{errorf("metrics.datadog_addr", "datadog metrics require a datadog_addr")}
		}
	default:
		return []Issue{warnf("metrics.backend", "unknown metrics backend %q; metrics are disabled", m.Backend)}
	}
	return nil
}

func validateLog(l Log) []Issue {
	var issues []Issue
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		issues = append(issues, errorf("log.level", "%v", err))
	}
	if l.Encoding != "json" && l.Encoding != "console" {
		issues = append(issues, errorf("log.encoding", "encoding must be json or console, got %q", l.Encoding))
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		issues = append(issues, warnf("log.max_size_mb", "max_size_mb=%d; lumberjack's default of 100 is used", l.MaxSizeMB))
	}
	return issues
}

// This file adds a lightweight linter for Config values. It performs static
// checks over an assembled Config and returns a list of issues (errors and
// warnings) that callers can surface in the CLI or in tests before any
// connection is opened.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "metastore.kind"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as an error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownMetastoreKinds lists the registered pointer-store backends.
var knownMetastoreKinds = map[string]bool{
	"dynamodb": true,
	"postgres": true,
	"sqlite":   true,
	"none":     true,
}

// Validate performs static validation of a Config. It does not mutate the
// config and opens no connections; callers decide whether warnings are fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue

	req := func(path, val, msg string) {
		if strings.TrimSpace(val) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: msg})
		}
	}

	req("source_bucket", cfg.SourceBucket, "SOURCE_BUCKET must be set; it is where extraction jobs land bronze files")
	req("namespace", cfg.Namespace, "ICEBERG_NAMESPACE must be set")
	req("table_name", cfg.TableName, "TABLE_NAME must be set")
	req("warehouse_bucket", cfg.WarehouseBucket, "TARGET_BUCKET (or SOURCE_BUCKET fallback) must be set")

	if len(cfg.PrimaryKeys) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "primary_keys",
			Message:  "PRIMARY_KEYS must list at least one field; it defines row identity for dedup and merge",
		})
	}
	for i, k := range cfg.PrimaryKeys {
		if strings.ContainsAny(k, " \t") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("primary_keys[%d]", i),
				Message:  fmt.Sprintf("key field %q must not contain whitespace", k),
			})
		}
	}

	if cfg.LookbackDays < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "lookback_days",
			Message:  "RATES_LOOKBACK_DAYS must not be negative",
		})
	} else if cfg.LookbackDays > 31 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "lookback_days",
			Message:  fmt.Sprintf("lookback of %d days is unusually large; daily runs will re-merge a month of data", cfg.LookbackDays),
		})
	}

	issues = append(issues, validatePatterns(cfg.Patterns)...)
	issues = append(issues, validateMetastore(cfg.Metastore)...)

	return issues
}

func validatePatterns(p Patterns) []Issue {
	var issues []Issue
	check := func(path, tmpl string, wantDay bool) {
		if strings.TrimSpace(tmpl) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "pattern template must not be empty"})
			return
		}
		if !strings.Contains(tmpl, phBase) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "pattern template must contain {base}",
			})
		}
		if wantDay && !strings.Contains(tmpl, phDay) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  "by-day template has no {day} placeholder; daily resolution will not narrow to one partition",
			})
		}
	}
	check("patterns.by_day", p.ByDay, true)
	check("patterns.by_month", p.ByMonth, false)
	check("patterns.root", p.Root, false)
	return issues
}

func validateMetastore(m Metastore) []Issue {
	var issues []Issue

	kind := strings.ToLower(strings.TrimSpace(m.Kind))
	if !knownMetastoreKinds[kind] {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metastore.kind",
			Message:  fmt.Sprintf("unknown metastore kind %q (want dynamodb, postgres, sqlite, or none)", m.Kind),
		})
		return issues
	}

	switch kind {
	case "postgres", "sqlite":
		if strings.TrimSpace(m.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metastore.dsn",
				Message:  fmt.Sprintf("METASTORE_DSN is required for the %s backend", kind),
			})
		}
		fallthrough
	case "dynamodb":
		if strings.TrimSpace(m.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metastore.table",
				Message:  "METASTORE_TABLE must name the pointer table",
			})
		}
	}
	return issues
}

package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		SourceBucket:    "bronze",
		SourcePrefix:    "rates",
		Namespace:       "fx",
		TableName:       "rates_silver",
		WarehouseBucket: "silver",
		WarehousePrefix: "warehouse",
		PrimaryKeys:     []string{"rate_date", "source", "base_currency"},
		LookbackDays:    7,
		Patterns: Patterns{
			ByDay:   DefaultPatternByDay,
			ByMonth: DefaultPatternByMonth,
			Root:    DefaultPatternRoot,
		},
		Metastore: Metastore{Kind: "dynamodb", Table: "iceberg_metadata"},
	}
}

func countSeverity(issues []Issue, sev IssueSeverity) int {
	n := 0
	for _, iss := range issues {
		if iss.Severity == sev {
			n++
		}
	}
	return n
}

func TestValidateCleanConfig(t *testing.T) {
	t.Parallel()

	if issues := Validate(validConfig()); len(issues) != 0 {
		t.Fatalf("want no issues, got %v", issues)
	}
}

func TestValidateFindsErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		path    string
	}{
		{"missing source bucket", func(c *Config) { c.SourceBucket = "" }, "source_bucket"},
		{"missing namespace", func(c *Config) { c.Namespace = "" }, "namespace"},
		{"missing table", func(c *Config) { c.TableName = "" }, "table_name"},
		{"no primary keys", func(c *Config) { c.PrimaryKeys = nil }, "primary_keys"},
		{"key with whitespace", func(c *Config) { c.PrimaryKeys = []string{"rate date"} }, "primary_keys[0]"},
		{"negative lookback", func(c *Config) { c.LookbackDays = -1 }, "lookback_days"},
		{"empty pattern", func(c *Config) { c.Patterns.ByDay = "" }, "patterns.by_day"},
		{"pattern without base", func(c *Config) { c.Patterns.Root = "fixed/*.jsonl" }, "patterns.root"},
		{"unknown metastore", func(c *Config) { c.Metastore.Kind = "etcd" }, "metastore.kind"},
		{"sqlite without dsn", func(c *Config) { c.Metastore = Metastore{Kind: "sqlite", Table: "t"} }, "metastore.dsn"},
		{"dynamodb without table", func(c *Config) { c.Metastore = Metastore{Kind: "dynamodb"} }, "metastore.table"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(&cfg)
			issues := Validate(cfg)
			found := false
			for _, iss := range issues {
				if iss.Severity == SeverityError && iss.Path == tc.path {
					found = true
				}
			}
			if !found {
				t.Fatalf("want error at %q, got %v", tc.path, issues)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.LookbackDays = 60
	issues := Validate(cfg)
	if countSeverity(issues, SeverityError) != 0 {
		t.Fatalf("want no errors, got %v", issues)
	}
	if countSeverity(issues, SeverityWarning) == 0 {
		t.Fatal("want a lookback warning")
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "table_name", Message: "boom"}
	if !strings.Contains(iss.Error(), "table_name") {
		t.Errorf("Error() = %q, want it to mention the path", iss.Error())
	}
}

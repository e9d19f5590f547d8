// Package config defines the job configuration for the bronze→silver rates
// compaction pipeline. Configuration is assembled from environment variables
// (the contract the extraction jobs and schedulers already use) into one
// explicit struct that is passed to each stage constructor; there is no
// ambient global state.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Pattern placeholders understood by Expand.
const (
	phBase  = "{base}"
	phYear  = "{year}"
	phMonth = "{month}"
	phDay   = "{day}"
)

// Default glob templates for the bronze landing layout. Paths are
// bucket-relative object key patterns.
const (
	DefaultPatternByDay   = "{base}/{year}/{month}/{day}/*.jsonl"
	DefaultPatternByMonth = "{base}/{year}/{month}/**/*.jsonl"
	DefaultPatternRoot    = "{base}/**/*.jsonl"
)

// Patterns holds the glob templates the path resolver instantiates.
type Patterns struct {
	ByDay   string
	ByMonth string
	Root    string
}

// Expand substitutes the base path and date parts into a template.
func Expand(template, base string, date time.Time) string {
	r := strings.NewReplacer(
		phBase, strings.TrimSuffix(base, "/"),
		phYear, date.Format("2006"),
		phMonth, date.Format("01"),
		phDay, date.Format("02"),
	)
	return r.Replace(template)
}

// S3 holds connection settings for the bronze/warehouse object store.
type S3 struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Metastore selects and configures the external metadata pointer store.
type Metastore struct {
	// Kind is one of the registered backends: "dynamodb", "postgres",
	// "sqlite", or "none".
	Kind string

	// Table is the pointer table name (DynamoDB table or SQL table).
	Table string

	// DSN is the connection string for the SQL backends (postgres DSN or
	// sqlite file path).
	DSN string

	// DynamoDB-specific connection overrides; empty values fall back to the
	// ambient AWS environment.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Config is the full job configuration.
type Config struct {
	// Source bucket and key prefix the extraction jobs land bronze NDJSON
	// under.
	SourceBucket string
	SourcePrefix string

	// Destination table identity and warehouse location.
	Namespace       string
	TableName       string
	WarehouseBucket string
	WarehousePrefix string

	// PrimaryKeys is the ordered field list defining row identity for dedup
	// and merge.
	PrimaryKeys []string

	// LookbackDays is the trailing window accepted in daily mode, to tolerate
	// providers that return stale "latest available" data over weekends.
	LookbackDays int

	Patterns  Patterns
	S3        S3
	Metastore Metastore
}

// FromEnv builds a Config from the environment, applying defaults for
// everything optional. Call Validate before running the pipeline.
func FromEnv() Config {
	cfg := Config{
		SourceBucket:    envOr("SOURCE_BUCKET", ""),
		SourcePrefix:    envOr("SOURCE_PREFIX", "rates"),
		Namespace:       envOr("ICEBERG_NAMESPACE", ""),
		TableName:       envOr("TABLE_NAME", ""),
		WarehouseBucket: envOr("TARGET_BUCKET", ""),
		WarehousePrefix: envOr("TARGET_PREFIX", "warehouse"),
		PrimaryKeys:     splitList(envOr("PRIMARY_KEYS", "rate_date,source,base_currency")),
		LookbackDays:    envInt("RATES_LOOKBACK_DAYS", 7),
		Patterns: Patterns{
			ByDay:   envOr("PATTERN_BY_DAY", DefaultPatternByDay),
			ByMonth: envOr("PATTERN_BY_MONTH", DefaultPatternByMonth),
			Root:    envOr("PATTERN_ROOT", DefaultPatternRoot),
		},
		S3: S3{
			Endpoint:  envOr("AWS_ENDPOINT_URL", ""),
			Region:    envOr("AWS_REGION", "us-east-1"),
			AccessKey: envOr("AWS_ACCESS_KEY_ID", ""),
			SecretKey: envOr("AWS_SECRET_ACCESS_KEY", ""),
		},
		Metastore: Metastore{
			Kind:      envOr("METASTORE_KIND", "dynamodb"),
			Table:     envOr("METASTORE_TABLE", "iceberg_metadata"),
			DSN:       envOr("METASTORE_DSN", ""),
			Endpoint:  envOr("DYNAMODB_ENDPOINT", ""),
			Region:    envOr("DYNAMODB_AWS_DEFAULT_REGION", "us-east-1"),
			AccessKey: envOr("DYNAMODB_AWS_ACCESS_KEY_ID", ""),
			SecretKey: envOr("DYNAMODB_AWS_SECRET_ACCESS_KEY", ""),
		},
	}
	if cfg.WarehouseBucket == "" {
		cfg.WarehouseBucket = cfg.SourceBucket
	}
	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sessions "charging-kpi/internal/sessions/domain"
)

var (
	// ErrInvalidNumericPolicy is returned for an unknown numeric policy.
	ErrInvalidNumericPolicy = errors.New("config: invalid numeric policy")
	// ErrInvalidTopN is returned for a negative default top N.
	ErrInvalidTopN = errors.New("config: top_n must not be negative")
)

// Config holds service and pipeline settings.
type Config struct {
	HTTPAddr       string                 `yaml:"http_addr"`
	FetchTimeout   time.Duration          `yaml:"fetch_timeout"`
	MaxUploadBytes int64                  `yaml:"max_upload_bytes"`
	CacheEntries   int                    `yaml:"cache_entries"`
	DefaultTopN    int                    `yaml:"default_top_n"`
	PortfolioLabel string                 `yaml:"portfolio_label"`
	NumericPolicy  sessions.NumericPolicy `yaml:"numeric_policy"`
	TimeZone       string                 `yaml:"time_zone"`
	Columns        sessions.ColumnMapping `yaml:"columns"`
	ExtraLayouts   []string               `yaml:"timestamp_layouts"`

	location *time.Location
}

// Load reads defaults from env and overlays the YAML file named by KPI_CONFIG.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:       getenvDefault("KPI_HTTP_ADDR", ":8080"),
		FetchTimeout:   getenvDuration("KPI_FETCH_TIMEOUT", 15*time.Second),
		MaxUploadBytes: int64(getenvIntDefault("KPI_MAX_UPLOAD_BYTES", 32<<20)),
		CacheEntries:   getenvIntDefault("KPI_CACHE_ENTRIES", 16),
		DefaultTopN:    getenvIntDefault("KPI_DEFAULT_TOP_N", 10),
		PortfolioLabel: getenvDefault("KPI_PORTFOLIO_LABEL", "Portfolio total"),
		NumericPolicy:  sessions.NumericPolicy(getenvDefault("KPI_NUMERIC_POLICY", string(sessions.NumericNull))),
		TimeZone:       getenvDefault("KPI_TIMEZONE", "UTC"),
		ExtraLayouts:   splitCSV(os.Getenv("KPI_TIMESTAMP_LAYOUTS")),
	}

	if path := os.Getenv("KPI_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.finish()
}

// Parse overlays YAML onto cfg.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) finish() error {
	c.Columns = sessions.DefaultColumns.Merge(c.Columns)
	if c.NumericPolicy == "" {
		c.NumericPolicy = sessions.NumericNull
	}
	switch c.NumericPolicy {
	case sessions.NumericNull, sessions.NumericZeroFill:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNumericPolicy, c.NumericPolicy)
	}
	if c.DefaultTopN < 0 {
		return ErrInvalidTopN
	}
	if c.PortfolioLabel == "" {
		c.PortfolioLabel = "Portfolio total"
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("config: time zone: %w", err)
	}
	c.location = loc
	return nil
}

// Location returns the zone naive timestamps are read in.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Schema returns the loader column contract.
func (c Config) Schema() sessions.Schema {
	schema := sessions.DefaultSchema()
	schema.Columns = sessions.DefaultColumns.Merge(c.Columns)
	return schema
}

// NormalizeOptions returns the normalizer settings.
func (c Config) NormalizeOptions() sessions.NormalizeOptions {
	return sessions.NormalizeOptions{
		Location:      c.Location(),
		ExtraLayouts:  append([]string(nil), c.ExtraLayouts...),
		NumericPolicy: c.NumericPolicy,
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

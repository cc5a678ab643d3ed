package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoints are the public Overpass mirrors tried in order.
var DefaultEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
	"https://overpass.private.coffee/api/interpreter",
}

// Config holds all run settings, populated from environment variables.
type Config struct {
	QueryFile  string
	OutputFile string
	Endpoints  []string

	DropThreshold   int // percent, 0-100
	MaxDataLagHours int

	RequestTimeout time.Duration
	RetryCooldown  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	UserAgent      string

	LogLevel  string
	LogFormat string

	// Optional dataset-update notifications.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional batch metrics push.
	PushgatewayURL string
	PushJobName    string
}

// KafkaEnabled reports whether update notifications are configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// PushEnabled reports whether metrics push is configured.
func (c *Config) PushEnabled() bool { return c.PushgatewayURL != "" }

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	dropThreshold, err := parseIntInRange("DROP_THRESHOLD", 50, 0, 100)
	if err != nil {
		return nil, err
	}

	maxLag, err := parseIntInRange("MAX_DATA_LAG_HOURS", 48, 1, 24*365)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", 180*time.Second)
	if err != nil {
		return nil, err
	}

	retryCooldown, err := parseDuration("RETRY_COOLDOWN", 5*time.Second)
	if err != nil {
		return nil, err
	}

	rps, err := parseFloat("RATE_LIMIT_RPS", 1)
	if err != nil {
		return nil, err
	}

	burst, err := parseIntInRange("RATE_LIMIT_BURST", 1, 1, 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		QueryFile:  envOrDefault("QUERY_FILE", "query.overpassql"),
		OutputFile: envOrDefault("OUTPUT_FILE", "data.geojson"),
		Endpoints:  parseList(os.Getenv("OVERPASS_ENDPOINTS")),

		DropThreshold:   dropThreshold,
		MaxDataLagHours: maxLag,

		RequestTimeout: requestTimeout,
		RetryCooldown:  retryCooldown,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		UserAgent:      envOrDefault("USER_AGENT", "overpass-etl/1.0"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		KafkaBrokers: parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "dataset-updates"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		PushJobName:    envOrDefault("PUSH_JOB_NAME", "overpass-etl"),
	}

	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.QueryFile == "" {
		return nil, errors.New("QUERY_FILE must not be empty")
	}
	if cfg.OutputFile == "" {
		return nil, errors.New("OUTPUT_FILE must not be empty")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseList splits a comma-separated env value, trimming whitespace and
// dropping empty entries.
func parseList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseIntInRange(key string, fallback, minVal, maxVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minVal || n > maxVal {
		return 0, fmt.Errorf("invalid %s %q: must be an integer in [%d,%d]", key, s, minVal, maxVal)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number", key, s)
	}
	return f, nil
}

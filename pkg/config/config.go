package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	// BaseDomain is the platform domain tenants get subdomains under,
	// e.g. shop1.example.com for base domain example.com.
	BaseDomain string

	RedisURL     string
	KafkaBrokers []string

	// Payment processor endpoint and platform fee in basis points
	// (500 = 5%).
	ProcessorBaseURL      string
	ProcessorTimeoutSecs  int
	PlatformFeeBps        int
	TrialDays             int
	UsageIntervalMinutes  int
	TenantCacheTTLSeconds int

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	feeBps, err := strconv.Atoi(getEnv("PLATFORM_FEE_BPS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_BPS: %w", err)
	}
	if feeBps < 0 || feeBps > 10000 {
		return nil, fmt.Errorf("PLATFORM_FEE_BPS out of range: %d", feeBps)
	}

	trialDays, err := strconv.Atoi(getEnv("TRIAL_DAYS", "14"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRIAL_DAYS: %w", err)
	}

	usageInterval, err := strconv.Atoi(getEnv("USAGE_INTERVAL_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid USAGE_INTERVAL_MINUTES: %w", err)
	}

	processorTimeout, err := strconv.Atoi(getEnv("PROCESSOR_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSOR_TIMEOUT_SECONDS: %w", err)
	}

	tenantCacheTTL, err := strconv.Atoi(getEnv("TENANT_CACHE_TTL_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid TENANT_CACHE_TTL_SECONDS: %w", err)
	}

	return &Config{
		Environment:           getEnv("ENVIRONMENT", "development"),
		ServerPort:            port,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		BaseDomain:            getEnv("BASE_DOMAIN", "example.com"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		KafkaBrokers:          parseCSVEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		ProcessorBaseURL:      getEnv("PROCESSOR_BASE_URL", "https://api.payments.example.com"),
		ProcessorTimeoutSecs:  processorTimeout,
		PlatformFeeBps:        feeBps,
		TrialDays:             trialDays,
		UsageIntervalMinutes:  usageInterval,
		TenantCacheTTLSeconds: tenantCacheTTL,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
	}, nil
}

// IsDevelopment reports whether the dev-only tenant query override may be
// honored.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

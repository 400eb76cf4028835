// Package config has the configuration for the repertory API
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the server runs in
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
	EnvTest
)

// String returns the short name used in ENV
func (e Environment) String() string {
	switch e {
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "prod"
	case EnvTest:
		return "test"
	default:
		return "dev"
	}
}

// ParseEnvironment converts an ENV value into an Environment.
// Unknown values return EnvDevelopment together with an error.
func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", value)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	// Upstream repertory service
	RepertoryBaseURL    string
	RepertoryProbePath  string
	RepertorySearchPath string
	RepertoryUserAgent  string
	SessionTTL          time.Duration
	UpstreamTimeout     time.Duration
	UpstreamRate        float64 // Outbound requests per second, 0 disables throttling
	UpstreamBurst       int64
	UpstreamMaxWait     time.Duration

	// In-memory analysis cases
	CaseIdleTTL      time.Duration
	CaseSweepMinutes int
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	envValue := getEnvWithDefault("ENV", "dev")
	env, err := ParseEnvironment(envValue)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		RepertoryBaseURL:    getEnvWithDefault("REPERTORY_BASE_URL", "https://www.oorep.com"),
		RepertoryProbePath:  getEnvWithDefault("REPERTORY_PROBE_PATH", "/api/available_rems_and_reps"),
		RepertorySearchPath: getEnvWithDefault("REPERTORY_SEARCH_PATH", "/api/lookup_rep"),
		RepertoryUserAgent:  getEnvWithDefault("REPERTORY_USER_AGENT", defaultUserAgent),
		SessionTTL:          getDurationEnvWithDefault("REPERTORY_SESSION_TTL", 20*time.Minute),
		UpstreamTimeout:     getDurationEnvWithDefault("REPERTORY_TIMEOUT", 30*time.Second),
		UpstreamRate:        getFloatEnvWithDefault("UPSTREAM_RATE", 5),
		UpstreamBurst:       getInt64EnvWithDefault("UPSTREAM_BURST", 10),
		UpstreamMaxWait:     getDurationEnvWithDefault("UPSTREAM_MAX_WAIT", 5*time.Second),

		CaseIdleTTL:      getDurationEnvWithDefault("CASE_IDLE_TTL", 4*time.Hour),
		CaseSweepMinutes: getIntEnvWithDefault("CASE_SWEEP_MINUTES", 15),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateBaseURL(cfg.RepertoryBaseURL); err != nil {
		return fmt.Errorf("invalid REPERTORY_BASE_URL: %w", err)
	}

	if err := validateAPIPath(cfg.RepertoryProbePath); err != nil {
		return fmt.Errorf("invalid REPERTORY_PROBE_PATH: %w", err)
	}

	if err := validateAPIPath(cfg.RepertorySearchPath); err != nil {
		return fmt.Errorf("invalid REPERTORY_SEARCH_PATH: %w", err)
	}

	if strings.TrimSpace(cfg.RepertoryUserAgent) == "" {
		return fmt.Errorf("invalid REPERTORY_USER_AGENT: cannot be empty")
	}

	if err := validateDuration(cfg.SessionTTL, time.Minute, 24*time.Hour); err != nil {
		return fmt.Errorf("invalid REPERTORY_SESSION_TTL: %w", err)
	}

	if err := validateDuration(cfg.UpstreamTimeout, time.Second, 5*time.Minute); err != nil {
		return fmt.Errorf("invalid REPERTORY_TIMEOUT: %w", err)
	}

	if cfg.UpstreamRate < 0 {
		return fmt.Errorf("invalid UPSTREAM_RATE: must not be negative, got: %v", cfg.UpstreamRate)
	}

	if cfg.UpstreamRate > 0 && cfg.UpstreamBurst <= 0 {
		return fmt.Errorf("invalid UPSTREAM_BURST: must be positive when UPSTREAM_RATE is set, got: %d", cfg.UpstreamBurst)
	}

	if err := validateDuration(cfg.CaseIdleTTL, time.Minute, 7*24*time.Hour); err != nil {
		return fmt.Errorf("invalid CASE_IDLE_TTL: %w", err)
	}

	if cfg.CaseSweepMinutes < 1 || cfg.CaseSweepMinutes > 24*60 {
		return fmt.Errorf("invalid CASE_SWEEP_MINUTES: must be between 1 and 1440, got: %d", cfg.CaseSweepMinutes)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateBaseURL requires an absolute http(s) URL without query or fragment
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("must not contain a query or fragment")
	}

	return nil
}

func validateAPIPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("must start with '/', got: %q", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("must not contain '..', got: %q", path)
	}
	return nil
}

func validateDuration(d, min, max time.Duration) error {
	if d < min || d > max {
		return fmt.Errorf("must be between %s and %s, got: %s", min, max, d)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go duration strings ("20m", "1h30m")
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"REPERTORY_BASE_URL",
		"REPERTORY_PROBE_PATH",
		"REPERTORY_SEARCH_PATH",
		"REPERTORY_USER_AGENT",
		"REPERTORY_SESSION_TTL",
		"REPERTORY_TIMEOUT",
		"UPSTREAM_RATE",
		"UPSTREAM_BURST",
		"UPSTREAM_MAX_WAIT",
		"CASE_IDLE_TTL",
		"CASE_SWEEP_MINUTES",
	}
}

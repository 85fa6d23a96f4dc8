// Package config loads and validates the service configuration from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Environment is the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short names plus "development" and "production".
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Blob sources.
const (
	BlobSourceDir = "dir"
	BlobSourceS3  = "s3"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	StoreBackend string
	DatabaseURL  string
	DatabaseName string // Postgres schema holding the document tables

	BlobSource  string
	RawFilesDir string
	S3Bucket    string
	S3Prefix    string

	KafkaBrokers      []string // empty means entries are persisted directly
	KafkaDrugTopic    string
	KafkaRegimenTopic string
	KafkaGroupID      string

	IngestIntervalMinutes int
	IngestWorkers         int
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		StoreBackend: strings.ToLower(getEnvWithDefault("STORE_BACKEND", StoreMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: getEnvWithDefault("DATABASE_NAME", "cureid"),

		BlobSource:  strings.ToLower(getEnvWithDefault("BLOB_SOURCE", BlobSourceDir)),
		RawFilesDir: getEnvWithDefault("RAW_FILES_DIR", "raw-files"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Prefix:    os.Getenv("S3_PREFIX"),

		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaDrugTopic:    getEnvWithDefault("KAFKA_DRUG_TOPIC", "cureid-queue-drug"),
		KafkaRegimenTopic: getEnvWithDefault("KAFKA_REGIMEN_TOPIC", "cureid-queue-regimen"),
		KafkaGroupID:      getEnvWithDefault("KAFKA_GROUP_ID", "cureid-api"),

		IngestIntervalMinutes: getIntEnvWithDefault("INGEST_INTERVAL_MINUTES", 15),
		IngestWorkers:         getIntEnvWithDefault("INGEST_WORKERS", 4),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// UsesKafka reports whether entries travel through Kafka before being persisted.
func (c *Config) UsesKafka() bool {
	return len(c.KafkaBrokers) > 0
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

	if err := validateStore(cfg); err != nil {
		return fmt.Errorf("invalid STORE_BACKEND: %w", err)
	}

	if err := validateBlobSource(cfg); err != nil {
		return fmt.Errorf("invalid BLOB_SOURCE: %w", err)
	}

	if err := validateKafka(cfg); err != nil {
		return fmt.Errorf("invalid KAFKA_BROKERS: %w", err)
	}

	if cfg.IngestIntervalMinutes < 1 || cfg.IngestIntervalMinutes > 24*60 {
		return fmt.Errorf("invalid INGEST_INTERVAL_MINUTES: must be between 1 and 1440, got: %d", cfg.IngestIntervalMinutes)
	}

	if cfg.IngestWorkers < 1 || cfg.IngestWorkers > 64 {
		return fmt.Errorf("invalid INGEST_WORKERS: must be between 1 and 64, got: %d", cfg.IngestWorkers)
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

	if address == "127.0.0.1" || address == "::1" || address == "localhost" || address == "0.0.0.0" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
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

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validateStore(cfg *Config) error {
	switch cfg.StoreBackend {
	case StoreMemory:
		return nil
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %s", StorePostgres)
		}
		if cfg.DatabaseName == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty")
		}
		return nil
	}
	return fmt.Errorf("STORE_BACKEND must be one of: [%s %s], got: %s", StoreMemory, StorePostgres, cfg.StoreBackend)
}

func validateBlobSource(cfg *Config) error {
	switch cfg.BlobSource {
	case BlobSourceDir:
		if cfg.RawFilesDir == "" {
			return fmt.Errorf("RAW_FILES_DIR cannot be empty")
		}
		return nil
	case BlobSourceS3:
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_SOURCE is %s", BlobSourceS3)
		}
		return nil
	}
	return fmt.Errorf("BLOB_SOURCE must be one of: [%s %s], got: %s", BlobSourceDir, BlobSourceS3, cfg.BlobSource)
}

func validateKafka(cfg *Config) error {
	if !cfg.UsesKafka() {
		return nil
	}
	for _, broker := range cfg.KafkaBrokers {
		if _, _, err := net.SplitHostPort(broker); err != nil {
			return fmt.Errorf("broker %q must be host:port: %w", broker, err)
		}
	}
	if cfg.KafkaDrugTopic == "" || cfg.KafkaRegimenTopic == "" {
		return fmt.Errorf("KAFKA_DRUG_TOPIC and KAFKA_REGIMEN_TOPIC cannot be empty")
	}
	if cfg.KafkaDrugTopic == cfg.KafkaRegimenTopic {
		return fmt.Errorf("drug and regimen topics must differ, both are %s", cfg.KafkaDrugTopic)
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

// splitList splits a comma-separated value, dropping empty items.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"STORE_BACKEND",
		"DATABASE_URL",
		"DATABASE_NAME",
		"BLOB_SOURCE",
		"RAW_FILES_DIR",
		"S3_BUCKET",
		"S3_PREFIX",
		"KAFKA_BROKERS",
		"KAFKA_DRUG_TOPIC",
		"KAFKA_REGIMEN_TOPIC",
		"KAFKA_GROUP_ID",
		"INGEST_INTERVAL_MINUTES",
		"INGEST_WORKERS",
	}
}

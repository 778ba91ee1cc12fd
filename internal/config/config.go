package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/subhajitsr/data-assignment-SPH/internal/objstore"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse/snowflake"
)

type Config struct {
	Port        string
	LogLevel    string
	Environment string

	YouTubeCredentialsFile string
	YouTubeAPIRPS          float64

	S3           objstore.S3Config
	S3BasePrefix string

	Snowflake snowflake.Config

	RedisURL    string
	DatabaseURL string

	PipelineFile     string
	ScheduleInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "development"),

		YouTubeCredentialsFile: getEnv("YOUTUBE_CREDENTIALS_FILE", "Secrets/youtube-app-secret.json"),

		S3: objstore.S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
			Region:    getEnv("S3_REGION", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "youtube-stats-001"),
		},
		S3BasePrefix: getEnv("S3_BASE_PREFIX", "dump/parquet"),

		Snowflake: snowflake.Config{
			Account:   getEnv("SNOWFLAKE_ACCOUNT", ""),
			User:      getEnv("SNOWFLAKE_USER", ""),
			Password:  getEnv("SNOWFLAKE_PASSWORD", ""),
			Warehouse: getEnv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH"),
			Database:  getEnv("SNOWFLAKE_DATABASE", "TESTDB"),
			Schema:    getEnv("SNOWFLAKE_SCHEMA", "CORE"),
			Role:      getEnv("SNOWFLAKE_ROLE", ""),
		},

		RedisURL:     getEnv("REDIS_URL", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		PipelineFile: getEnv("PIPELINE_CONFIG", ""),
	}

	var err error
	if cfg.YouTubeAPIRPS, err = strconv.ParseFloat(getEnv("YOUTUBE_API_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("YOUTUBE_API_RPS: %w", err)
	}
	if cfg.S3.UseSSL, err = strconv.ParseBool(getEnv("S3_USE_SSL", "true")); err != nil {
		return nil, fmt.Errorf("S3_USE_SSL: %w", err)
	}
	if cfg.ScheduleInterval, err = time.ParseDuration(getEnv("SCHEDULE_INTERVAL", "1h")); err != nil {
		return nil, fmt.Errorf("SCHEDULE_INTERVAL: %w", err)
	}
	if cfg.ScheduleInterval <= 0 {
		return nil, fmt.Errorf("SCHEDULE_INTERVAL must be positive, got %s", cfg.ScheduleInterval)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

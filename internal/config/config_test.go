package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"bucket", cfg.S3.Bucket, "youtube-stats-001"},
		{"base prefix", cfg.S3BasePrefix, "dump/parquet"},
		{"warehouse", cfg.Snowflake.Warehouse, "COMPUTE_WH"},
		{"database", cfg.Snowflake.Database, "TESTDB"},
		{"schema", cfg.Snowflake.Schema, "CORE"},
		{"port", cfg.Port, "8080"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.ScheduleInterval != time.Hour {
		t.Errorf("ScheduleInterval = %s, want 1h", cfg.ScheduleInterval)
	}
	if !cfg.S3.UseSSL {
		t.Error("S3.UseSSL should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("S3_BUCKET", "other-bucket")
	t.Setenv("SCHEDULE_INTERVAL", "15m")
	t.Setenv("YOUTUBE_API_RPS", "2.5")
	t.Setenv("S3_USE_SSL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.S3.Bucket != "other-bucket" {
		t.Errorf("bucket = %q", cfg.S3.Bucket)
	}
	if cfg.ScheduleInterval != 15*time.Minute {
		t.Errorf("interval = %s", cfg.ScheduleInterval)
	}
	if cfg.YouTubeAPIRPS != 2.5 {
		t.Errorf("rps = %v", cfg.YouTubeAPIRPS)
	}
	if cfg.S3.UseSSL {
		t.Error("S3.UseSSL should be false")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct{ key, value string }{
		{"SCHEDULE_INTERVAL", "hourly"},
		{"SCHEDULE_INTERVAL", "-1h"},
		{"YOUTUBE_API_RPS", "fast"},
		{"S3_USE_SSL", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

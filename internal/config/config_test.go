package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set required env vars for test
	os.Setenv("MEDIA_BUCKET", "test-bucket")
	os.Setenv("ASSETS_TABLE", "test-table")
	os.Setenv("EVENTS_QUEUE_URL", "https://sqs.test")
	defer func() {
		os.Unsetenv("MEDIA_BUCKET")
		os.Unsetenv("ASSETS_TABLE")
		os.Unsetenv("EVENTS_QUEUE_URL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AWS.MediaBucket != "test-bucket" {
		t.Errorf("MediaBucket = %v, want %v", cfg.AWS.MediaBucket, "test-bucket")
	}
	if cfg.Pipeline.ToolTimeout != DefaultToolTimeout {
		t.Errorf("ToolTimeout = %v, want %v", cfg.Pipeline.ToolTimeout, DefaultToolTimeout)
	}
}

func TestLoad_PipelineOverrides(t *testing.T) {
	os.Setenv("TOOL_TIMEOUT", "30s")
	os.Setenv("PRESIGN_TTL", "1m")
	defer func() {
		os.Unsetenv("TOOL_TIMEOUT")
		os.Unsetenv("PRESIGN_TTL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pipeline.ToolTimeout != 30*time.Second {
		t.Errorf("ToolTimeout = %v, want 30s", cfg.Pipeline.ToolTimeout)
	}
	if cfg.Pipeline.PresignTTL != time.Minute {
		t.Errorf("PresignTTL = %v, want 1m", cfg.Pipeline.PresignTTL)
	}
}

func TestLoad_RateLimitOverrides(t *testing.T) {
	os.Setenv("RATE_LIMIT_MAX_FAILURES", "3")
	os.Setenv("RATE_LIMIT_WINDOW", "5m")
	defer func() {
		os.Unsetenv("RATE_LIMIT_MAX_FAILURES")
		os.Unsetenv("RATE_LIMIT_WINDOW")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.RateLimitMaxFailures != 3 {
		t.Errorf("RateLimitMaxFailures = %d, want 3", cfg.API.RateLimitMaxFailures)
	}
	if cfg.API.RateLimitWindow != 5*time.Minute {
		t.Errorf("RateLimitWindow = %v, want 5m", cfg.API.RateLimitWindow)
	}
}

func TestLoad_RateLimitDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.RateLimitMaxFailures != DefaultRateLimitMax {
		t.Errorf("RateLimitMaxFailures = %d, want %d", cfg.API.RateLimitMaxFailures, DefaultRateLimitMax)
	}
	if cfg.API.RateLimitWindow != DefaultRateLimitWindow {
		t.Errorf("RateLimitWindow = %v, want %v", cfg.API.RateLimitWindow, DefaultRateLimitWindow)
	}
}

func TestValidateAPI_MissingRequired(t *testing.T) {
	cfg := &Config{
		Environment: "dev",
		AWS:         AWSConfig{},
	}

	err := cfg.ValidateAPI()
	if err == nil {
		t.Error("ValidateAPI() expected error for missing required fields")
	}
}

func TestValidateAPI_ProductionRequiresCredentials(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		AWS: AWSConfig{
			MediaBucket:    "bucket",
			AssetsTable:    "table",
			EventsQueueURL: "url",
		},
		API: APIConfig{}, // Missing credentials
	}

	err := cfg.ValidateAPI()
	if err == nil {
		t.Error("ValidateAPI() expected error for missing credentials in production")
	}
}

func TestValidateAPI_AllPresent(t *testing.T) {
	cfg := &Config{
		Environment: "dev",
		AWS: AWSConfig{
			MediaBucket:    "bucket",
			AssetsTable:    "table",
			EventsQueueURL: "url",
		},
	}

	if err := cfg.ValidateAPI(); err != nil {
		t.Errorf("ValidateAPI() error = %v, want nil", err)
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"prod", true},
		{"production", true},
		{"PRODUCTION", true},
		{"dev", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Environment: tt.env}
			if got := cfg.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetAPICredentials_DevFallback(t *testing.T) {
	cfg := &Config{Environment: "dev"}

	username, password, err := cfg.GetAPICredentials()
	if err != nil {
		t.Fatalf("GetAPICredentials() error = %v", err)
	}
	if username == "" || password == "" {
		t.Error("GetAPICredentials() returned empty dev fallback credentials")
	}
}

func TestGetAPICredentials_ProductionNoFallback(t *testing.T) {
	cfg := &Config{Environment: "production"}

	_, _, err := cfg.GetAPICredentials()
	if err == nil {
		t.Error("GetAPICredentials() expected error in production without credentials")
	}
}

func TestGetJWTSecret_RequiredEvenInDev(t *testing.T) {
	cfg := &Config{Environment: "dev"}

	_, err := cfg.GetJWTSecret()
	if err == nil {
		t.Error("GetJWTSecret() expected error when JWT_SECRET is unset")
	}
}

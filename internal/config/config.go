// Package config reads the pipeline's deployment settings from PDF_*
// environment variables, with defaults matching the reference deployment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all environment-driven settings.
type Config struct {
	// StorageRoot is the directory holding one folder per job.
	StorageRoot string

	// TTL is the fixed job lifetime. It is not extended by activity.
	TTL time.Duration

	MaxFileSize  int64 // per uploaded PDF, bytes
	MaxFiles     int   // per create request
	MaxPages     int   // per uploaded PDF
	MaxImageSize int64 // per watermark image, bytes

	// RedisURL locates the ephemeral store when the redis backend is
	// selected.
	RedisURL string

	// GsBin is the Ghostscript binary; GsTimeout bounds each render.
	GsBin     string
	GsTimeout time.Duration
}

// FromEnv builds a Config from the environment.
func FromEnv() Config {
	return Config{
		StorageRoot:  envStr("PDF_STORAGE_ROOT", "/var/app/storage/pdf"),
		TTL:          time.Duration(envInt("PDF_TTL_SECONDS", 3600)) * time.Second,
		MaxFileSize:  envInt64("PDF_MAX_FILE_SIZE", 50<<20),
		MaxFiles:     envInt("PDF_MAX_FILES", 10),
		MaxPages:     envInt("PDF_MAX_PAGES", 500),
		MaxImageSize: envInt64("PDF_MAX_IMAGE_SIZE", 5<<20),
		RedisURL:     envStr("REDIS_URL", "redis://localhost:6379"),
		GsBin:        envStr("PDF_GS_BIN", "gs"),
		GsTimeout:    time.Duration(envInt("PDF_GS_TIMEOUT_SECONDS", 25)) * time.Second,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

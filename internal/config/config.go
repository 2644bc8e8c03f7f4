package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL = "https://write.as/"
	// Version is reported by the commands and in the user agent.
	Version = "0.1.0"
)

// Config holds client and command configuration values.
type Config struct {
	APIURL          string
	APIKey          string
	CacheExpiration time.Duration
	CacheSize       int
	PageConcurrency int
	StrictPaging    bool
	RequestTimeout  time.Duration
	ArchiveBaseURL  string
	OutputDir       string
	MetricsAddr     string
}

// Load reads an optional .env file from the working directory and then builds
// a Config from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIURL:          getEnv("WRITEAS_API_URL", DefaultAPIURL),
		APIKey:          getEnv("WRITEAS_API_KEY", ""),
		CacheExpiration: time.Second * time.Duration(getEnvAsInt("WRITEAS_CACHE_EXPIRATION_SECONDS", 300)),
		CacheSize:       getEnvAsInt("WRITEAS_CACHE_SIZE", 4),
		PageConcurrency: getEnvAsInt("WRITEAS_PAGE_CONCURRENCY", 1),
		StrictPaging:    getEnvAsBool("WRITEAS_STRICT_PAGING", false),
		RequestTimeout:  time.Second * time.Duration(getEnvAsInt("WRITEAS_REQUEST_TIMEOUT_SECONDS", 20)),
		ArchiveBaseURL:  getEnv("WRITEAS_ARCHIVE_BASE_URL", ""),
		OutputDir:       getEnv("WRITEAS_OUTPUT_DIR", "output"),
		MetricsAddr:     getEnv("WRITEAS_METRICS_ADDR", ""),
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITEAS_API_URL %q: %w", cfg.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid WRITEAS_API_URL %q: must be an absolute http(s) URL", cfg.APIURL)
	}
	if !strings.HasSuffix(cfg.APIURL, "/") {
		cfg.APIURL += "/"
	}
	return cfg, nil
}

// PostURL returns the public link for a post in an archive page.
func (c *Config) PostURL(alias, slug string) string {
	base := c.ArchiveBaseURL
	if base == "" {
		base = c.APIURL + alias + "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + slug
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// Helper function to get a positive integer environment variable or return a default value.
func getEnvAsInt(name string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(name, "")); err == nil && value > 0 {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as a boolean or return a default value.
func getEnvAsBool(name string, fallback bool) bool {
	if val, err := strconv.ParseBool(getEnv(name, "")); err == nil {
		return val
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the image harvester
type Config struct {
	// Search provider settings
	Search SearchConfig `yaml:"search" json:"search"`

	// Shared request gate
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Dimension filter
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig holds Bing Image Search configuration
type SearchConfig struct {
	APIKey            string        `yaml:"api_key" json:"api_key"`
	Endpoint          string        `yaml:"endpoint" json:"endpoint"`
	Market            string        `yaml:"market" json:"market"`
	SafeSearch        string        `yaml:"safe_search" json:"safe_search"`
	ImageType         string        `yaml:"image_type" json:"image_type"`
	Filter            string        `yaml:"filter" json:"filter"`
	PageSize          int           `yaml:"page_size" json:"page_size"`
	MaxCallsPerSecond int           `yaml:"max_calls_per_second" json:"max_calls_per_second"`
	RetryAttempts     int           `yaml:"retry_attempts" json:"retry_attempts"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	SizeHint          bool          `yaml:"size_hint" json:"size_hint"`
}

// RateLimitConfig holds the minimum spacing between outbound requests
type RateLimitConfig struct {
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
}

// FilterConfig holds the inclusive minimum image dimensions and the
// largest canvas that will be decoded
type FilterConfig struct {
	MinWidth  int   `yaml:"min_width" json:"min_width"`
	MinHeight int   `yaml:"min_height" json:"min_height"`
	MaxPixels int64 `yaml:"max_pixels" json:"max_pixels"`
}

// OutputConfig holds output directory and encoding configuration
type OutputConfig struct {
	BaseDirectory      string `yaml:"base_directory" json:"base_directory"`
	CreateQueryFolders bool   `yaml:"create_query_folders" json:"create_query_folders"`
	Format             string `yaml:"format" json:"format"`
	JPEGQuality        int    `yaml:"jpeg_quality" json:"jpeg_quality"`
	OverwriteExisting  bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
	WriteMetadata      bool   `yaml:"write_metadata" json:"write_metadata"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	MaxImagesPerSearch  int           `yaml:"max_images_per_search" json:"max_images_per_search"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryCount          int           `yaml:"retry_count" json:"retry_count"`
	RetryDelay          time.Duration `yaml:"retry_delay" json:"retry_delay"`
	UserAgent           string        `yaml:"user_agent" json:"user_agent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	FilePerRun bool   `yaml:"file_per_run" json:"file_per_run"`
	Directory  string `yaml:"directory" json:"directory"`
}

const (
	DefaultEndpoint = "https://api.bing.microsoft.com/v7.0/images/search"
	MaxPageSize     = 150
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Endpoint:          DefaultEndpoint,
			Market:            "en-US",
			SafeSearch:        "Moderate",
			PageSize:          50,
			MaxCallsPerSecond: 3,
			RetryAttempts:     3,
			Timeout:           30 * time.Second,
			SizeHint:          true,
		},
		RateLimit: RateLimitConfig{
			RequestDelay: time.Second,
		},
		Filter: FilterConfig{
			MinWidth:  400,
			MinHeight: 400,
			MaxPixels: 100_000_000,
		},
		Output: OutputConfig{
			BaseDirectory:      "./downloads",
			CreateQueryFolders: true,
			Format:             "jpg",
			JPEGQuality:        90,
			OverwriteExisting:  false,
			WriteMetadata:      false,
		},
		Download: DownloadConfig{
			MaxImagesPerSearch:  100,
			ConcurrentDownloads: 4,
			DownloadTimeout:     30 * time.Second,
			RetryCount:          1,
			RetryDelay:          250 * time.Millisecond,
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			FilePerRun: false,
			Directory:  "logs",
		},
	}
}

// LoadFromEnv loads configuration from environment variables. The
// unprefixed names are accepted for compatibility with existing .env files.
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Search provider
	if key := firstEnv("HARVESTER_API_KEY", "BING_SEARCH_API_KEY"); key != "" {
		c.Search.APIKey = key
	}
	if endpoint := firstEnv("HARVESTER_ENDPOINT", "BING_SEARCH_ENDPOINT"); endpoint != "" {
		c.Search.Endpoint = endpoint
	}
	if market := os.Getenv("HARVESTER_MARKET"); market != "" {
		c.Search.Market = market
	}
	if safe := os.Getenv("HARVESTER_SAFE_SEARCH"); safe != "" {
		c.Search.SafeSearch = safe
	}
	if v := firstEnv("HARVESTER_SEARCH_RETRIES", "MAX_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid search retry count %q", v))
		} else {
			c.Search.RetryAttempts = n
		}
	}

	// Limits
	if v := firstEnv("HARVESTER_MAX_IMAGES", "MAX_IMAGES_PER_SEARCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid max images %q", v))
		} else if n > 0 {
			c.Download.MaxImagesPerSearch = n
		}
	}
	if v := firstEnv("HARVESTER_MIN_WIDTH", "DEFAULT_IMAGE_MIN_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid min width %q", v))
		} else {
			c.Filter.MinWidth = n
		}
	}
	if v := firstEnv("HARVESTER_MIN_HEIGHT", "DEFAULT_IMAGE_MIN_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid min height %q", v))
		} else {
			c.Filter.MinHeight = n
		}
	}

	// Request delay: a Go duration, or seconds as a float
	if v := firstEnv("HARVESTER_REQUEST_DELAY", "DEFAULT_REQUEST_DELAY"); v != "" {
		d, err := parseDelay(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid request delay %q", v))
		} else {
			c.RateLimit.RequestDelay = d
		}
	}

	if v := os.Getenv("HARVESTER_CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid concurrent downloads %q", v))
		} else if n > 0 {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv("HARVESTER_RETRY_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid retry count %q", v))
		} else {
			c.Download.RetryCount = n
		}
	}

	// Output
	if outputDir := os.Getenv("HARVESTER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if format := os.Getenv("HARVESTER_OUTPUT_FORMAT"); format != "" {
		c.Output.Format = strings.ToLower(format)
	}
	if v := os.Getenv("HARVESTER_JPEG_QUALITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid jpeg quality %q", v))
		} else {
			c.Output.JPEGQuality = n
		}
	}

	// Logging level
	if logLevel := os.Getenv("HARVESTER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func parseDelay(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"harvester.yaml",
		"harvester.yml",
		filepath.Join(home, ".config", "harvester", "config.yaml"),
		filepath.Join(home, ".config", "harvester", "config.yml"),
		filepath.Join(home, ".harvester.yaml"),
		filepath.Join(home, ".harvester.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The API key is not
// required here because it may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	// Search provider
	if c.Search.Endpoint == "" {
		errs = append(errs, errors.New("search endpoint is required"))
	}
	if c.Search.PageSize <= 0 || c.Search.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("page size must be between 1 and %d", MaxPageSize))
	}
	if c.Search.MaxCallsPerSecond < 0 {
		errs = append(errs, errors.New("max calls per second cannot be negative"))
	}
	if c.Search.RetryAttempts < 0 {
		errs = append(errs, errors.New("search retry attempts cannot be negative"))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search timeout must be positive"))
	}

	// Rate limiting
	if c.RateLimit.RequestDelay < 0 {
		errs = append(errs, errors.New("request delay cannot be negative"))
	}

	// Filter
	if c.Filter.MinWidth < 0 || c.Filter.MinHeight < 0 {
		errs = append(errs, errors.New("minimum dimensions cannot be negative"))
	}
	if c.Filter.MaxPixels < 0 {
		errs = append(errs, errors.New("max pixels cannot be negative"))
	}

	// Download settings
	if c.Download.MaxImagesPerSearch <= 0 {
		errs = append(errs, errors.New("max images per search must be positive"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 32 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 32"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryCount < 0 {
		errs = append(errs, errors.New("retry count cannot be negative"))
	}

	// Output settings
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "jpg", "jpeg", "png":
	default:
		errs = append(errs, fmt.Errorf("invalid output format %q (want jpg or png)", c.Output.Format))
	}
	if c.Output.JPEGQuality < 0 || c.Output.JPEGQuality > 100 {
		errs = append(errs, errors.New("jpeg quality must be between 0 and 100"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Search.APIKey = apiKey
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if maxImages, ok := flags["max-images"].(int); ok && maxImages > 0 {
		c.Download.MaxImagesPerSearch = maxImages
	}
	if minWidth, ok := flags["min-width"].(int); ok {
		c.Filter.MinWidth = minWidth
	}
	if minHeight, ok := flags["min-height"].(int); ok {
		c.Filter.MinHeight = minHeight
	}
	if format, ok := flags["format"].(string); ok && format != "" {
		c.Output.Format = strings.ToLower(format)
	}
	if quality, ok := flags["quality"].(int); ok {
		c.Output.JPEGQuality = quality
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if delay, ok := flags["delay"].(time.Duration); ok {
		c.RateLimit.RequestDelay = delay
	}
	if retries, ok := flags["retries"].(int); ok {
		c.Download.RetryCount = retries
	}
	if overwrite, ok := flags["overwrite"].(bool); ok {
		c.Output.OverwriteExisting = overwrite
	}
	if metadata, ok := flags["metadata"].(bool); ok {
		c.Output.WriteMetadata = metadata
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// godotenv never overrides variables that are already set
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".harvester.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

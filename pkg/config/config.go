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

// Config holds all configuration options for the comments crawler
type Config struct {
	// Instagram authentication material
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Endpoint descriptors captured from the browser
	Endpoints EndpointsConfig `yaml:"endpoints" json:"endpoints"`

	// Crawl tunables
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Raw-response persistence
	RawResponses RawResponsesConfig `yaml:"raw_responses" json:"raw_responses"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Proxy settings
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AuthConfig holds headers and cookies passed through to every request.
// Values still carrying the YOUR_ placeholder from the config template are
// treated as unset.
type AuthConfig struct {
	Headers map[string]string `yaml:"headers" json:"headers"`
	Cookies map[string]string `yaml:"cookies" json:"cookies"`
}

// Endpoint describes one captured API endpoint
type Endpoint struct {
	Type      string            `yaml:"type" json:"type"` // "graphql" or "rest"
	Method    string            `yaml:"method" json:"method"`
	URL       string            `yaml:"url" json:"url"`
	DocID     string            `yaml:"doc_id" json:"doc_id"`
	QueryHash string            `yaml:"query_hash" json:"query_hash"`
	Params    map[string]string `yaml:"params" json:"params"`
	Variables map[string]any    `yaml:"variables" json:"variables"`
}

// Configured reports whether the endpoint is usable, i.e. present and not
// still carrying a placeholder doc_id from the config template.
func (e *Endpoint) Configured() bool {
	if e == nil || e.URL == "" {
		return false
	}
	return !strings.HasPrefix(e.DocID, "YOUR_")
}

// EndpointsConfig holds the three endpoint descriptors the crawler uses
type EndpointsConfig struct {
	PostByShortcode *Endpoint `yaml:"post_by_shortcode" json:"post_by_shortcode"`
	Comments        *Endpoint `yaml:"comments" json:"comments"`
	CommentReplies  *Endpoint `yaml:"comment_replies" json:"comment_replies"`
}

// CrawlConfig holds pagination and retry tunables
type CrawlConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	RetryAttempts     int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxComments       int           `yaml:"max_comments" json:"max_comments"`
	FetchReplies      bool          `yaml:"fetch_replies" json:"fetch_replies"`
	ResumeByDefault   bool          `yaml:"resume_by_default" json:"resume_by_default"`
	CommentsPageSize  int           `yaml:"comments_page_size" json:"comments_page_size"`
	RepliesPageSize   int           `yaml:"replies_page_size" json:"replies_page_size"`
	JitterRatio       float64       `yaml:"jitter_ratio" json:"jitter_ratio"`
	PageRetryAttempts int           `yaml:"page_retry_attempts" json:"page_retry_attempts"`
	PageRetryDelay    time.Duration `yaml:"page_retry_delay" json:"page_retry_delay"`
}

// RawResponsesConfig governs the raw-response debug store. Mode is "none"
// (never persist), "errors" (non-200 only) or anything else (persist all).
type RawResponsesConfig struct {
	Mode     string `yaml:"mode" json:"mode"`
	Keep     int    `yaml:"keep" json:"keep"`
	MaxBytes int64  `yaml:"max_bytes" json:"max_bytes"`
}

// OutputConfig holds the data directory layout
type OutputConfig struct {
	DataDirectory string `yaml:"data_directory" json:"data_directory"`
}

// ProxyConfig holds optional proxy URLs
type ProxyConfig struct {
	HTTP  string `yaml:"http" json:"http"`
	HTTPS string `yaml:"https" json:"https"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Headers: map[string]string{
				"Referer": "https://www.instagram.com/",
				"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
					"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			Cookies: map[string]string{},
		},
		Endpoints: EndpointsConfig{},
		Crawl: CrawlConfig{
			RequestsPerMinute: 8,
			RetryAttempts:     3,
			RetryDelay:        5 * time.Second,
			Timeout:           30 * time.Second,
			MaxComments:       400,
			FetchReplies:      true,
			ResumeByDefault:   true,
			CommentsPageSize:  20,
			RepliesPageSize:   20,
			JitterRatio:       0.2,
			PageRetryAttempts: 2,
			PageRetryDelay:    3 * time.Second,
		},
		RawResponses: RawResponsesConfig{
			Mode:     "errors",
			Keep:     200,
			MaxBytes: 100 * 1024 * 1024,
		},
		Output: OutputConfig{
			DataDirectory: "crawler_data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() error {
	// Cookie overrides
	cookieVars := map[string]string{
		"IG_SESSIONID":  "sessionid",
		"IG_CSRFTOKEN":  "csrftoken",
		"IG_DS_USER_ID": "ds_user_id",
		"IG_RUR":        "rur",
	}
	for envName, cookie := range cookieVars {
		if v := os.Getenv(envName); v != "" {
			if c.Auth.Cookies == nil {
				c.Auth.Cookies = make(map[string]string)
			}
			c.Auth.Cookies[cookie] = v
		}
	}

	// Header overrides
	headerVars := map[string]string{
		"IG_X_CSRF_TOKEN":   "X-CSRFToken",
		"IG_X_IG_APP_ID":    "X-IG-App-ID",
		"IG_X_IG_WWW_CLAIM": "X-IG-WWW-Claim",
		"IG_X_ASBD_ID":      "X-ASBD-ID",
		"IG_USER_AGENT":     "User-Agent",
		"IG_REFERER":        "Referer",
	}
	for envName, header := range headerVars {
		if v := os.Getenv(envName); v != "" {
			if c.Auth.Headers == nil {
				c.Auth.Headers = make(map[string]string)
			}
			c.Auth.Headers[header] = v
		}
	}

	if v := os.Getenv("HTTP_PROXY"); v != "" {
		c.Proxy.HTTP = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy.HTTPS = v
	}

	// Crawl setting overrides
	if v := envInt("IG_REQUESTS_PER_MINUTE"); v != nil {
		c.Crawl.RequestsPerMinute = *v
	}
	if v := envInt("IG_RETRY_ATTEMPTS"); v != nil {
		c.Crawl.RetryAttempts = *v
	}
	if v := envDuration("IG_RETRY_DELAY"); v != nil {
		c.Crawl.RetryDelay = *v
	}
	if v := envDuration("IG_TIMEOUT"); v != nil {
		c.Crawl.Timeout = *v
	}
	if v := envInt("IG_MAX_COMMENTS"); v != nil {
		c.Crawl.MaxComments = *v
	}
	if v := envBool("IG_FETCH_REPLIES"); v != nil {
		c.Crawl.FetchReplies = *v
	}
	if v := envBool("IG_RESUME_BY_DEFAULT"); v != nil {
		c.Crawl.ResumeByDefault = *v
	}
	if v := envInt("IG_COMMENTS_PAGE_SIZE"); v != nil {
		c.Crawl.CommentsPageSize = *v
	}
	if v := envInt("IG_REPLIES_PAGE_SIZE"); v != nil {
		c.Crawl.RepliesPageSize = *v
	}
	if v := os.Getenv("IG_JITTER_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Crawl.JitterRatio = f
		}
	}
	if v := os.Getenv("IG_SAVE_RAW_RESPONSES"); v != "" {
		c.RawResponses.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := envInt("IG_RAW_RESPONSES_KEEP"); v != nil {
		c.RawResponses.Keep = *v
	}
	if v := envInt("IG_RAW_RESPONSES_MAX_MB"); v != nil {
		c.RawResponses.MaxBytes = int64(*v) * 1024 * 1024
	}
	if v := os.Getenv("IG_DATA_DIR"); v != "" {
		c.Output.DataDirectory = v
	}
	if v := os.Getenv("IG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return nil
}

func envInt(name string) *int {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envBool(name string) *bool {
	v := strings.ToLower(os.Getenv(name))
	if v == "" {
		return nil
	}
	b := v == "1" || v == "true" || v == "yes" || v == "on"
	return &b
}

// envDuration accepts either a Go duration string or a bare number of seconds
func envDuration(name string) *time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return &d
	}
	if n, err := strconv.Atoi(v); err == nil {
		d := time.Duration(n) * time.Second
		return &d
	}
	return nil
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
	locations := []string{
		".igcomments.yaml",
		".igcomments.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igcomments", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igcomments", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igcomments.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Crawl.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Crawl.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Crawl.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Crawl.JitterRatio < 0 || c.Crawl.JitterRatio > 1 {
		errs = append(errs, errors.New("jitter ratio must be between 0 and 1"))
	}
	if c.Crawl.PageRetryAttempts < 0 {
		errs = append(errs, errors.New("page retry attempts cannot be negative"))
	}
	if c.Output.DataDirectory == "" {
		errs = append(errs, errors.New("data directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Flags holds command line overrides merged into the configuration
type Flags struct {
	DataDirectory string
	MaxComments   *int
	Resume        *bool
	FetchReplies  *bool
	LogLevel      string
}

// MergeFlags merges command line flags into the configuration
func (c *Config) MergeFlags(flags *Flags) {
	if flags == nil {
		return
	}
	if flags.DataDirectory != "" {
		c.Output.DataDirectory = flags.DataDirectory
	}
	if flags.MaxComments != nil {
		c.Crawl.MaxComments = *flags.MaxComments
	}
	if flags.Resume != nil {
		c.Crawl.ResumeByDefault = *flags.Resume
	}
	if flags.FetchReplies != nil {
		c.Crawl.FetchReplies = *flags.FetchReplies
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
}

// FilteredHeaders returns auth headers with placeholder values removed
func (c *Config) FilteredHeaders() map[string]string {
	return filterPlaceholders(c.Auth.Headers)
}

// FilteredCookies returns auth cookies with placeholder values removed
func (c *Config) FilteredCookies() map[string]string {
	return filterPlaceholders(c.Auth.Cookies)
}

func filterPlaceholders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == "" || strings.HasPrefix(v, "YOUR_") {
			continue
		}
		out[k] = v
	}
	return out
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags *Flags) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igcomments.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

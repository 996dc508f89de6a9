package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Media     MediaConfig     `yaml:"media"`
	Bluesky   BlueskyConfig   `yaml:"bluesky"`
	Twitter   TwitterConfig   `yaml:"twitter"`
	Instagram InstagramConfig `yaml:"instagram"`
	TikTok    TikTokConfig    `yaml:"tiktok"`
	Reddit    RedditConfig    `yaml:"reddit"`
}

// HTTPConfig holds shared HTTP session configuration.
type HTTPConfig struct {
	Timeout         time.Duration `yaml:"timeout" envconfig:"HTTP_TIMEOUT"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"HTTP_DOWNLOAD_TIMEOUT"`
	UserAgent       string        `yaml:"user_agent" envconfig:"HTTP_USER_AGENT"`
}

// MediaConfig holds media payload limits.
type MediaConfig struct {
	// MaxBytes is the upload ceiling of the hosting platform. Media
	// larger than this is dropped, never downloaded.
	MaxBytes int64 `yaml:"max_bytes" envconfig:"MEDIA_MAX_BYTES"`
}

// BlueskyConfig holds Bluesky/AT Protocol endpoints.
type BlueskyConfig struct {
	APIURL string `yaml:"api_url" envconfig:"BLUESKY_API_URL"`
	PLCURL string `yaml:"plc_url" envconfig:"BLUESKY_PLC_URL"`
}

// TwitterConfig holds the tweet mirror API endpoint.
type TwitterConfig struct {
	MirrorURL string `yaml:"mirror_url" envconfig:"TWITTER_MIRROR_URL"`
}

// InstagramConfig holds the Instagram mirror endpoint.
type InstagramConfig struct {
	MirrorURL string `yaml:"mirror_url" envconfig:"INSTAGRAM_MIRROR_URL"`
}

// TikTokConfig holds the TikTok mobile feed API endpoint.
type TikTokConfig struct {
	APIURL string `yaml:"api_url" envconfig:"TIKTOK_API_URL"`
}

// RedditConfig holds the ordered Reddit mirror instance list and the
// challenge submission path used by those instances.
type RedditConfig struct {
	Instances []string `yaml:"instances" envconfig:"REDDIT_INSTANCES"`
	PassPath  string   `yaml:"pass_path" envconfig:"REDDIT_PASS_PATH"`
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() *Config {
	cfg := &Config{
		HTTP: HTTPConfig{
			Timeout:         25 * time.Second,
			DownloadTimeout: 120 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Media: MediaConfig{MaxBytes: 52428800},
		Bluesky: BlueskyConfig{
			APIURL: "https://public.api.bsky.app",
			PLCURL: "https://plc.directory",
		},
		Twitter:   TwitterConfig{MirrorURL: "https://api.fxtwitter.com"},
		Instagram: InstagramConfig{MirrorURL: "https://kkinstagram.com"},
		TikTok:    TikTokConfig{APIURL: "https://api16-normal-c-useast1a.tiktokv.com"},
		Reddit: RedditConfig{
			Instances: []string{
				"https://redlib.catsarch.com",
				"https://safereddit.com",
				"https://libreddit.privacydev.net",
			},
			PassPath: "/.within.website/x/cmd/anubis/api/pass-challenge",
		},
	}
	return cfg
}

// Load reads configuration starting from the built-in defaults, then
// the YAML file, then environment variables. Later sources win.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Media.MaxBytes <= 0 {
		return fmt.Errorf("MEDIA_MAX_BYTES must be positive")
	}
	if len(c.Reddit.Instances) == 0 {
		return fmt.Errorf("REDDIT_INSTANCES is required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

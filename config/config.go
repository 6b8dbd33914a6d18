package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the TopicBook service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

func (g GeneralConfig) Validate() error {
	switch strings.ToLower(g.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("general.log_format must be text or json")
	}
	if g.TaskTimeout < 0 {
		return fmt.Errorf("general.task_timeout cannot be negative")
	}
	return nil
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	StreamHeartbeat time.Duration `mapstructure:"stream_heartbeat"`
}

// Normalize fills empty server values.
func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":8000"
	}
	if !strings.Contains(s.Address, ":") {
		s.Address = ":" + s.Address
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	if s.StreamHeartbeat <= 0 {
		s.StreamHeartbeat = 15 * time.Second
	}
	return s
}

// LLMConfig selects the active provider and holds per-provider settings
type LLMConfig struct {
	Provider  string                 `mapstructure:"provider"`
	Providers map[string]LLMProvider `mapstructure:"providers"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type        string        `mapstructure:"type"` // gemini, openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// Active returns the provider selected by llm.provider.
func (l LLMConfig) Active() (LLMProvider, error) {
	name := strings.TrimSpace(l.Provider)
	if name == "" {
		return LLMProvider{}, fmt.Errorf("llm.provider required")
	}
	p, ok := l.Providers[name]
	if !ok {
		return LLMProvider{}, fmt.Errorf("llm.providers.%s not configured", name)
	}
	if p.Type == "" {
		p.Type = name
	}
	return p, nil
}

func (l LLMConfig) Validate() error {
	p, err := l.Active()
	if err != nil {
		return err
	}
	switch p.Type {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.providers.%s.type %q unsupported", l.Provider, p.Type)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("llm.providers.%s.model required", l.Provider)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("llm.providers.%s.max_retries cannot be negative", l.Provider)
	}
	return nil
}

// SourcesConfig contains content source adapter settings
type SourcesConfig struct {
	WebProvider  string        `mapstructure:"web_provider"` // google, serper, brave
	Google       GoogleConfig  `mapstructure:"google"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	YouTube      YouTubeConfig `mapstructure:"youtube"`
	Scrape       ScrapeConfig  `mapstructure:"scrape"`
	HTTP         HTTPConfig    `mapstructure:"http"`

	SitePolicy SitePolicyConfig `mapstructure:"site_policy"`
}

// GoogleConfig holds Custom Search credentials, shared by web and image search.
type GoogleConfig struct {
	APIKey         string `mapstructure:"api_key"`
	SearchEngineID string `mapstructure:"search_engine_id"`
	Endpoint       string `mapstructure:"endpoint"`
}

// YouTubeConfig holds video search and transcript settings.
type YouTubeConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	Endpoint           string        `mapstructure:"endpoint"`
	TranscriptEndpoint string        `mapstructure:"transcript_endpoint"`
	Languages          []string      `mapstructure:"languages"`
	CourtesyDelay      time.Duration `mapstructure:"courtesy_delay"`
}

// ScrapeConfig controls page text extraction.
type ScrapeConfig struct {
	Mode              string        `mapstructure:"mode"` // goquery, readability, chromedp
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgents        []string      `mapstructure:"user_agents"`
	MaxChars          int           `mapstructure:"max_chars"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// HTTPConfig tunes the JSON client shared by the API adapters.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Backoff time.Duration `mapstructure:"backoff"`
}

func (s SourcesConfig) Validate() error {
	switch s.WebProvider {
	case "google", "serper", "brave":
	default:
		return fmt.Errorf("sources.web_provider %q unsupported", s.WebProvider)
	}
	switch s.Scrape.Mode {
	case "goquery", "readability", "chromedp":
	default:
		return fmt.Errorf("sources.scrape.mode %q unsupported", s.Scrape.Mode)
	}
	if s.Scrape.RequestsPerSecond < 0 {
		return fmt.Errorf("sources.scrape.requests_per_second cannot be negative")
	}
	if s.HTTP.Retries < 0 {
		return fmt.Errorf("sources.http.retries cannot be negative")
	}
	return s.SitePolicy.Validate()
}

// PipelineConfig bounds the work done per task.
type PipelineConfig struct {
	WebResults         int  `mapstructure:"web_results"`
	TranscriptResults  int  `mapstructure:"transcript_results"`
	MinHeadingLength   int  `mapstructure:"min_heading_length"`
	Parallel           bool `mapstructure:"parallel"`
	ImageConcurrency   int  `mapstructure:"image_concurrency"`
	MaxConcurrentTasks int  `mapstructure:"max_concurrent_tasks"`
}

func (p PipelineConfig) Validate() error {
	if p.WebResults <= 0 {
		return fmt.Errorf("pipeline.web_results must be > 0")
	}
	if p.TranscriptResults < 0 {
		return fmt.Errorf("pipeline.transcript_results cannot be negative")
	}
	if p.MinHeadingLength < 0 {
		return fmt.Errorf("pipeline.min_heading_length cannot be negative")
	}
	if p.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("pipeline.max_concurrent_tasks must be > 0")
	}
	return nil
}

// StorageConfig contains output and event bus settings
type StorageConfig struct {
	OutputDir string      `mapstructure:"output_dir"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Stream       string        `mapstructure:"stream"`
	StreamMaxLen int64         `mapstructure:"stream_max_len"`
	ResultTTL    time.Duration `mapstructure:"result_ttl"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if strings.TrimSpace(r.Stream) == "" {
		return fmt.Errorf("storage.redis.stream required")
	}
	return nil
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Validate runs every section validator.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.OutputDir) == "" {
		return fmt.Errorf("storage.output_dir required")
	}
	validators := []func() error{
		c.General.Validate,
		c.LLM.Validate,
		c.Sources.Validate,
		c.Pipeline.Validate,
		c.Storage.Redis.Validate,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "text")
	v.SetDefault("general.task_timeout", 15*time.Minute)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.stream_heartbeat", 15*time.Second)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.providers.gemini.type", "gemini")
	v.SetDefault("llm.providers.gemini.model", "gemini-1.5-flash-latest")
	v.SetDefault("llm.providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.providers.gemini.timeout", 120*time.Second)
	v.SetDefault("llm.providers.gemini.max_retries", 1)
	v.SetDefault("llm.providers.openai.type", "openai")
	v.SetDefault("llm.providers.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.timeout", 120*time.Second)
	v.SetDefault("llm.providers.openai.max_retries", 1)

	v.SetDefault("sources.web_provider", "google")
	v.SetDefault("sources.google.endpoint", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("sources.youtube.endpoint", "https://www.googleapis.com/youtube/v3/search")
	v.SetDefault("sources.youtube.transcript_endpoint", "https://www.youtubevideotranscripts.com/api/transcript")
	v.SetDefault("sources.youtube.languages", []string{"en", "en-IN", "en-US", "en-GB", "en-AU", "en-CA"})
	v.SetDefault("sources.youtube.courtesy_delay", time.Second)
	v.SetDefault("sources.scrape.mode", "goquery")
	v.SetDefault("sources.scrape.timeout", 10*time.Second)
	v.SetDefault("sources.scrape.max_chars", 20000)
	v.SetDefault("sources.scrape.requests_per_second", 2.0)
	v.SetDefault("sources.http.timeout", 15*time.Second)
	v.SetDefault("sources.http.retries", 1)
	v.SetDefault("sources.http.backoff", 300*time.Millisecond)

	v.SetDefault("pipeline.web_results", 5)
	v.SetDefault("pipeline.transcript_results", 3)
	v.SetDefault("pipeline.min_heading_length", 5)
	v.SetDefault("pipeline.parallel", false)
	v.SetDefault("pipeline.image_concurrency", 4)
	v.SetDefault("pipeline.max_concurrent_tasks", 4)

	v.SetDefault("storage.output_dir", "Generated-Books")
	v.SetDefault("storage.redis.enabled", false)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.stream", "topicbook:tasks")
	v.SetDefault("storage.redis.stream_max_len", 10000)
	v.SetDefault("storage.redis.result_ttl", 24*time.Hour)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "topicbook")
}

// LoadConfig reads config from path (or the default search paths) and the
// TOPICBOOK_* environment. A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TOPICBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Server = cfg.Server.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindSecrets lets the conventional provider variables fill credentials when
// no TOPICBOOK_* override is present.
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("llm.providers.gemini.api_key", "TOPICBOOK_LLM_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("llm.providers.openai.api_key", "TOPICBOOK_LLM_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("sources.google.api_key", "TOPICBOOK_SOURCES_GOOGLE_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("sources.google.search_engine_id", "TOPICBOOK_SOURCES_GOOGLE_SEARCH_ENGINE_ID", "SEARCH_ENGINE_ID")
	_ = v.BindEnv("sources.youtube.api_key", "TOPICBOOK_SOURCES_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
}

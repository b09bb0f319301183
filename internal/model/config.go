package model

import "time"

// Config is the complete haley configuration
type Config struct {
	Backend      BackendConfig             `yaml:"backend" mapstructure:"backend"`
	Modules      ModulesConfig             `yaml:"modules" mapstructure:"modules"`
	Providers    map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Fanout       FanoutConfig              `yaml:"fanout" mapstructure:"fanout"`
	Soundboard   SoundboardConfig          `yaml:"soundboard" mapstructure:"soundboard"`
	HTTP         HTTPConfig                `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig               `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig         `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig           `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Authority    AuthorityConfig           `yaml:"authority" mapstructure:"authority"`
	Store        StoreConfig               `yaml:"store" mapstructure:"store"`
	Metrics      MetricsConfig             `yaml:"metrics" mapstructure:"metrics"`
	Output       OutputConfig              `yaml:"output" mapstructure:"output"`
}

// BackendConfig points at the Haley chat backend and OS API
type BackendConfig struct {
	ChatURL string        `yaml:"chat_url" mapstructure:"chat_url"`
	OSURL   string        `yaml:"os_url" mapstructure:"os_url"`
	UserID  string        `yaml:"user_id" mapstructure:"user_id"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ModulesConfig points at the Logic Engine module services
type ModulesConfig struct {
	MatrixURL      string `yaml:"matrix_url" mapstructure:"matrix_url"`
	LogicEngineURL string `yaml:"logic_engine_url" mapstructure:"logic_engine_url"`
	Fallback       bool   `yaml:"fallback" mapstructure:"fallback"` // Generate local results when a module call fails
}

// ProviderConfig configures one LLM provider
type ProviderConfig struct {
	Kind      string `yaml:"kind" mapstructure:"kind"` // openai, anthropic, ollama, gemini, haley
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" mapstructure:"api_key_env"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FanoutConfig controls multi-LLM fan-out
type FanoutConfig struct {
	Providers         []string `yaml:"providers" mapstructure:"providers"`
	SummaryProvider   string   `yaml:"summary_provider" mapstructure:"summary_provider"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int      `yaml:"burst_size" mapstructure:"burst_size"`
	// Per-provider overrides keyed by provider id
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits,omitempty" mapstructure:"rate_limits"`
}

// SoundboardConfig controls the claim → question → delta pipeline
type SoundboardConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	Sequential  bool    `yaml:"sequential" mapstructure:"sequential"` // Build deltas one at a time in list order
	Extract     bool    `yaml:"extract" mapstructure:"extract"`       // Add constraint claims found in the concept text
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig contains module response cache settings
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig contains worker pool sizes
type ConcurrencyConfig struct {
	Workers           int `yaml:"workers" mapstructure:"workers"`
	ValidationWorkers int `yaml:"validation_workers" mapstructure:"validation_workers"`
	BuildWorkers      int `yaml:"build_workers" mapstructure:"build_workers"`
}

// RateLimitConfig contains default per-key rate limits
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// AuthorityConfig classifies source hosts into authority tiers
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches a regexp
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// StoreConfig locates the conversation database
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"` // Empty disables the endpoint
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			ChatURL: "http://localhost:8081",
			OSURL:   "http://localhost:8080",
			UserID:  "default_user",
			Timeout: 60 * time.Second,
		},
		Modules: ModulesConfig{
			MatrixURL:      "https://module-matrix-409495160162.us-central1.run.app",
			LogicEngineURL: "https://logic-engine-core2-951854392741.us-central1.run.app",
			Fallback:       true,
		},
		Providers: DefaultProviders(),
		Fanout: FanoutConfig{
			Providers:         []string{"gemini", "gpt", "claude"},
			SummaryProvider:   "haley",
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Soundboard: SoundboardConfig{
			Provider:    "haley",
			Temperature: 0.2,
			Sequential:  true,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Haley/0.1 (+https://github.com/haleyos/haley)",
			MaxBodyBytes: 2_000_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.haley/cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			ValidationWorkers: 10,
			BuildWorkers:      3,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "who.int", "data.gov", "census.gov",
				"arxiv.org", "nih.gov", "ietf.org", "w3.org",
			},
			SecondaryDomains: []string{
				"github.com", "wikipedia.org", "reddit.com", "stackoverflow.com",
				"kaggle.com", "huggingface.co", "npmjs.com", "pypi.org", "pkg.go.dev",
			},
			PathPatterns: []PathPattern{
				{Pattern: `^/api/`, Tier: "primary"},
				{Pattern: `^/docs?/`, Tier: "secondary"},
			},
		},
		Store: StoreConfig{
			Path: "~/.haley/haley.db",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// DefaultProviders returns the built-in provider table.
// Keys are the provider ids used by fan-out and soundboard.
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"gpt":        {Kind: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", Timeout: 60, MaxTokens: 2000},
		"claude":     {Kind: "anthropic", Model: "claude-3-5-sonnet-20241022", APIKeyEnv: "ANTHROPIC_API_KEY", Timeout: 60, MaxTokens: 2000},
		"gemini":     {Kind: "gemini", Model: "gemini-2.0-flash", APIKeyEnv: "GEMINI_API_KEY", Timeout: 60, MaxTokens: 2000},
		"llama":      {Kind: "ollama", Model: "llama3.1:8b", BaseURL: "http://localhost:11434", Timeout: 120, MaxTokens: 2000},
		"perplexity": {Kind: "openai", Model: "sonar", APIKeyEnv: "PERPLEXITY_API_KEY", BaseURL: "https://api.perplexity.ai", Timeout: 60, MaxTokens: 2000},
		"mistral":    {Kind: "openai", Model: "mistral-small-latest", APIKeyEnv: "MISTRAL_API_KEY", BaseURL: "https://api.mistral.ai/v1", Timeout: 60, MaxTokens: 2000},
		"grok":       {Kind: "openai", Model: "grok-2-latest", APIKeyEnv: "XAI_API_KEY", BaseURL: "https://api.x.ai/v1", Timeout: 60, MaxTokens: 2000},
		"haley":      {Kind: "haley", Timeout: 120},
	}
}

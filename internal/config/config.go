package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/schemachat/internal/domain"
)

// Config holds the schemachat configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Provider   ProviderConfig   `yaml:"provider"`
	Model      ModelConfig      `yaml:"model"`
	Completion CompletionConfig `yaml:"completion"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Moderation ModerationConfig `yaml:"moderation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Supabase   SupabaseConfig   `yaml:"supabase"`
	Valkey     ValkeyConfig     `yaml:"valkey"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // covers the whole streamed answer
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ProviderConfig describes the OpenAI-compatible endpoint.
type ProviderConfig struct {
	APIHost        string `yaml:"api_host"`
	Kind           string `yaml:"kind"` // direct, gateway
	APIKey         string `yaml:"api_key"`
	DeploymentID   string `yaml:"deployment_id"`
	APIVersion     string `yaml:"api_version"`
	OrganizationID string `yaml:"organization_id"`
	TimeoutSec     int    `yaml:"timeout_sec"` // 0 = no client timeout
}

// ModelConfig selects the completion model.
type ModelConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CompletionConfig holds chat completion request settings.
type CompletionConfig struct {
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float32 `yaml:"temperature"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Model string `yaml:"model"`
}

// ModerationConfig holds the moderation guard policy.
type ModerationConfig struct {
	Enabled     *bool  `yaml:"enabled"`
	FailureMode string `yaml:"failure_mode"` // permissive, strict
}

// RetrievalConfig holds similarity search and context assembly settings.
type RetrievalConfig struct {
	Backend           string  `yaml:"backend"` // supabase, valkey
	MatchThreshold    float64 `yaml:"match_threshold"`
	MatchCount        int     `yaml:"match_count"`
	MinContentLength  int     `yaml:"min_content_length"`
	TokenBudget       int     `yaml:"token_budget"`
	TokenizerEncoding string  `yaml:"tokenizer_encoding"`
}

// SupabaseConfig holds PostgREST RPC settings.
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	Function       string `yaml:"function"`
}

// ValkeyConfig holds the vector index connection settings.
type ValkeyConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Index            string   `yaml:"index"`
	ContentField     string   `yaml:"content_field"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Moderation failure modes.
const (
	ModerationPermissive = "permissive"
	ModerationStrict     = "strict"
)

// Retrieval backends.
const (
	BackendSupabase = "supabase"
	BackendValkey   = "valkey"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Provider.APIHost == "" {
		c.Provider.APIHost = "https://api.openai.com"
	}
	c.Provider.APIHost = strings.TrimRight(c.Provider.APIHost, "/")
	if c.Provider.Kind == "" {
		c.Provider.Kind = string(domain.ProviderDirect)
	}
	if c.Provider.APIVersion == "" {
		c.Provider.APIVersion = "2023-05-15"
	}
	if c.Model.ID == "" {
		c.Model.ID = "gpt-3.5-turbo"
	}
	if c.Model.Name == "" {
		c.Model.Name = c.Model.ID
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 1000
	}
	if c.Completion.Temperature == nil {
		t := float32(1)
		c.Completion.Temperature = &t
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Moderation.Enabled == nil {
		enabled := true
		c.Moderation.Enabled = &enabled
	}
	if c.Moderation.FailureMode == "" {
		c.Moderation.FailureMode = ModerationPermissive
	}

	params := domain.DefaultRetrievalParams()
	if c.Retrieval.Backend == "" {
		c.Retrieval.Backend = BackendSupabase
	}
	if c.Retrieval.MatchThreshold == 0 {
		c.Retrieval.MatchThreshold = params.MatchThreshold
	}
	if c.Retrieval.MatchCount <= 0 {
		c.Retrieval.MatchCount = params.MatchCount
	}
	if c.Retrieval.MinContentLength <= 0 {
		c.Retrieval.MinContentLength = params.MinContentLength
	}
	if c.Retrieval.TokenBudget <= 0 {
		c.Retrieval.TokenBudget = 1500
	}
	if c.Retrieval.TokenizerEncoding == "" {
		c.Retrieval.TokenizerEncoding = "r50k_base"
	}
	if c.Supabase.Function == "" {
		c.Supabase.Function = "match_schema"
	}
	c.Supabase.URL = strings.TrimRight(c.Supabase.URL, "/")
	if c.Valkey.Index == "" {
		c.Valkey.Index = "schemachat:schemas"
	}
	if c.Valkey.ContentField == "" {
		c.Valkey.ContentField = "content"
	}
	if c.Valkey.ReadinessTimeout <= 0 {
		c.Valkey.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	kind := domain.ProviderKind(c.Provider.Kind)
	if !kind.Valid() {
		return fmt.Errorf("provider.kind must be \"direct\" or \"gateway\", got %q", c.Provider.Kind)
	}
	if kind == domain.ProviderGateway && c.Provider.DeploymentID == "" {
		return fmt.Errorf("provider.deployment_id is required for gateway provider")
	}

	switch c.Moderation.FailureMode {
	case ModerationPermissive, ModerationStrict:
	default:
		return fmt.Errorf(
			"moderation.failure_mode must be %q or %q, got %q",
			ModerationPermissive, ModerationStrict, c.Moderation.FailureMode,
		)
	}

	switch c.Retrieval.Backend {
	case BackendSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("supabase.url is required for supabase backend")
		}
		if c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("supabase.service_role_key is required for supabase backend")
		}
	case BackendValkey:
		if len(c.Valkey.Addrs) == 0 {
			return fmt.Errorf("valkey.addrs is required for valkey backend")
		}
	default:
		return fmt.Errorf("retrieval.backend must be %q or %q, got %q",
			BackendSupabase, BackendValkey, c.Retrieval.Backend)
	}

	if c.Retrieval.MatchThreshold < 0 || c.Retrieval.MatchThreshold > 1 {
		return fmt.Errorf("retrieval.match_threshold must be within [0, 1], got %v", c.Retrieval.MatchThreshold)
	}
	if t := *c.Completion.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("completion.temperature must be within [0, 2], got %v", t)
	}
	return nil
}

// RetrievalParams converts the retrieval section into search parameters.
func (c *Config) RetrievalParams() domain.RetrievalParams {
	return domain.RetrievalParams{
		MatchThreshold:   c.Retrieval.MatchThreshold,
		MatchCount:       c.Retrieval.MatchCount,
		MinContentLength: c.Retrieval.MinContentLength,
	}
}

// ModelSelector returns the configured completion model.
func (c *Config) ModelSelector() domain.ModelSelector {
	return domain.ModelSelector{ID: c.Model.ID, Name: c.Model.Name}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

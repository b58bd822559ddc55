// Package config loads service configuration through viper. Defaults are
// registered first, then an optional YAML file and HYPHERTEXT_* environment
// variables override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/securemem"
)

// EnvPrefix is prepended to every environment variable viper consults.
const EnvPrefix = "HYPHERTEXT"

// MemoryDatabase selects the in-process store instead of sqlite.
const MemoryDatabase = ":memory:"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Models    ModelsConfig    `mapstructure:"models"`
	Groq      GroqConfig      `mapstructure:"groq"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Google    GoogleConfig    `mapstructure:"google"`
	Search    SearchConfig    `mapstructure:"search"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assets    AssetsConfig    `mapstructure:"assets"`

	// Credentials holds the API keys after Load moved them out of the plain
	// string fields.
	Credentials Credentials `mapstructure:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// ModelsConfig names the model used when a request carries none.
type ModelsConfig struct {
	Default string `mapstructure:"default"`
}

// GroqConfig configures the OpenAI-compatible Groq backend.
type GroqConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig configures the Claude backend and the vision analyzer.
type AnthropicConfig struct {
	APIKey      string `mapstructure:"api_key"`
	VisionModel string `mapstructure:"vision_model"`
}

// GoogleConfig configures the Gemini backend.
type GoogleConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// SearchConfig holds configuration for web search providers
type SearchConfig struct {
	Provider          string        `mapstructure:"provider"` // "brave", "exa" or ""
	Brave             BraveConfig   `mapstructure:"brave"`
	Exa               ExaConfig     `mapstructure:"exa"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// BraveConfig holds Brave Search API configuration
type BraveConfig struct {
	APIKey string `mapstructure:"api_key"`
	URL    string `mapstructure:"url"`
}

// ExaConfig holds Exa AI Search API configuration
type ExaConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AgentConfig bounds orchestrator runs.
type AgentConfig struct {
	MaxIterations          int           `mapstructure:"max_iterations"`
	SimpleMaxIterations    int           `mapstructure:"simple_max_iterations"`
	RunTimeout             time.Duration `mapstructure:"run_timeout"`
	ClarificationThreshold float64       `mapstructure:"clarification_threshold"`
}

// StorageConfig configures the local blob store for uploaded files.
type StorageConfig struct {
	Dir           string `mapstructure:"dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// AssetsConfig configures document extraction tools.
type AssetsConfig struct {
	PDFToTextPath string `mapstructure:"pdftotext_path"`
}

// Credentials are the provider API keys in locked memory.
type Credentials struct {
	Groq      *securemem.Secret
	Anthropic *securemem.Secret
	Google    *securemem.Secret
	Brave     *securemem.Secret
	Exa       *securemem.Secret
}

// Destroy wipes every credential.
func (c *Credentials) Destroy() {
	for _, s := range []*securemem.Secret{c.Groq, c.Anthropic, c.Google, c.Brave, c.Exa} {
		s.Destroy()
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{Path: filepath.Join(DataDir(), "hyphertext.db")},
		Logging:  LoggingConfig{Level: "info", Path: "-"},
		Models:   ModelsConfig{Default: "groq/llama-3.3-70b"},
		Groq:     GroqConfig{BaseURL: "https://api.groq.com/openai/v1/"},
		Anthropic: AnthropicConfig{
			VisionModel: "claude-haiku-4-5",
		},
		Search: SearchConfig{
			Provider:          "brave",
			Brave:             BraveConfig{URL: "https://api.search.brave.com/res/v1/web/search"},
			RequestsPerSecond: 1,
			Timeout:           consts.SearchTimeout,
		},
		Agent: AgentConfig{
			MaxIterations:          consts.MaxToolIterations,
			SimpleMaxIterations:    consts.SimpleEditIterations,
			RunTimeout:             consts.RunTimeout,
			ClarificationThreshold: consts.ClarificationConfidenceThreshold,
		},
		Storage: StorageConfig{
			Dir:           filepath.Join(DataDir(), "files"),
			PublicBaseURL: "http://localhost:8000/files",
		},
		Assets: AssetsConfig{PDFToTextPath: "pdftotext"},
	}
}

// SetDefaults registers every key on v so env overrides work even without a
// config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.path", d.Logging.Path)

	v.SetDefault("models.default", d.Models.Default)

	v.SetDefault("groq.api_key", "")
	v.SetDefault("groq.base_url", d.Groq.BaseURL)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.vision_model", d.Anthropic.VisionModel)
	v.SetDefault("google.api_key", "")

	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.brave.api_key", "")
	v.SetDefault("search.brave.url", d.Search.Brave.URL)
	v.SetDefault("search.exa.api_key", "")
	v.SetDefault("search.requests_per_second", d.Search.RequestsPerSecond)
	v.SetDefault("search.timeout", d.Search.Timeout)

	v.SetDefault("agent.max_iterations", d.Agent.MaxIterations)
	v.SetDefault("agent.simple_max_iterations", d.Agent.SimpleMaxIterations)
	v.SetDefault("agent.run_timeout", d.Agent.RunTimeout)
	v.SetDefault("agent.clarification_threshold", d.Agent.ClarificationThreshold)

	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.public_base_url", d.Storage.PublicBaseURL)

	v.SetDefault("assets.pdftotext_path", d.Assets.PDFToTextPath)
}

// BindEnv wires the environment into v: HYPHERTEXT_SERVER_ADDR style names
// for every key, plus the conventional provider variables as aliases.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	aliases := map[string]string{
		"groq.api_key":         "GROQ_API_KEY",
		"anthropic.api_key":    "ANTHROPIC_API_KEY",
		"google.api_key":       "GEMINI_API_KEY",
		"search.brave.api_key": "BRAVE_SEARCH_API_KEY",
		"search.exa.api_key":   "EXA_API_KEY",
	}
	for key, env := range aliases {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
}

// Load unmarshals v into a Config, validates it and moves the API keys
// into locked memory.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	cfg.sealCredentials()
	return &cfg, nil
}

func (c *Config) sealCredentials() {
	c.Credentials = Credentials{
		Groq:      securemem.New(c.Groq.APIKey),
		Anthropic: securemem.New(c.Anthropic.APIKey),
		Google:    securemem.New(c.Google.APIKey),
		Brave:     securemem.New(c.Search.Brave.APIKey),
		Exa:       securemem.New(c.Search.Exa.APIKey),
	}
	c.Groq.APIKey = ""
	c.Anthropic.APIKey = ""
	c.Google.APIKey = ""
	c.Search.Brave.APIKey = ""
	c.Search.Exa.APIKey = ""
}

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalid.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalid
}

// ErrInvalid matches any ValidationErrors value.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks value ranges and enumerations.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr", "must not be empty")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		add("database.path", "must not be empty")
	}
	if strings.TrimSpace(c.Models.Default) == "" {
		add("models.default", "must not be empty")
	}
	switch c.Search.Provider {
	case "", "brave", "exa":
	default:
		add("search.provider", fmt.Sprintf("unknown provider %q (want brave, exa or empty)", c.Search.Provider))
	}
	if c.Search.RequestsPerSecond < 0 {
		add("search.requests_per_second", "must not be negative")
	}
	if c.Agent.MaxIterations < 1 {
		add("agent.max_iterations", "must be at least 1")
	}
	if c.Agent.SimpleMaxIterations < 1 {
		add("agent.simple_max_iterations", "must be at least 1")
	}
	if c.Agent.RunTimeout <= 0 {
		add("agent.run_timeout", "must be positive")
	}
	if c.Agent.ClarificationThreshold < 0 || c.Agent.ClarificationThreshold > 1 {
		add("agent.clarification_threshold", "must be between 0 and 1")
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		add("storage.dir", "must not be empty")
	}

	return errs
}

// ConfigDir returns the directory searched for config.yaml.
func ConfigDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "hyphertext")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hyphertext"
	}
	return filepath.Join(home, ".config", "hyphertext")
}

// DataDir returns the default directory for the database and uploaded files.
func DataDir() string {
	if state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); state != "" {
		return filepath.Join(state, "hyphertext")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hyphertext"
	}
	return filepath.Join(home, ".local", "state", "hyphertext")
}

package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeHTTP  = "http"
	ModeStdio = "stdio"
	ModeCLI   = "cli" // one-shot command, no listeners

	// Provider constants
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderCompat = "compat"

	EnvPrefix = "PATIENTDOC"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Template TemplateConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Mode      string
	HTTPAddr  string
	GRPCAddr  string
	OutputDir string // where the stdio tool writes generated documents
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	// JSONMode asks the provider for a bare JSON object. Off means the reply may be
	// wrapped in prose or code fences and is scanned for the object.
	JSONMode bool
}

// TemplateConfig holds document template configuration
type TemplateConfig struct {
	Path string
}

// AuthConfig holds the shared-secret gate configuration
type AuthConfig struct {
	Password string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // text or json
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Mode:      ModeHTTP,
			HTTPAddr:  ":8080",
			GRPCAddr:  ":9090",
			OutputDir: ".",
		},
		LLM: LLMConfig{
			Provider: ProviderGemini,
			Model:    "gemini-2.5-flash",
			Timeout:  60 * time.Second,
			JSONMode: true,
		},
		Template: TemplateConfig{
			Path: "patient_template.docx",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// NewViper returns a viper instance with defaults and environment binding set up.
// Keys use dots (llm.api_key) and map to PATIENTDOC_LLM_API_KEY.
func NewViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.http_addr", cfg.Server.HTTPAddr)
	v.SetDefault("server.grpc_addr", cfg.Server.GRPCAddr)
	v.SetDefault("server.output_dir", cfg.Server.OutputDir)
	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.timeout", cfg.LLM.Timeout)
	v.SetDefault("llm.json_mode", cfg.LLM.JSONMode)
	v.SetDefault("template.path", cfg.Template.Path)
	v.SetDefault("auth.password", cfg.Auth.Password)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	return v
}

// DefineFlags registers command line flags on fs and binds them to v.
func DefineFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("config", "", "Optional config file (yaml, toml or json)")
	fs.String("mode", v.GetString("server.mode"), "Run mode: 'http' for web UI + gRPC, 'stdio' for MCP tools")
	fs.String("http-addr", v.GetString("server.http_addr"), "HTTP listen address")
	fs.String("grpc-addr", v.GetString("server.grpc_addr"), "gRPC listen address (empty disables gRPC)")
	fs.String("output-dir", v.GetString("server.output_dir"), "Directory for documents written by stdio tools")
	fs.String("provider", v.GetString("llm.provider"), "Completion provider: gemini, openai or compat")
	fs.String("model", v.GetString("llm.model"), "Model identifier")
	fs.String("base-url", v.GetString("llm.base_url"), "Provider base URL override")
	fs.Duration("timeout", v.GetDuration("llm.timeout"), "Completion request timeout")
	fs.Bool("json-mode", v.GetBool("llm.json_mode"), "Ask the provider for strict JSON output")
	fs.String("template", v.GetString("template.path"), "Document template path (.docx or .xlsx)")
	fs.String("log-level", v.GetString("log.level"), "Log level (debug, info, warn, error)")
	fs.String("log-format", v.GetString("log.format"), "Log format (text, json)")

	_ = v.BindPFlag("server.mode", fs.Lookup("mode"))
	_ = v.BindPFlag("server.http_addr", fs.Lookup("http-addr"))
	_ = v.BindPFlag("server.grpc_addr", fs.Lookup("grpc-addr"))
	_ = v.BindPFlag("server.output_dir", fs.Lookup("output-dir"))
	_ = v.BindPFlag("llm.provider", fs.Lookup("provider"))
	_ = v.BindPFlag("llm.model", fs.Lookup("model"))
	_ = v.BindPFlag("llm.base_url", fs.Lookup("base-url"))
	_ = v.BindPFlag("llm.timeout", fs.Lookup("timeout"))
	_ = v.BindPFlag("llm.json_mode", fs.Lookup("json-mode"))
	_ = v.BindPFlag("template.path", fs.Lookup("template"))
	_ = v.BindPFlag("log.level", fs.Lookup("log-level"))
	_ = v.BindPFlag("log.format", fs.Lookup("log-format"))
}

// LoadConfig parses args into a configuration. Secrets (API key, password) are read from
// the environment or the config file only, never from flags.
func LoadConfig(args []string) (*Config, error) {
	cfg, _, err := LoadConfigArgs(args)
	return cfg, err
}

// LoadConfigArgs is LoadConfig that also returns the positional arguments.
func LoadConfigArgs(args []string) (*Config, []string, error) {
	cfg := DefaultConfig()
	v := NewViper(cfg)

	fs := pflag.NewFlagSet("patientdoc", pflag.ContinueOnError)
	DefineFlags(fs, v)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
		}
	}

	populateConfig(cfg, v)

	// Provider-conventional key names are honored when the prefixed ones are unset.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKeyFromEnv(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

// populateConfig fills the config struct with values from viper
func populateConfig(cfg *Config, v *viper.Viper) {
	cfg.Server.Mode = v.GetString("server.mode")
	cfg.Server.HTTPAddr = v.GetString("server.http_addr")
	cfg.Server.GRPCAddr = v.GetString("server.grpc_addr")
	cfg.Server.OutputDir = v.GetString("server.output_dir")
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))
	cfg.LLM.Model = v.GetString("llm.model")
	cfg.LLM.APIKey = v.GetString("llm.api_key")
	cfg.LLM.BaseURL = v.GetString("llm.base_url")
	cfg.LLM.Timeout = v.GetDuration("llm.timeout")
	cfg.LLM.JSONMode = v.GetBool("llm.json_mode")
	cfg.Template.Path = v.GetString("template.path")
	cfg.Auth.Password = v.GetString("auth.password")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
}

func providerKeyFromEnv(provider string) string {
	switch provider {
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case ProviderOpenAI, ProviderCompat:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case ModeHTTP, ModeStdio, ModeCLI:
	default:
		return NewAppError("CONFIG_ERROR", "mode must be 'http', 'stdio' or 'cli'", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	case ProviderCompat:
		if c.LLM.BaseURL == "" {
			return NewAppError("CONFIG_ERROR", "llm.base_url is required for the compat provider", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "an API key is required (PATIENTDOC_LLM_API_KEY)", ErrInvalidInput)
	}
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "llm.model is required", ErrInvalidInput)
	}
	if c.Template.Path == "" {
		return NewAppError("CONFIG_ERROR", "template.path is required", ErrInvalidInput)
	}
	if c.Server.Mode == ModeHTTP {
		if c.Server.HTTPAddr == "" {
			return NewAppError("CONFIG_ERROR", "server.http_addr is required", ErrInvalidInput)
		}
		if c.Auth.Password == "" {
			return NewAppError("CONFIG_ERROR", "auth.password is required in http mode (PATIENTDOC_AUTH_PASSWORD)", ErrInvalidInput)
		}
	}
	return nil
}

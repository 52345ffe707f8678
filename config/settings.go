// Package config provides application settings loaded from environment variables
// and an optional YAML file.
//
// Settings are created via Load() which handles:
// - Default value application
// - YAML file overlay (explicit path or $CODA_HOME/config.yaml)
// - Environment variable parsing with validation
// - Provider-specific configuration lookup

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig
	Commands CommandsConfig
	Files    FilesConfig
	Parser   ParserConfig
	Git      GitConfig
	Test     TestConfig
	Storage  StorageConfig
	Log      LogConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
	Timeout     time.Duration
}

// CommandsConfig controls the shell command allow-list.
type CommandsConfig struct {
	Allowed  []string
	Extended bool
	Policy   string
	Timeout  time.Duration
}

// AllowList returns the effective allow-list.
func (c CommandsConfig) AllowList() []string {
	allowed := c.Allowed
	if len(allowed) == 0 {
		allowed = BaseCommands
	}
	if !c.Extended {
		return allowed
	}
	out := append([]string{}, allowed...)
	for _, cmd := range ExtendedCommands {
		if !contains(out, cmd) {
			out = append(out, cmd)
		}
	}
	return out
}

// FilesConfig controls file modification.
type FilesConfig struct {
	Strict bool
}

// ParserConfig selects the reply grammar.
type ParserConfig struct {
	Grammar string
}

// GitConfig controls the post-modify commit hook.
type GitConfig struct {
	Enabled bool
	Message string
}

// TestConfig controls the post-modify test-run hook.
type TestConfig struct {
	Enabled     bool
	File        string
	Interpreter string
	Timeout     time.Duration
}

// StorageConfig holds persistence locations.
type StorageConfig struct {
	HistoryFile string
	DBPath      string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
	File  string
}

// Command policies.
const (
	PolicyFirstToken   = "first_token"
	PolicyEveryCommand = "every_command"
)

// Reply grammars.
const (
	GrammarTags   = "tags"
	GrammarFenced = "fenced"
)

// BaseCommands is the default shell allow-list.
var BaseCommands = []string{"ls", "cat", "grep", "head", "tail", "wc", "diff", "find", "sort", "uniq"}

// ExtendedCommands are added when Commands.Extended is set.
var ExtendedCommands = []string{"cd", "mkdir", "touch", "for"}

// ConfigError reports a missing or invalid configuration value.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// genericAPIKeyEnv is consulted when the provider-specific variable is unset.
const genericAPIKeyEnv = "API_KEY"

// DefaultProvider is used when neither flag, env nor file name one.
const DefaultProvider = "anthropic"

// fileSettings mirrors the YAML layout. Pointers distinguish unset from zero.
type fileSettings struct {
	LLM struct {
		Provider       string   `yaml:"provider"`
		Model          string   `yaml:"model"`
		MaxTokens      *uint32  `yaml:"max_tokens"`
		Temperature    *float64 `yaml:"temperature"`
		TimeoutSeconds *int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Commands struct {
		Allowed        []string `yaml:"allowed"`
		Extended       *bool    `yaml:"extended"`
		Policy         string   `yaml:"policy"`
		TimeoutSeconds *int     `yaml:"timeout_seconds"`
	} `yaml:"commands"`
	Files struct {
		Strict *bool `yaml:"strict"`
	} `yaml:"files"`
	Parser struct {
		Grammar string `yaml:"grammar"`
	} `yaml:"parser"`
	Git struct {
		Enabled *bool  `yaml:"enabled"`
		Message string `yaml:"message"`
	} `yaml:"git"`
	Test struct {
		Enabled        *bool  `yaml:"enabled"`
		File           string `yaml:"file"`
		Interpreter    string `yaml:"interpreter"`
		TimeoutSeconds *int   `yaml:"timeout_seconds"`
	} `yaml:"test"`
	Storage struct {
		HistoryFile string `yaml:"history_file"`
		DBPath      string `yaml:"db_path"`
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Defaults returns settings with every default applied and no file or env overlay.
func Defaults() Settings {
	home := DataDir()
	return Settings{
		LLM: LLMConfig{
			Provider:    DefaultProvider,
			Model:       providers[DefaultProvider].defaultModel,
			MaxTokens:   1024,
			Temperature: 0,
			Timeout:     120 * time.Second,
		},
		Commands: CommandsConfig{
			Policy:  PolicyFirstToken,
			Timeout: 30 * time.Second,
		},
		Files:  FilesConfig{Strict: true},
		Parser: ParserConfig{Grammar: GrammarTags},
		Git:    GitConfig{Message: "Claude's modification"},
		Test: TestConfig{
			Interpreter: "python",
			Timeout:     60 * time.Second,
		},
		Storage: StorageConfig{
			HistoryFile: filepath.Join(home, "history.json"),
			DBPath:      filepath.Join(home, "coda.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(home, "coda.log"),
		},
	}
}

// Load builds settings from defaults, the YAML file at path (or the default
// config file when path is empty and the file exists) and the environment.
// A non-empty provider overrides every other source.
func Load(path, provider string) (Settings, error) {
	s := Defaults()

	file, err := readFile(path)
	if err != nil {
		return Settings{}, err
	}
	if file != nil {
		applyFile(&s, file)
	}

	if provider == "" {
		provider = os.Getenv("CODA_PROVIDER")
	}
	if provider == "" && file != nil {
		provider = file.LLM.Provider
	}
	if provider == "" {
		provider = DefaultProvider
	}
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}
	s.LLM.Provider = provider

	// A file model only applies when it was written for this provider.
	if file == nil || file.LLM.Model == "" || normalizeProvider(file.LLM.Provider) != provider {
		s.LLM.Model = info.defaultModel
	}
	if model := os.Getenv(info.modelEnv); model != "" {
		s.LLM.Model = model
	}

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks enumerated values.
func (s Settings) Validate() error {
	switch s.Commands.Policy {
	case PolicyFirstToken, PolicyEveryCommand:
	default:
		return &ConfigError{Key: "commands.policy", Msg: fmt.Sprintf("unknown policy %q", s.Commands.Policy)}
	}
	switch s.Parser.Grammar {
	case GrammarTags, GrammarFenced:
	default:
		return &ConfigError{Key: "parser.grammar", Msg: fmt.Sprintf("unknown grammar %q", s.Parser.Grammar)}
	}
	if s.LLM.Timeout <= 0 || s.Commands.Timeout <= 0 {
		return &ConfigError{Key: "timeout", Msg: "timeouts must be positive"}
	}
	return nil
}

// DataDir returns the directory holding history, database and logs.
func DataDir() string {
	if dir := os.Getenv("CODA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coda"
	}
	return filepath.Join(home, ".coda")
}

func readFile(path string) (*fileSettings, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(DataDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fs, nil
}

func applyFile(s *Settings, f *fileSettings) {
	if f.LLM.Model != "" {
		s.LLM.Model = f.LLM.Model
	}
	if f.LLM.MaxTokens != nil {
		s.LLM.MaxTokens = *f.LLM.MaxTokens
	}
	if f.LLM.Temperature != nil {
		s.LLM.Temperature = *f.LLM.Temperature
	}
	if f.LLM.TimeoutSeconds != nil {
		s.LLM.Timeout = time.Duration(*f.LLM.TimeoutSeconds) * time.Second
	}

	if len(f.Commands.Allowed) > 0 {
		s.Commands.Allowed = f.Commands.Allowed
	}
	if f.Commands.Extended != nil {
		s.Commands.Extended = *f.Commands.Extended
	}
	if f.Commands.Policy != "" {
		s.Commands.Policy = f.Commands.Policy
	}
	if f.Commands.TimeoutSeconds != nil {
		s.Commands.Timeout = time.Duration(*f.Commands.TimeoutSeconds) * time.Second
	}

	if f.Files.Strict != nil {
		s.Files.Strict = *f.Files.Strict
	}
	if f.Parser.Grammar != "" {
		s.Parser.Grammar = f.Parser.Grammar
	}

	if f.Git.Enabled != nil {
		s.Git.Enabled = *f.Git.Enabled
	}
	if f.Git.Message != "" {
		s.Git.Message = f.Git.Message
	}

	if f.Test.Enabled != nil {
		s.Test.Enabled = *f.Test.Enabled
	}
	if f.Test.File != "" {
		s.Test.File = f.Test.File
	}
	if f.Test.Interpreter != "" {
		s.Test.Interpreter = f.Test.Interpreter
	}
	if f.Test.TimeoutSeconds != nil {
		s.Test.Timeout = time.Duration(*f.Test.TimeoutSeconds) * time.Second
	}

	if f.Storage.HistoryFile != "" {
		s.Storage.HistoryFile = f.Storage.HistoryFile
	}
	if f.Storage.DBPath != "" {
		s.Storage.DBPath = f.Storage.DBPath
	}
	if f.Log.Level != "" {
		s.Log.Level = f.Log.Level
	}
	if f.Log.File != "" {
		s.Log.File = f.Log.File
	}
}

func applyEnv(s *Settings) error {
	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens)
	if err != nil {
		return err
	}
	s.LLM.MaxTokens = maxTokens

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature)
	if err != nil {
		return err
	}
	s.LLM.Temperature = temperature

	modelTimeout, err := getEnvInt("CODA_MODEL_TIMEOUT", int(s.LLM.Timeout/time.Second))
	if err != nil {
		return err
	}
	s.LLM.Timeout = time.Duration(modelTimeout) * time.Second

	cmdTimeout, err := getEnvInt("CODA_COMMAND_TIMEOUT", int(s.Commands.Timeout/time.Second))
	if err != nil {
		return err
	}
	s.Commands.Timeout = time.Duration(cmdTimeout) * time.Second

	if level := os.Getenv("CODA_LOG_LEVEL"); level != "" {
		s.Log.Level = level
	}
	return nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, &ConfigError{Key: "provider", Msg: fmt.Sprintf("unknown provider %q", provider)}
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider: the provider-specific
// variable first, then the generic API_KEY.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if key := os.Getenv(info.apiKeyEnv); key != "" {
		return key, nil
	}
	if key := os.Getenv(genericAPIKeyEnv); key != "" {
		return key, nil
	}
	return "", &ConfigError{
		Key: info.apiKeyEnv,
		Msg: fmt.Sprintf("API key not set; export %s or %s", info.apiKeyEnv, genericAPIKeyEnv),
	}
}

// SupportedProviders returns the supported provider names in sorted order.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, &ConfigError{Key: key, Msg: fmt.Sprintf("invalid value %q: %v", val, err)}
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, &ConfigError{Key: key, Msg: fmt.Sprintf("invalid value %q: %v", val, err)}
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, &ConfigError{Key: key, Msg: fmt.Sprintf("invalid value %q: %v", val, err)}
	}
	return f, nil
}

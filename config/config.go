// Package config handles configuration loading: a YAML file located via a
// search path, with environment variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/my-ai-ide/config.yaml, /etc/my-ai-ide/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "my-ai-ide", "config.yaml"))
	}

	paths = append(paths, "/etc/my-ai-ide/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Agent     AgentConfig     `yaml:"agent"`
	Autoloop  AutoloopConfig  `yaml:"autoloop"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	ShellExec ShellExecConfig `yaml:"shell_exec"`
	LogLevel  string          `yaml:"log_level" env:"AIIDE_LOG_LEVEL"`
}

// ModelConfig selects the model and provider for agent sessions.
type ModelConfig struct {
	Name        string  `yaml:"name" env:"AIIDE_MODEL"`
	Provider    string  `yaml:"provider" env:"AIIDE_PROVIDER"` // openai, anthropic
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// AgentConfig tunes a single agent session.
type AgentConfig struct {
	MaxRounds         int    `yaml:"max_rounds" env:"AIIDE_MAX_ROUNDS"`
	DetectRepetition  bool   `yaml:"detect_repetition"`
	RepetitionWindow  int    `yaml:"repetition_window"`
	ExtraInstructions string `yaml:"extra_instructions"`
}

// AutoloopConfig tunes the autonomous outer loop.
type AutoloopConfig struct {
	MaxCycles          int      `yaml:"max_cycles" env:"AIIDE_MAX_CYCLES"`
	DevServerCommand   string   `yaml:"dev_server_command" env:"AIIDE_DEV_SERVER_COMMAND"`
	DevServerDir       string   `yaml:"dev_server_dir"`
	PreviewURL         string   `yaml:"preview_url" env:"AIIDE_PREVIEW_URL"`
	SuccessCriteria    string   `yaml:"success_criteria"`
	CheckInterval      int      `yaml:"check_interval"`
	CompletionKeywords []string `yaml:"completion_keywords"`
}

// WorkspaceConfig defines the root directory for file operations.
// All file tool paths are relative to this directory.
type WorkspaceConfig struct {
	Path string `yaml:"path" env:"AIIDE_WORKSPACE"`
}

// ShellExecConfig bounds shell command execution.
type ShellExecConfig struct {
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`
	MaxTimeoutMs     int `yaml:"max_timeout_ms"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references inside the file before decoding.
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name: "claude-sonnet-4-5",
		},
		Agent: AgentConfig{
			MaxRounds: 15,
		},
		Autoloop: AutoloopConfig{
			MaxCycles:     20,
			CheckInterval: 3,
		},
		ShellExec: ShellExecConfig{
			DefaultTimeoutMs: 120000,
			MaxTimeoutMs:     600000,
		},
		LogLevel: "info",
	}
}

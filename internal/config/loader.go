package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Environment keys that override file values.
const (
	EnvOuroAPIKey       = "OURO_API_KEY"
	EnvOuroBackendURL   = "OURO_BACKEND_URL"
	EnvOuroBackendWSURL = "OURO_BACKEND_WS_URL"
	EnvOuroFrontendURL  = "OURO_FRONTEND_URL"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_BASE_URL"
)

var envKeys = []string{
	EnvOuroAPIKey,
	EnvOuroBackendURL,
	EnvOuroBackendWSURL,
	EnvOuroFrontendURL,
	EnvOpenAIAPIKey,
	EnvOpenAIBaseURL,
}

// ConfigPath returns the default configuration file path: ~/.hermes/config.json.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hermes/config.json"
	}
	return filepath.Join(home, ".hermes", "config.json")
}

// DataDir returns the hermes data directory: ~/.hermes.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hermes"
	}
	return filepath.Join(home, ".hermes")
}

// Environment returns a viper instance that resolves the override keys from
// the process environment first and then from the dotenv file, if present.
func Environment(dotenv string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}
	if dotenv == "" {
		return v, nil
	}

	if _, err := os.Stat(dotenv); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("stat %s: %w", dotenv, err)
	}
	v.SetConfigFile(dotenv)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", dotenv, err)
	}
	return v, nil
}

// Load reads the config file at path and applies overrides from the
// environment and ./.env. If path is empty, ConfigPath() is used.
func Load(path string) (*Config, error) {
	env, err := Environment(".env")
	if err != nil {
		return nil, err
	}
	return LoadWith(path, env)
}

// LoadWith reads and parses the config file at path, then applies the
// overrides resolved by env (which may be nil).
// On parse failure it prints a warning and continues from DefaultConfig().
func LoadWith(path string, env *viper.Viper) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if env != nil {
		applyEnv(cfg, env)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
		fmt.Println("Using default configuration.")
		cfg2 := DefaultConfig()
		return &cfg2, nil
	}

	return &cfg, nil
}

func applyEnv(cfg *Config, env *viper.Viper) {
	override := func(dst *string, key string) {
		if s := env.GetString(key); s != "" {
			*dst = s
		}
	}
	override(&cfg.Backend.APIKey, EnvOuroAPIKey)
	override(&cfg.Backend.URL, EnvOuroBackendURL)
	override(&cfg.Backend.WSURL, EnvOuroBackendWSURL)
	override(&cfg.Gateway.FrontendURL, EnvOuroFrontendURL)
	override(&cfg.Providers.OpenAI.APIKey, EnvOpenAIAPIKey)
	override(&cfg.Providers.OpenAI.APIBase, EnvOpenAIBaseURL)
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

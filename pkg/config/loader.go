package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/compii/playground/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, PLAYGROUND_CONFIG env, ./config.yaml, /etc/playground/config.yaml)
//  3. .env file (PLAYGROUND_ENV_FILE or ./.env); process environment wins
//  4. PLAYGROUND_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	env, err := loadEnv(os.Getenv("PLAYGROUND_ENV_FILE"))
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. PLAYGROUND_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/playground/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("PLAYGROUND_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/playground/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envSource looks up variables in the process environment first and falls
// back to values read from a .env file. The process environment is never
// modified.
type envSource struct {
	dotenv map[string]string
}

func (e envSource) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok
}

func (e envSource) get(key string) string {
	v, _ := e.lookup(key)
	return v
}

// loadEnv reads the .env file at path, or ./.env when path is empty.
// A missing default file is not an error; a missing explicit file is.
func loadEnv(path string) (envSource, error) {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return envSource{}, nil
		}
		return envSource{}, fmt.Errorf("reading env file %s: %w", path, err)
	}
	debug.Log("config", "loaded env file", "path", path, "vars", len(values))
	return envSource{dotenv: values}, nil
}

// applyEnvOverrides maps PLAYGROUND_* variables to config fields.
func applyEnvOverrides(cfg *Config, env envSource) error {
	var errs []error

	setInt := func(key string, dst *int) {
		if v := env.get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setString := func(key string, dst *string) {
		if v := env.get(key); v != "" {
			*dst = v
		}
	}

	setInt("PLAYGROUND_PORT", &cfg.Server.Port)
	setString("PLAYGROUND_STATIC_DIR", &cfg.Server.StaticDir)

	setString("PLAYGROUND_COMPILER_PATH", &cfg.Compiler.Path)
	if v := env.get("PLAYGROUND_COMPILER_ARGS"); v != "" {
		cfg.Compiler.Args = strings.Fields(v)
	}
	if v := env.get("PLAYGROUND_COMPILER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLAYGROUND_COMPILER_TIMEOUT: %w", err))
		} else {
			cfg.Compiler.Timeout = d
		}
	}
	setInt("PLAYGROUND_MAX_CONCURRENT", &cfg.Compiler.MaxConcurrent)

	setString("PLAYGROUND_STORAGE", &cfg.Storage.Type)
	setInt("PLAYGROUND_STORAGE_SIZE", &cfg.Storage.MaxSize)
	setString("PLAYGROUND_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)

	setString("PLAYGROUND_AUTH_TYPE", &cfg.Auth.Type)
	if v := env.get("PLAYGROUND_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLAYGROUND_API_KEYS: %w", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
	setString("PLAYGROUND_JWT_SECRET", &cfg.Auth.JWT.Secret)

	if v := env.get("PLAYGROUND_MCP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLAYGROUND_MCP_ENABLED: %w", err))
		} else {
			cfg.MCP.Enabled = b
		}
	}

	setString("PLAYGROUND_LOG_LEVEL", &cfg.Logging.Level)
	setString("PLAYGROUND_LOG_FORMAT", &cfg.Logging.Format)
	setString("PLAYGROUND_DEBUG", &cfg.Logging.Debug)

	return errors.Join(errs...)
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

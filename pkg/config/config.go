// Package config provides unified configuration for the playground server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. .env file (never overrides variables already set)
//  4. Environment variable overrides (PLAYGROUND_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the playground server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Compiler      CompilerConfig      `yaml:"compiler"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	MCP           MCPConfig           `yaml:"mcp"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 5000
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (bounded by compiler.timeout)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
	StaticDir       string        `yaml:"static_dir"`       // default: "."; empty disables static serving
	CORSOrigins     []string      `yaml:"cors_origins"`     // default: ["*"]
}

// CompilerConfig describes the external compiler executable and how it is run.
type CompilerConfig struct {
	Path           string        `yaml:"path"`             // default: "./compii"
	Args           []string      `yaml:"args"`             // placed before the program file
	FileExtension  string        `yaml:"file_extension"`   // default: ".compii"
	WorkDir        string        `yaml:"work_dir"`         // default: system temp dir
	Timeout        time.Duration `yaml:"timeout"`          // default: 30s, 0 disables
	MaxConcurrent  int           `yaml:"max_concurrent"`   // default: 4, 0 = unbounded
	QueueTimeout   time.Duration `yaml:"queue_timeout"`    // default: 10s
	MaxOutputBytes int           `yaml:"max_output_bytes"` // default: 1 MiB per stream
}

// StorageConfig holds run history settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "none", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type         string         `yaml:"type"`           // "none", "apikey" or "jwt", default: "none"
	APIKeys      []APIKeyConfig `yaml:"api_keys"`       // entries for type=apikey
	JWT          JWTConfig      `yaml:"jwt"`            // settings for type=jwt
	RateLimitRPM int            `yaml:"rate_limit_rpm"` // per subject, 0 disables
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds HMAC bearer token validation settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`      // optional
	Audience   string `yaml:"audience"`    // optional
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // default: "/mcp"
}

// LoggingConfig controls the slog handler and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 << 20,
			StaticDir:       ".",
			CORSOrigins:     []string{"*"},
		},
		Compiler: CompilerConfig{
			Path:           "./compii",
			FileExtension:  ".compii",
			Timeout:        30 * time.Second,
			MaxConcurrent:  4,
			QueueTimeout:   10 * time.Second,
			MaxOutputBytes: 1 << 20,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

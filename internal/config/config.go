package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every environment override, e.g. DOI_SERVER_PORT -> server.port.
const EnvPrefix = "DOI_"

type Config struct {
	Server       Server       `koanf:"server"`
	Database     Database     `koanf:"database"`
	Log          Log          `koanf:"log"`
	AI           AI           `koanf:"ai"`
	Validation   Validation   `koanf:"validation"`
	Transmission Transmission `koanf:"transmission"`
}

type Server struct {
	Port string `koanf:"port"`
	Env  string `koanf:"env"`
}

type Database struct {
	// Driver is "postgres" or "memory".
	Driver string `koanf:"driver"`
	Source string `koanf:"source"`
}

type Log struct {
	Level string `koanf:"level"`
}

type AI struct {
	// Provider is "gemini", "openai" or "none". BaseURL points the openai
	// provider at a compatible endpoint.
	Provider          string        `koanf:"provider"`
	Model             string        `koanf:"model"`
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
}

// Validation controls how the AI pre-check behaves when the auditor is unavailable.
// "lenient" lets records through, "strict" rejects them.
type Validation struct {
	Mode string `koanf:"mode"`
}

// Transmission holds the simulated tax-authority channel delays.
type Transmission struct {
	HandshakeDelay time.Duration `koanf:"handshake_delay"`
	PayloadDelay   time.Duration `koanf:"payload_delay"`
	SubmitDelay    time.Duration `koanf:"submit_delay"`
}

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", Env: "development"},
		Database: Database{Driver: "postgres"},
		Log:      Log{Level: "info"},
		AI: AI{
			Provider:          "gemini",
			Model:             "gemini-2.5-flash",
			Timeout:           60 * time.Second,
			RequestsPerMinute: 30,
		},
		Validation: Validation{Mode: "lenient"},
		Transmission: Transmission{
			HandshakeDelay: 800 * time.Millisecond,
			PayloadDelay:   600 * time.Millisecond,
			SubmitDelay:    1200 * time.Millisecond,
		},
	}
}

// Load reads defaults, then the optional YAML file at path, then DOI_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DOI_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Source == "" {
			return fmt.Errorf("DOI_DATABASE_SOURCE environment variable is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Validation.Mode {
	case "lenient", "strict":
	default:
		return fmt.Errorf("unknown validation mode %q", c.Validation.Mode)
	}
	switch c.AI.Provider {
	case "gemini", "openai", "none":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	return nil
}

// StrictValidation reports whether AI outages should block transmission.
func (c *Config) StrictValidation() bool {
	return c.Validation.Mode == "strict"
}

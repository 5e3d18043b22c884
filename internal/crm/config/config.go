// Package config loads the service configuration from a YAML or TOML file,
// an optional .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/upload"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when none is given.
var DefaultPath = filepath.Join("internal", "crm", "config", "config.yaml")

// Blob drivers.
const (
	BlobDisk = "disk"
	BlobHTTP = "http"
)

type BlobConfig struct {
	Driver string `yaml:"DRIVER" toml:"driver"`
	// Root is the directory of the disk driver.
	Root string `yaml:"ROOT" toml:"root"`
	// BaseURL is the public URL prefix (disk) or the API endpoint (http).
	BaseURL    string `yaml:"BASE_URL" toml:"base_url"`
	Token      string `yaml:"TOKEN" toml:"token"`
	MaxRetries uint64 `yaml:"MAX_RETRIES" toml:"max_retries"`
}

type PipelineConfig struct {
	StrictTransitions bool `yaml:"STRICT_TRANSITIONS" toml:"strict_transitions"`
}

// Config struct for YAML or TOML configuration
type Config struct {
	GRPCPort     int      `yaml:"GRPC_PORT" toml:"grpc_port"`
	HTTPPort     int      `yaml:"HTTP_PORT" toml:"http_port"`
	DataDir      string   `yaml:"DATA_DIR" toml:"data_dir"`
	Seed         bool     `yaml:"SEED" toml:"seed"`
	WatchData    bool     `yaml:"WATCH_DATA" toml:"watch_data"`
	KafkaBrokers []string `yaml:"KAFKA_BROKERS" toml:"kafka_brokers"`
	Topic        string   `yaml:"TOPIC" toml:"topic"`
	JWTSecret    string   `yaml:"JWT_SECRET" toml:"jwt_secret"`

	Blob     BlobConfig     `yaml:"BLOB" toml:"blob"`
	Pipeline PipelineConfig `yaml:"PIPELINE" toml:"pipeline"`
	// Upload overrides entries of the upload policy table by context name.
	Upload map[string]upload.Policy `yaml:"UPLOAD" toml:"upload"`
	// Users replaces the built-in accounts of the credential service.
	Users []auth.User `yaml:"USERS" toml:"users"`
}

// Default returns the configuration used for anything a file leaves unset.
func Default() *Config {
	return &Config{
		GRPCPort:  50051,
		HTTPPort:  8080,
		DataDir:   "data",
		Seed:      true,
		WatchData: true,
		Topic:     "crm.events",
		JWTSecret: "jwt_secret",
		Blob: BlobConfig{
			Driver:     BlobDisk,
			Root:       filepath.Join("data", "blobs"),
			BaseURL:    "http://localhost:8080/files",
			MaxRetries: 4,
		},
	}
}

// LoadDotEnv loads the given .env files (".env" when none are given) into
// the process environment. Missing files are skipped; variables already set
// win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path on top of Default and applies environment overrides read
// through getenv. An empty path skips the file. A missing file at
// DefaultPath is not an error.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			if !(errors.Is(err, fs.ErrNotExist) && path == DefaultPath) {
				return nil, err
			}
		}
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	case ".yaml", ".yml":
		file, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// applyEnv overrides secrets and deployment specific settings.
func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("CRM_DATA_DIR", &cfg.DataDir)
	setString("KAFKA_TOPIC", &cfg.Topic)
	setString("BLOB_DRIVER", &cfg.Blob.Driver)
	setString("BLOB_BASE_URL", &cfg.Blob.BaseURL)
	setString("BLOB_READ_WRITE_TOKEN", &cfg.Blob.Token)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	for key, dst := range map[string]*int{"GRPC_PORT": &cfg.GRPCPort, "HTTP_PORT": &cfg.HTTPPort} {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
	}

	if v := getenv("CRM_STRICT_TRANSITIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CRM_STRICT_TRANSITIONS %q: %w", v, err)
		}
		cfg.Pipeline.StrictTransitions = b
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if c.GRPCPort <= 0 || c.HTTPPort <= 0 {
		return fmt.Errorf("ports must be positive")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	switch c.Blob.Driver {
	case BlobDisk:
		if c.Blob.Root == "" {
			return fmt.Errorf("blob root is required for the disk driver")
		}
	case BlobHTTP:
		if c.Blob.BaseURL == "" {
			return fmt.Errorf("blob base url is required for the http driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	known := upload.DefaultPolicies()
	for name, p := range c.Upload {
		if _, ok := known[upload.Context(name)]; !ok {
			return fmt.Errorf("unknown upload context %q", name)
		}
		if p.MaxBytes <= 0 {
			return fmt.Errorf("upload context %q: max_bytes must be positive", name)
		}
		if p.KeyStyle != "" && p.KeyStyle != upload.KeyFlat && p.KeyStyle != upload.KeyUserScoped {
			return fmt.Errorf("upload context %q: unknown key style %q", name, p.KeyStyle)
		}
	}
	for _, u := range c.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("users need a username and a password")
		}
	}
	return nil
}

// UploadPolicies returns the configured policy overrides keyed by context.
// Overrides without a key style keep the default one.
func (c *Config) UploadPolicies() map[upload.Context]upload.Policy {
	defaults := upload.DefaultPolicies()
	out := make(map[upload.Context]upload.Policy, len(c.Upload))
	for name, p := range c.Upload {
		ctx := upload.Context(name)
		if p.KeyStyle == "" {
			p.KeyStyle = defaults[ctx].KeyStyle
		}
		out[ctx] = p
	}
	return out
}

// AuthUsers returns the configured accounts, or the built-in ones.
func (c *Config) AuthUsers() []auth.User {
	if len(c.Users) == 0 {
		return auth.DefaultUsers()
	}
	return c.Users
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Keys        KeysConfig        `json:"keys"`
	Storage     StorageConfig     `json:"storage"`
	Limits      LimitsConfig      `json:"limits"`
	Security    SecurityConfig    `json:"security"`
	Logging     LoggingConfig     `json:"logging"`
	Database    DatabaseConfig    `json:"database"`
	Cleanup     CleanupConfig     `json:"cleanup"`
	Attestation AttestationConfig `json:"attestation"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// KeysConfig locates the signing key pair
type KeysConfig struct {
	PrivateKeyPath string `json:"private_key_path"`
	PublicKeyPath  string `json:"public_key_path"`
}

// StorageConfig selects where signed documents are kept
type StorageConfig struct {
	Backend       string        `json:"backend"` // local, s3
	LocalDir      string        `json:"local_dir"`
	Prefix        string        `json:"prefix"`
	PresignExpiry time.Duration `json:"presign_expiry"`
	S3            S3Config      `json:"s3"`
}

type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// LimitsConfig bounds per-request resources
type LimitsConfig struct {
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// SecurityConfig
type SecurityConfig struct {
	// JWTSecret signs admin tokens. Empty disables admin endpoints.
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"` // json, console
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// DatabaseConfig enables the persistent signature ledger when DSN is set
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// CleanupConfig controls pruning of old signed documents
type CleanupConfig struct {
	Enabled  bool          `json:"enabled"`
	Schedule string        `json:"schedule"`
	MaxAge   time.Duration `json:"max_age"`
}

// AttestationConfig shapes the stamped QR code
type AttestationConfig struct {
	VerificationURL string  `json:"verification_url"`
	Caption         string  `json:"caption"`
	ModulePixels    int     `json:"module_pixels"`
	Width           float64 `json:"width"`
	Margin          float64 `json:"margin"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Keys: KeysConfig{
			PrivateKeyPath: "keys/private_key.pem",
			PublicKeyPath:  "keys/public_key.pem",
		},
		Storage: StorageConfig{
			Backend:       "local",
			LocalDir:      "signed_documents",
			Prefix:        "signed/",
			PresignExpiry: 15 * time.Minute,
			S3:            S3Config{Region: "us-east-1"},
		},
		Limits: LimitsConfig{
			MaxUploadBytes: 16 << 20,
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Schedule: "@hourly",
			MaxAge:   7 * 24 * time.Hour,
		},
		Attestation: AttestationConfig{
			VerificationURL: "http://localhost:8080/api/v1/attestations/verify",
			Caption:         "Digitally certified document\nScan QR to verify",
			ModulePixels:    4,
			Width:           110,
			Margin:          20,
		},
	}
}

// LoadConfig loads configuration from file and environment variables. Each
// envFile that exists is loaded into the environment first; variables already
// set are not overwritten.
func LoadConfig(configPath string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	str := map[string]*string{
		"SERVER_HOST":           &config.Server.Host,
		"GIN_MODE":              &config.Server.Mode,
		"PRIVATE_KEY_PATH":      &config.Keys.PrivateKeyPath,
		"PUBLIC_KEY_PATH":       &config.Keys.PublicKeyPath,
		"STORAGE_BACKEND":       &config.Storage.Backend,
		"STORAGE_LOCAL_DIR":     &config.Storage.LocalDir,
		"S3_BUCKET":             &config.Storage.S3.Bucket,
		"S3_REGION":             &config.Storage.S3.Region,
		"S3_ENDPOINT":           &config.Storage.S3.Endpoint,
		"AWS_ACCESS_KEY_ID":     &config.Storage.S3.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": &config.Storage.S3.SecretAccessKey,
		"JWT_SECRET":            &config.Security.JWTSecret,
		"LOG_LEVEL":             &config.Logging.Level,
		"LOG_FORMAT":            &config.Logging.Format,
		"LOG_FILE":              &config.Logging.File,
		"DATABASE_URL":          &config.Database.DSN,
		"CLEANUP_SCHEDULE":      &config.Cleanup.Schedule,
		"VERIFICATION_URL":      &config.Attestation.VerificationURL,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		config.Limits.MaxUploadBytes = n
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT": &config.Limits.RequestTimeout,
		"CLEANUP_MAX_AGE": &config.Cleanup.MaxAge,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("CLEANUP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CLEANUP_ENABLED %q: %w", v, err)
		}
		config.Cleanup.Enabled = b
	}
	return nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Keys.PrivateKeyPath == "" || c.Keys.PublicKeyPath == "" {
		return errors.New("both key paths are required")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_bytes must be positive")
	}
	if c.Limits.RequestTimeout <= 0 {
		return errors.New("limits.request_timeout must be positive")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir is required for the local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Attestation.ModulePixels <= 0 {
		return errors.New("attestation.module_pixels must be positive")
	}
	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

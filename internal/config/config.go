// Package config loads service configuration from an optional YAML file,
// a .env file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when PHOTO_NEXUS_CONFIG is unset.
const DefaultPath = "config.yaml"

const (
	UploadPolicyRollback = "rollback"
	UploadPolicyPartial  = "partial"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Google    GoogleConfig    `yaml:"google"`
	Drive     DriveConfig     `yaml:"drive"`
	Photos    PhotosConfig    `yaml:"photos"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver             string        `yaml:"driver"`
	DSN                string        `yaml:"dsn"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	// SuccessURL is where the browser lands after a completed connect flow.
	SuccessURL string `yaml:"success_url"`
}

type DriveConfig struct {
	RootFolder       string        `yaml:"root_folder"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	PublicLinks      bool          `yaml:"public_links"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
}

type PhotosConfig struct {
	UploadFailurePolicy string `yaml:"upload_failure_policy"`
	MaxUploadBytes      int64  `yaml:"max_upload_bytes"`
	MaxFilesPerUpload   int    `yaml:"max_files_per_upload"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ReconcileConfig struct {
	// Interval between background sweeps; zero disables the loop.
	Interval        time.Duration `yaml:"interval"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:             "sqlite",
			DSN:                "photo-nexus.db",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetime:    time.Hour,
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Google: GoogleConfig{
			RedirectURL: "http://localhost:8080/auth/google/callback",
			SuccessURL:  "/",
		},
		Drive: DriveConfig{
			RootFolder:       "PhotoNexus",
			CallTimeout:      30 * time.Second,
			PublicLinks:      true,
			BatchConcurrency: 4,
		},
		Photos: PhotosConfig{
			UploadFailurePolicy: UploadPolicyRollback,
			MaxUploadBytes:      50 << 20,
			MaxFilesPerUpload:   20,
		},
		Auth: AuthConfig{
			Issuer: "photo-nexus",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Reconcile: ReconcileConfig{
			Interval:        6 * time.Hour,
			RefreshInterval: 15 * time.Minute,
		},
	}
}

// Load reads configuration from path (missing file is fine), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Host, "HOST")
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Google.RedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Photos.UploadFailurePolicy, "UPLOAD_FAILURE_POLICY")
	if v := os.Getenv("DRIVE_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DRIVE_CALL_TIMEOUT: %w", err)
		}
		c.Drive.CallTimeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite (got %q)", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch c.Photos.UploadFailurePolicy {
	case UploadPolicyRollback, UploadPolicyPartial:
	default:
		errs = append(errs, fmt.Errorf("photos.upload_failure_policy must be rollback or partial (got %q)", c.Photos.UploadFailurePolicy))
	}
	if c.Drive.CallTimeout <= 0 {
		errs = append(errs, errors.New("drive.call_timeout must be positive"))
	}
	if c.Drive.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("drive.batch_concurrency must be positive"))
	}
	if c.Drive.RootFolder == "" {
		errs = append(errs, errors.New("drive.root_folder is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required (set JWT_SECRET)"))
	}
	return errors.Join(errs...)
}

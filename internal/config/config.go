package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	LogLevelDevelopment = "development"
	LogLevelProduction  = "production"
)

type Config struct {
	ServerAddress  string        `env:"SERVER_ADDRESS"`
	BaseURL        string        `env:"BASE_URL"`
	DatabaseDSN    string        `env:"DATABASE_DSN"`
	SecretKey      string        `env:"SECRET_KEY"`
	LogLevel       string        `env:"LOG_LEVEL"`
	MigrationsPath string        `env:"MIGRATIONS_PATH"`
	GeoAPIURL      string        `env:"GEO_API_URL"`
	GeoTimeout     time.Duration `env:"GEO_TIMEOUT"`
	ScanQueueSize  int           `env:"SCAN_QUEUE_SIZE"`
	ScanWorkers    int           `env:"SCAN_WORKERS"`
	NATSURL        string        `env:"NATS_URL"`
	NATSSubject    string        `env:"NATS_SUBJECT"`

	S3 S3Config

	// SecretGenerated is set when no SECRET_KEY was given and a random one
	// was created for this process.
	SecretGenerated bool
}

type S3Config struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION"`
	Endpoint       string `env:"S3_ENDPOINT"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	BaseURL        string `env:"S3_BASE_URL"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE"`
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// ParseFlags reads command line flags, then lets environment variables
// override them, then fills in defaults.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.ServerAddress, "a", getDefaultServerAddress(), "Address of the server")
	flag.StringVar(&cfg.BaseURL, "b", getDefaultBaseURL(), "Public base URL used in tracking links")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "PostgreSQL DSN; empty keeps data in memory")
	flag.StringVar(&cfg.SecretKey, "k", "", "Secret key for session tokens")
	flag.StringVar(&cfg.LogLevel, "l", LogLevelDevelopment, "Logger preset: development or production")
	flag.DurationVar(&cfg.GeoTimeout, "geo-timeout", getDefaultGeoTimeout(), "Timeout of a single geo lookup")
	flag.IntVar(&cfg.ScanWorkers, "scan-workers", getDefaultScanWorkers(), "Number of scan recorder workers")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.applyDefaultValues(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute: %q", c.BaseURL)
	}
	if c.LogLevel != LogLevelDevelopment && c.LogLevel != LogLevelProduction {
		return fmt.Errorf("log level must be %q or %q", LogLevelDevelopment, LogLevelProduction)
	}
	if c.GeoTimeout <= 0 {
		return fmt.Errorf("geo timeout must be positive")
	}
	if c.ScanQueueSize <= 0 {
		return fmt.Errorf("scan queue size must be positive")
	}
	if c.ScanWorkers <= 0 {
		return fmt.Errorf("scan workers must be positive")
	}
	if c.S3.Enabled() && c.S3.Region == "" {
		return fmt.Errorf("S3 region cannot be empty when a bucket is set")
	}
	return nil
}

func (c *Config) applyDefaultValues() error {
	if c.ServerAddress == "" {
		c.ServerAddress = getDefaultServerAddress()
	}
	if c.BaseURL == "" {
		c.BaseURL = getDefaultBaseURL()
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelDevelopment
	}
	if c.MigrationsPath == "" {
		c.MigrationsPath = "file://migrations"
	}
	if c.GeoAPIURL == "" {
		c.GeoAPIURL = "http://ip-api.com"
	}
	if c.GeoTimeout == 0 {
		c.GeoTimeout = getDefaultGeoTimeout()
	}
	if c.ScanQueueSize == 0 {
		c.ScanQueueSize = 1024
	}
	if c.ScanWorkers == 0 {
		c.ScanWorkers = getDefaultScanWorkers()
	}
	if c.NATSSubject == "" {
		c.NATSSubject = "qrtracker.scans"
	}
	if c.SecretKey == "" {
		secret, err := generateSecret()
		if err != nil {
			return fmt.Errorf("generate secret key: %w", err)
		}
		c.SecretKey = secret
		c.SecretGenerated = true
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func getDefaultServerAddress() string {
	return "localhost:8080"
}

func getDefaultBaseURL() string {
	return "http://localhost:8080"
}

func getDefaultGeoTimeout() time.Duration {
	return 2 * time.Second
}

func getDefaultScanWorkers() int {
	return 4
}

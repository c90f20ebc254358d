package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	// Database Configurations
	DBHost     string `mapstructure:"DB_HOST"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`

	// Server Configurations
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	TLSCertFile   string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile    string `mapstructure:"TLS_KEY_FILE"`

	// Device Authentication
	JWTSecret          string `mapstructure:"JWT_SECRET"`
	TokenTTLHours      int    `mapstructure:"TOKEN_TTL_HOURS"`
	RegistrationSecret string `mapstructure:"REGISTRATION_SECRET"`

	// Sync Configurations
	MaxBatchSize  int    `mapstructure:"MAX_BATCH_SIZE"`
	MaxImageBytes int64  `mapstructure:"MAX_IMAGE_BYTES"`
	MediaRoot     string `mapstructure:"MEDIA_ROOT"`

	// Liveness Monitor Configurations
	OfflineThresholdMinutes int `mapstructure:"OFFLINE_THRESHOLD_MINUTES"`
	ErrorThresholdMinutes   int `mapstructure:"ERROR_THRESHOLD_MINUTES"`
	LivenessSweepSeconds    int `mapstructure:"LIVENESS_SWEEP_SECONDS"`

	// Report Ingestion Configurations
	IngestDropDir      string `mapstructure:"INGEST_DROP_DIR"`
	IngestSweepSeconds int    `mapstructure:"INGEST_SWEEP_SECONDS"`
	IngestGraceMs      int    `mapstructure:"INGEST_GRACE_MS"`

	// Facial-Feature Encoding Job (external collaborator)
	FaceJobDir string `mapstructure:"FACEJOB_DIR"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "fleetmon")
	v.SetDefault("DB_PASSWORD", "fleetmon")
	v.SetDefault("DB_NAME", "fleetmon")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("JWT_SECRET", "default-insecure-secret-change-me")
	v.SetDefault("TOKEN_TTL_HOURS", 12)
	v.SetDefault("REGISTRATION_SECRET", "default-insecure-registration-secret")
	v.SetDefault("MAX_BATCH_SIZE", 200)
	v.SetDefault("MAX_IMAGE_BYTES", 5*1024*1024)
	v.SetDefault("MEDIA_ROOT", "media")
	v.SetDefault("OFFLINE_THRESHOLD_MINUTES", 5)
	v.SetDefault("ERROR_THRESHOLD_MINUTES", 15)
	v.SetDefault("LIVENESS_SWEEP_SECONDS", 60)
	v.SetDefault("INGEST_DROP_DIR", "reports")
	v.SetDefault("INGEST_SWEEP_SECONDS", 30)
	v.SetDefault("INGEST_GRACE_MS", 500)
	v.SetDefault("FACEJOB_DIR", "facejob")

	// 2. Read app.yaml if exists
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 3. Read .env if exists (overriding app.yaml)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Ignore if .env is missing
		}
	}

	// 4. Allow Viper to read Environment Variables (highest priority)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

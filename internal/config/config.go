package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envDev = "dev"
)

// Config holds application configuration sourced from environment variables
// and an optional config file.
type Config struct {
	Env           string
	AdminAPIKey   string
	DBPath        string
	Port          string
	LogLevel      string
	RateCacheTTL  time.Duration
	RateCacheSize int
	BulkWorkers   int
}

// IsDev reports whether the process runs in the local development environment.
func (c Config) IsDev() bool {
	return c.Env == envDev
}

// Load reads the dotenv file, environment variables and CONFIG_FILE (when set)
// and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_, _ = loadDotEnv(".env")

	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_env", envDev)
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./dev.db")
	v.SetDefault("admin_api_key", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_cache_ttl", "5m")
	v.SetDefault("rate_cache_size", 512)
	v.SetDefault("bulk_workers", 4)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("warning: read config file %s: %v", file, err)
		}
	}
	return v
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		Env:           strings.ToLower(strings.TrimSpace(v.GetString("app_env"))),
		AdminAPIKey:   v.GetString("admin_api_key"),
		DBPath:        v.GetString("db_path"),
		Port:          v.GetString("port"),
		LogLevel:      strings.ToLower(v.GetString("log_level")),
		RateCacheTTL:  v.GetDuration("rate_cache_ttl"),
		RateCacheSize: v.GetInt("rate_cache_size"),
		BulkWorkers:   v.GetInt("bulk_workers"),
	}

	if cfg.RateCacheTTL <= 0 {
		cfg.RateCacheTTL = 5 * time.Minute
	}
	if cfg.RateCacheSize <= 0 {
		cfg.RateCacheSize = 512
	}
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = 1
	}

	if cfg.AdminAPIKey == "" {
		log.Print("warning: ADMIN_API_KEY is not set")
	}

	return cfg
}

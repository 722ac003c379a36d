package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	DBDriver string `mapstructure:"DB_DRIVER"`
	DBDSN    string `mapstructure:"DB_DSN"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	Queue             string        `mapstructure:"QUEUE"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	JobMaxRetry       int           `mapstructure:"JOB_MAX_RETRY"`
	JobRetention      time.Duration `mapstructure:"JOB_RETENTION"`
	JobTimeout        time.Duration `mapstructure:"JOB_TIMEOUT"`
	SweepSchedule     string        `mapstructure:"SWEEP_SCHEDULE"`
	SweepLimit        int           `mapstructure:"SWEEP_LIMIT"`

	SecretKey string        `mapstructure:"SECRET_KEY"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	CloudflareAPIToken  string        `mapstructure:"CLOUDFLARE_API_TOKEN"`
	CloudflareAPIKey    string        `mapstructure:"CLOUDFLARE_API_KEY"`
	CloudflareEmail     string        `mapstructure:"CLOUDFLARE_EMAIL"`
	CloudflareAccountID string        `mapstructure:"CLOUDFLARE_ACCOUNT_ID"`
	CloudflareBaseURL   string        `mapstructure:"CLOUDFLARE_BASE_URL"`
	CloudflareRateLimit float64       `mapstructure:"CLOUDFLARE_RATE_LIMIT"`
	CloudflareTimeout   time.Duration `mapstructure:"CLOUDFLARE_TIMEOUT"`

	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitPerMinute int      `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// LoadConfig reads defaults, an optional .env file and NSFORGE_* environment
// variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "nsforge.db")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("QUEUE", "default")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("JOB_MAX_RETRY", 0)
	v.SetDefault("JOB_RETENTION", "24h")
	v.SetDefault("JOB_TIMEOUT", "2m")
	v.SetDefault("SWEEP_SCHEDULE", "@every 1m")
	v.SetDefault("SWEEP_LIMIT", 100)
	v.SetDefault("SECRET_KEY", "supersecretkey")
	v.SetDefault("TOKEN_TTL", "30m")
	v.SetDefault("CLOUDFLARE_API_TOKEN", "")
	v.SetDefault("CLOUDFLARE_API_KEY", "")
	v.SetDefault("CLOUDFLARE_EMAIL", "")
	v.SetDefault("CLOUDFLARE_ACCOUNT_ID", "")
	v.SetDefault("CLOUDFLARE_BASE_URL", "")
	v.SetDefault("CLOUDFLARE_RATE_LIMIT", 4.0)
	v.SetDefault("CLOUDFLARE_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetEnvPrefix("NSFORGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		// Ignore err if .env doesn't exist
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	return &cfg, nil
}

// splitList accepts both a real list and a single comma separated value.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/Harrison-Muraya/L-SalesPro/internal/database"
)

const dbSecretName = "backoffice/DB_CREDENTIALS"

type Config struct {
	Port        string
	Env         string
	ServiceName string

	StoreDriver string
	Postgres    database.PostgresConfig
	LockTimeout time.Duration
	SeedDemo    bool

	ReservationTTL time.Duration
	SweepInterval  time.Duration

	OrderPrefix          string
	CurrencySymbol       string
	CreditWarningPercent decimal.Decimal

	NotifyBackends []string
	SNSTopicArn    string
	SQSQueue       string
	KafkaBrokers   []string
	KafkaTopic     string

	RedisURL      string
	StockCacheTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string

	AWSUseSecrets    bool
	CloudWatchLogs   bool
	CloudWatchGroup  string
	MetricsEnabled   bool
	MetricsNamespace string
	OTLPEndpoint     string
	OTLPInsecure     bool
}

// secretReader is the part of the Secrets Manager client the config needs.
type secretReader interface {
	GetJSONSecret(ctx context.Context, name string, out any) error
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, fallback))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive duration", key))
		}
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be an integer", key))
		}
		return n
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "backoffice"),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Nairobi"),
		},
		LockTimeout: duration("LOCK_TIMEOUT", "5s"),
		SeedDemo:    getEnv("SEED_DEMO_DATA", "false") == "true",

		ReservationTTL: duration("RESERVATION_TTL", "30m"),
		SweepInterval:  duration("SWEEP_INTERVAL", "1m"),

		OrderPrefix:    getEnv("ORDER_PREFIX", "ORD"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "KES"),

		NotifyBackends: splitList(getEnv("NOTIFY_BACKEND", "log")),
		SNSTopicArn:    os.Getenv("BACKOFFICE_SNS_TOPIC_ARN"),
		SQSQueue:       os.Getenv("BACKOFFICE_SQS_QUEUE"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("NOTIFY_KAFKA_TOPIC", "backoffice.events"),

		RedisURL:      os.Getenv("REDIS_URL"),
		StockCacheTTL: duration("STOCK_CACHE_TTL", "30s"),

		RateLimitBurst: integer("RATE_LIMIT_BURST", 50),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		AWSUseSecrets:    os.Getenv("AWS_USE_SECRETS") == "true",
		CloudWatchLogs:   os.Getenv("CLOUDWATCH_LOGS_ENABLED") == "true",
		CloudWatchGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/lsalespro/backoffice"),
		MetricsEnabled:   os.Getenv("CLOUDWATCH_METRICS_ENABLED") == "true",
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "LSalesPro/Backoffice"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:     getEnv("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil || rps <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be a positive number")
	}
	cfg.RateLimitRPS = rps

	warn, err := decimal.NewFromString(getEnv("CREDIT_WARNING_PERCENT", "80"))
	if err != nil || warn.IsNegative() {
		errs = append(errs, "CREDIT_WARNING_PERCENT must be a non-negative number")
	}
	cfg.CreditWarningPercent = warn

	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver))
	}
	for _, b := range cfg.NotifyBackends {
		switch b {
		case "log", "sns", "sqs", "kafka":
		default:
			errs = append(errs, fmt.Sprintf("unknown NOTIFY_BACKEND %q", b))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// applyDBSecret overrides the Postgres credentials with the non-empty values
// of the backoffice/DB_CREDENTIALS secret.
func (c *Config) applyDBSecret(ctx context.Context, secrets secretReader) error {
	var m map[string]string
	if err := secrets.GetJSONSecret(ctx, dbSecretName, &m); err != nil {
		return err
	}
	for key, dst := range map[string]*string{
		"POSTGRES_USER":     &c.Postgres.User,
		"POSTGRES_PASSWORD": &c.Postgres.Password,
		"POSTGRES_DB":       &c.Postgres.DBName,
		"POSTGRES_HOST":     &c.Postgres.Host,
		"POSTGRES_PORT":     &c.Postgres.Port,
	} {
		if v := m[key]; v != "" {
			*dst = v
		}
	}
	return nil
}

// validateStore checks what the chosen store driver needs, after secrets were applied.
func (c *Config) validateStore() error {
	if c.StoreDriver != "postgres" {
		return nil
	}
	if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DBName == "" || c.Postgres.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	return nil
}

func (c *Config) notifyEnabled(backend string) bool {
	for _, b := range c.NotifyBackends {
		if b == backend {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

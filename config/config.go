package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"grin-gateway/awsx"
)

// Config holds everything the gateway needs at boot. Gateway-facing settings
// (title, Slatepack address, rate source) mirror what a shop admin configures;
// the rest is infrastructure.
type Config struct {
	Port             string
	Env              string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	RedisURL         string

	KafkaBrokers      string
	PaymentTopic      string
	CartClearTopic    string
	PaymentSNSTopic   string
	ReconcileQueueURL string

	// Gateway settings
	Enabled          bool
	Title            string
	Description      string
	SlatepackAddress string
	APIKey           string
	RateSource       string // "coingecko" or "manual"
	ManualRate       decimal.Decimal
	FiatCurrency     string
	VerifierURL      string
	ReturnURLBase    string

	LookbackWindow    time.Duration
	ReconcileInterval time.Duration

	JWTSecret string
}

const (
	RateSourceCoinGecko = "coingecko"
	RateSourceManual    = "manual"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	manualRate, err := decimal.NewFromString(getEnv("GRIN_MANUAL_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid GRIN_MANUAL_RATE: %w", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8089"),
		Env:              getEnv("ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		RedisURL:         getEnv("REDIS_URL", ""),

		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		PaymentTopic:      getEnv("PAYMENT_EVENTS_TOPIC", "grin.payment.events"),
		CartClearTopic:    getEnv("CART_CLEAR_TOPIC", "grin.cart.clear"),
		PaymentSNSTopic:   os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		ReconcileQueueURL: os.Getenv("RECONCILE_QUEUE_URL"),

		Enabled:          getEnv("GRIN_ENABLED", "true") == "true",
		Title:            getEnv("GRIN_TITLE", "GRIN Payment"),
		Description:      getEnv("GRIN_DESCRIPTION", "Pay with GRIN cryptocurrency using Slatepack"),
		SlatepackAddress: os.Getenv("GRIN_SLATEPACK_ADDRESS"),
		APIKey:           os.Getenv("GRIN_API_KEY"),
		RateSource:       getEnv("GRIN_RATE_SOURCE", RateSourceCoinGecko),
		ManualRate:       manualRate,
		FiatCurrency:     getEnv("GRIN_FIAT_CURRENCY", "usd"),
		VerifierURL:      os.Getenv("GRIN_VERIFIER_URL"),
		ReturnURLBase:    getEnv("RETURN_URL_BASE", "http://localhost:3000/order-received"),

		LookbackWindow:    getDurationEnv("RECONCILE_LOOKBACK", 24*time.Hour),
		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", time.Hour),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		loadSecrets(cfg)
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.RateSource != RateSourceCoinGecko && cfg.RateSource != RateSourceManual {
		return nil, fmt.Errorf("unknown GRIN_RATE_SOURCE %q", cfg.RateSource)
	}
	if cfg.SlatepackAddress == "" {
		return nil, fmt.Errorf("GRIN_SLATEPACK_ADDRESS is required")
	}

	return cfg, nil
}

// loadSecrets overrides DB credentials from Secrets Manager when available.
// Best-effort: any failure leaves the env-provided values in place.
func loadSecrets(cfg *Config) {
	ctx := context.Background()
	awsCfg, err := awsx.LoadAWSConfig(ctx)
	if err != nil {
		return
	}
	sm := awsx.NewSecretsClient(awsCfg)

	dbjson, err := sm.GetSecret(ctx, "grin-gateway/DB_CREDENTIALS")
	if err != nil || dbjson == "" {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(dbjson), &m); err != nil {
		return
	}
	if v := m["POSTGRES_USER"]; v != "" {
		cfg.PostgresUser = v
	}
	if v := m["POSTGRES_PASSWORD"]; v != "" {
		cfg.PostgresPassword = v
	}
	if v := m["POSTGRES_DB"]; v != "" {
		cfg.PostgresDB = v
	}
	if v := m["POSTGRES_HOST"]; v != "" {
		cfg.PostgresHost = v
	}
	if v := m["POSTGRES_PORT"]; v != "" {
		cfg.PostgresPort = v
	}
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

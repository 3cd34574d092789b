package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DB struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (d DB) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

type Redis struct {
	Host     string
	Port     string
	Password string
}

func (r Redis) Addr() string { return r.Host + ":" + r.Port }

type Config struct {
	HTTPAddr string
	DB       DB
	Redis    Redis

	KafkaBroker       string
	NotificationTopic string
	JaegerEndpoint    string

	JWTSecret  []byte
	SessionTTL time.Duration
	OTPTTL     time.Duration

	TaxRate               decimal.Decimal
	ShippingPerItem       decimal.Decimal
	CODSurcharge          decimal.Decimal
	EstimatedDeliveryDays int
	OrderNumberRetries    int

	CORSOrigins     []string
	ProductCacheTTL time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DB: DB{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "agromart"),
		},
		Redis: Redis{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		KafkaBroker:       getEnv("KAFKA_BROKER", "localhost:9092"),
		NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "notification_events"),
		JaegerEndpoint:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		JWTSecret:         []byte(getEnv("JWT_SECRET", "")),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = durationEnv("OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProductCacheTTL, err = durationEnv("PRODUCT_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TaxRate, err = decimalEnv("TAX_RATE", "0.10"); err != nil {
		return nil, err
	}
	if cfg.ShippingPerItem, err = decimalEnv("SHIPPING_PER_ITEM", "100"); err != nil {
		return nil, err
	}
	if cfg.CODSurcharge, err = decimalEnv("COD_SURCHARGE", "0"); err != nil {
		return nil, err
	}
	if cfg.EstimatedDeliveryDays, err = intEnv("ESTIMATED_DELIVERY_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.OrderNumberRetries, err = intEnv("ORDER_NUMBER_RETRIES", 3); err != nil {
		return nil, err
	}

	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.TaxRate.IsNegative() || cfg.ShippingPerItem.IsNegative() || cfg.CODSurcharge.IsNegative() {
		return nil, fmt.Errorf("pricing settings must not be negative")
	}
	if cfg.OrderNumberRetries < 1 {
		return nil, fmt.Errorf("ORDER_NUMBER_RETRIES must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func decimalEnv(key, defaultValue string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

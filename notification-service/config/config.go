package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HTTPAddr          string
	MongoURI          string
	MongoDB           string
	KafkaBroker       string
	NotificationTopic string
	JaegerEndpoint    string
	JWTSecret         []byte
}

// Load reads an optional .env file and then the process environment.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8084"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           getEnv("MONGO_DB", "agromart_notifications"),
		KafkaBroker:       getEnv("KAFKA_BROKER", "localhost:9092"),
		NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "notification_events"),
		JaegerEndpoint:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		JWTSecret:         []byte(getEnv("JWT_SECRET", "")),
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

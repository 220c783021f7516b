package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything main needs to wire the service, read once at startup.
type Config struct {
	HTTPAddr    string
	ServiceName string
	Env         string
	LogFile     string

	PaymentExpiry   time.Duration
	SweepInterval   time.Duration
	ReturnWindow    time.Duration
	SettledCacheTTL time.Duration
	PaymentSecret   string
	ShutdownTimeout time.Duration
}

// Load reads .env when present, then the environment, falling back to
// defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		ServiceName: getenv("SERVICE_NAME", "loopbuy-trade"),
		Env:         getenv("ENV", "dev"),
		LogFile:     getenv("LOG_FILE", "logs/trade.log"),

		PaymentExpiry:   getduration("PAYMENT_EXPIRY", 15*time.Minute),
		SweepInterval:   getduration("SWEEP_INTERVAL", 60*time.Second),
		ReturnWindow:    getduration("RETURN_WINDOW", 168*time.Hour),
		SettledCacheTTL: getduration("SNAPSHOT_CACHE_TTL", 5*time.Minute),
		PaymentSecret:   getenv("PAYMENT_SECRET", "123456"),
		ShutdownTimeout: getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

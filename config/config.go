package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the attendance backend. Values come
// from the environment; a .env file is loaded first when present.
type Config struct {
	Port        string
	DatabaseURL string
	// StoreDriver: "postgres" or "memory".
	StoreDriver     string
	StoreTimeout    time.Duration
	StoreTimeoutStr string

	// ReportingTZ is the IANA zone attendance dates are computed in.
	ReportingTZ string

	CORSOrigins []string

	// AuthJWTSecret verifies admin tokens issued by the identity provider.
	// Empty disables admin authentication.
	AuthJWTSecret string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	AMQPURL      string
	AMQPExchange string

	RedisAddr string

	NotifyBuffer     int
	NotifyBufferStr  string
	NotifyTimeout    time.Duration
	NotifyTimeoutStr string

	MetricsPath    string
	LogDevelopment bool
}

// Load reads configuration from environment variables with defaults.
// Durations are parsed by Validate.
func Load() Config {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoreDriver:       getenv("STORE_DRIVER", "postgres"),
		StoreTimeoutStr:   getenv("STORE_TIMEOUT", "5s"),
		ReportingTZ:       getenv("REPORTING_TZ", "Local"),
		CORSOrigins:       splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),
		AuthJWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getenv("SMTP_PORT", "587"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		SMTPFrom:          os.Getenv("SMTP_FROM"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		AMQPExchange:      getenv("AMQP_EXCHANGE", "attendance"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		NotifyBufferStr:   getenv("NOTIFY_BUFFER", "100"),
		NotifyTimeoutStr:  getenv("NOTIFY_TIMEOUT", "10s"),
		MetricsPath:       getenv("METRICS_PATH", "/metrics"),
		LogDevelopment:    os.Getenv("LOG_DEVELOPMENT") == "true",
	}

	if d, err := time.ParseDuration(cfg.StoreTimeoutStr); err == nil {
		cfg.StoreTimeout = d
	}
	if d, err := time.ParseDuration(cfg.NotifyTimeoutStr); err == nil {
		cfg.NotifyTimeout = d
	}
	if n, err := strconv.Atoi(cfg.NotifyBufferStr); err == nil {
		cfg.NotifyBuffer = n
	}
	return cfg
}

// Location resolves ReportingTZ.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ReportingTZ)
}

func (c Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func (c Config) SMSEnabled() bool {
	return c.TwilioAccountSID != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "change-me"

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set in release mode")

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Booking   BookingConfig
	Stream    StreamConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port         string
	GinMode      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN returns the key/value connection string used by pgxpool.
// Values are single-quoted so passwords may contain spaces and quotes.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s timezone=UTC",
		quoteDSN(c.Host), quoteDSN(c.Port), quoteDSN(c.User), quoteDSN(c.Password), quoteDSN(c.DBName), quoteDSN(c.SSLMode))
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// MigrationURL returns the pgx5:// URL understood by golang-migrate.
func (c DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type BookingConfig struct {
	// CancellationWindow is how long before the event start a booking may still be cancelled.
	CancellationWindow time.Duration

	// LockTimeout bounds how long a booking transaction waits for the event row lock.
	LockTimeout     time.Duration
	IdempotencyTTL  time.Duration
	AvailabilityTTL time.Duration
}

type TelemetryConfig struct {
	// CollectorAddr is the OTLP gRPC endpoint; tracing is off when empty.
	CollectorAddr  string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRatio    float64
}

type StreamConfig struct {
	ClaimMinIdleTime   time.Duration
	MaxRetryCount      int
	ReadGroupBlockTime time.Duration
}

var AppConfig *Config

func LoadConfig() *Config {
	AppConfig = &Config{
		Server:    GetServerConfig(),
		Database:  GetDatabaseConfig(),
		Redis:     GetRedisConfig(),
		Auth:      AuthConfig{JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret)},
		Booking:   GetBookingConfig(),
		Stream:    GetStreamConfig(),
		Telemetry: GetTelemetryConfig(),
	}

	return AppConfig
}

// Validate rejects settings that are only acceptable during local development.
func (c *Config) Validate() error {
	if c.Server.GinMode == "release" && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaultJWTSecret) {
		return ErrInsecureJWTSecret
	}
	return nil
}

func LoadTestConfig() *Config {
	return &Config{
		Server: GetServerConfig(),
		Database: DatabaseConfig{
			Host:     getEnv("TEST_DB_HOST", "localhost"),
			Port:     getEnv("TEST_DB_PORT", "5433"), // test DB on 5433
			User:     "postgres",
			Password: "postgres",
			DBName:   "test_db",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 1,
		},
		Redis: RedisConfig{
			Host:     getEnv("TEST_REDIS_HOST", "localhost"),
			Port:     getEnv("TEST_REDIS_PORT", "6380"), // test Redis on 6380
			Password: "",
			DB:       1,
		},
		Auth: AuthConfig{JWTSecret: "test-secret"},
		Booking: BookingConfig{
			CancellationWindow: 24 * time.Hour,
			LockTimeout:        5 * time.Second,
			IdempotencyTTL:     time.Minute,
			AvailabilityTTL:    time.Minute,
		},
		Stream: StreamConfig{
			ClaimMinIdleTime:   200 * time.Millisecond,
			MaxRetryCount:      3,
			ReadGroupBlockTime: 100 * time.Millisecond,
		},
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "release"),
		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "event_booking"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
		MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func GetBookingConfig() BookingConfig {
	return BookingConfig{
		CancellationWindow: getEnvDuration("BOOKING_CANCELLATION_WINDOW", 24*time.Hour),
		LockTimeout:        getEnvDuration("BOOKING_LOCK_TIMEOUT", 5*time.Second),
		IdempotencyTTL:     getEnvDuration("BOOKING_IDEMPOTENCY_TTL", 24*time.Hour),
		AvailabilityTTL:    getEnvDuration("AVAILABILITY_CACHE_TTL", 10*time.Minute),
	}
}

func GetStreamConfig() StreamConfig {
	return StreamConfig{
		ClaimMinIdleTime:   getEnvDuration("STREAM_CLAIM_MIN_IDLE", 5*time.Second),
		MaxRetryCount:      getEnvInt("STREAM_MAX_RETRY", 5),
		ReadGroupBlockTime: getEnvDuration("STREAM_BLOCK_TIME", 2*time.Second),
	}
}

func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		CollectorAddr:  getEnv("OTEL_COLLECTOR_ADDR", ""),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "event-booking-api"),
		ServiceVersion: getEnv("APP_VERSION", "dev"),
		Environment:    getEnv("APP_ENV", "development"),
		SampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

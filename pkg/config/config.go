// Package config loads process configuration from the environment, an
// optional .env file and command line flags. Flags win over the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	dydbstore "github.com/chris/referral-commission-ledger/pkg/storage/dynamodb"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Config holds everything the binaries need to wire the ledger.
type Config struct {
	Port    string
	Verbose bool
	Store   string
	Tables  dydbstore.Tables

	// PayoutQueueURL receives withdrawal payout requests. Empty logs them instead.
	PayoutQueueURL string
	// EventsQueueURL receives wallet update notifications. Empty drops them.
	EventsQueueURL string

	RedisAddr        string
	SettingsCacheTTL time.Duration

	CORSOrigins        []string
	StuckWithdrawalAge time.Duration
}

// Load reads the .env file if present, then the environment.
func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}
	return Config{
		Port:    env("HTTP_PORT", "8080"),
		Verbose: envBool("VERBOSE", false),
		Store:   env("STORE", StoreDynamoDB),
		Tables: dydbstore.Tables{
			Accounts:     os.Getenv("DYNAMODB_ACCOUNTS_TABLE_NAME"),
			Wallets:      os.Getenv("DYNAMODB_WALLETS_TABLE_NAME"),
			Transactions: os.Getenv("DYNAMODB_TRANSACTIONS_TABLE_NAME"),
			Settings:     os.Getenv("DYNAMODB_SETTINGS_TABLE_NAME"),
			Events:       os.Getenv("DYNAMODB_EVENTS_TABLE_NAME"),
			Lookups:      os.Getenv("DYNAMODB_LOOKUPS_TABLE_NAME"),
		},
		PayoutQueueURL:     os.Getenv("SQS_PAYOUT_QUEUE_URL"),
		EventsQueueURL:     os.Getenv("SQS_EVENTS_QUEUE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		SettingsCacheTTL:   envDuration("SETTINGS_CACHE_TTL", 5*time.Minute),
		CORSOrigins:        envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		StuckWithdrawalAge: envDuration("STUCK_WITHDRAWAL_AGE", 20*time.Minute),
	}
}

// BindFlags registers flags that override the loaded values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Port, "port", "p", c.Port, "HTTP listen port")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "enable debug logging")
	fs.StringVar(&c.Store, "store", c.Store, "storage backend: memory or dynamodb")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address for the settings cache; empty disables it")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "allowed CORS origins")
}

// Validate checks the settings the chosen backend requires.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
		return nil
	case StoreDynamoDB:
		return c.Tables.Validate()
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPPort string

	RPCURL            string
	KeystoreDir       string
	WalletPassphrase  string
	ProductContract   common.Address
	EscrowContract    common.Address
	EcommerceContract common.Address
	UserContract      common.Address
	NativeUSDRate     decimal.Decimal
	ChainPollInterval time.Duration

	CatalogBaseURL string

	RedisAddr     string
	RedisPassword string

	OrdersDBPath   string
	MigrationsPath string

	KafkaBrokers []string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ConfirmTimeout  time.Duration
	LogLevel        slog.Level
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	home, _ := os.UserHomeDir()
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		RPCURL:           getEnv("RPC_URL", "http://localhost:8545"),
		KeystoreDir:      getEnv("KEYSTORE_DIR", filepath.Join(home, ".market-client", "keystore")),
		WalletPassphrase: os.Getenv("WALLET_PASSPHRASE"),
		CatalogBaseURL:   getEnv("CATALOG_BASE_URL", "http://localhost:3001"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		OrdersDBPath:     getEnv("ORDERS_DB_PATH", "orders.db"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "internal/orders/migrations"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
	}

	var err error
	if cfg.ProductContract, err = getAddress("PRODUCT_CONTRACT"); err != nil {
		return nil, err
	}
	if cfg.EscrowContract, err = getAddress("ESCROW_CONTRACT"); err != nil {
		return nil, err
	}
	if cfg.EcommerceContract, err = getAddress("ECOMMERCE_CONTRACT"); err != nil {
		return nil, err
	}
	if cfg.UserContract, err = getAddress("USER_CONTRACT"); err != nil {
		return nil, err
	}
	if cfg.NativeUSDRate, err = getDecimal("NATIVE_USD_RATE", "3000"); err != nil {
		return nil, err
	}
	if !cfg.NativeUSDRate.IsPositive() {
		return nil, fmt.Errorf("NATIVE_USD_RATE must be positive, got %s", cfg.NativeUSDRate)
	}
	if cfg.ChainPollInterval, err = getDuration("CHAIN_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ConfirmTimeout, err = getDuration("CONFIRM_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, value)
	}
	return d, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

// getAddress requires a hex contract address.
func getAddress(key string) (common.Address, error) {
	value := os.Getenv(key)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s must be a hex address, got %q", key, value)
	}
	return common.HexToAddress(value), nil
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

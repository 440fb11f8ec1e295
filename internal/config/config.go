/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the loyalty-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	LedgerRPCURL             string `mapstructure:"LEDGER_RPC_URL"`
	LedgerCommitment         string `mapstructure:"LEDGER_COMMITMENT"`
	ContractPubkey           string `mapstructure:"CONTRACT_PUBKEY"`
	OwnerPrivateKey          string `mapstructure:"OWNER_PRIVATE_KEY"`
	InternalAPIKey           string `mapstructure:"INTERNAL_API_KEY"`
	TxFreshnessWindowSeconds int    `mapstructure:"TX_FRESHNESS_WINDOW_SECONDS"`
	MintRateLimitPerMinute   int    `mapstructure:"MINT_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LEDGER_RPC_URL", "https://api.devnet.solana.com")
	viper.SetDefault("LEDGER_COMMITMENT", "confirmed")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "loyalty:rate_limit")
	viper.SetDefault("TX_FRESHNESS_WINDOW_SECONDS", 3600)
	viper.SetDefault("MINT_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LOYALTY_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_RPC_URL", "LEDGER_RPC_URL", "SOLANA_RPC_URL")
	_ = viper.BindEnv("LEDGER_COMMITMENT")
	_ = viper.BindEnv("CONTRACT_PUBKEY")
	_ = viper.BindEnv("OWNER_PRIVATE_KEY")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LOYALTY_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("TX_FRESHNESS_WINDOW_SECONDS")
	_ = viper.BindEnv("MINT_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LOYALTY_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "loyalty:rate_limit"
	}
	config.LedgerRPCURL = strings.TrimSpace(config.LedgerRPCURL)
	config.LedgerCommitment = strings.TrimSpace(config.LedgerCommitment)
	if config.LedgerCommitment == "" {
		config.LedgerCommitment = "confirmed"
	}
	config.ContractPubkey = strings.TrimSpace(config.ContractPubkey)
	config.OwnerPrivateKey = strings.TrimSpace(config.OwnerPrivateKey)

	if config.TxFreshnessWindowSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive freshness window configured; using default\" seconds=%d", config.TxFreshnessWindowSeconds)
		config.TxFreshnessWindowSeconds = 3600
	}
	if config.MintRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative mint rate limit configured; disabling limiter\" per_minute=%d", config.MintRateLimitPerMinute)
		config.MintRateLimitPerMinute = 0
	}

	return
}

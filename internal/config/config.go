package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wallet-session/internal/validation"
)

const apiKeyPlaceholder = "{apiKey}"

// Config holds all configuration for the application
type Config struct {
	LogLevel     string
	DefaultChain string
	HTTP         HTTPConfig
	Wallet       WalletConfig
	Features     FeatureConfig
	Voting       VotingConfig
	Kafka        KafkaConfig
	Database     DatabaseConfig
	Chains       map[string]ChainConfig
}

// HTTPConfig holds the API server and RPC client settings
type HTTPConfig struct {
	ListenAddress string
	Timeout       time.Duration
}

// WalletConfig holds keystore and confirmation settings
type WalletConfig struct {
	KeystoreDir       string
	Passphrase        string
	ChainPollInterval time.Duration
	ConfirmTimeout    time.Duration

	// BalanceWatchInterval is how often the head is polled for balance refreshes, zero disables it
	BalanceWatchInterval time.Duration
}

// FeatureConfig selects the optional parts of the session controller
type FeatureConfig struct {
	History      bool
	Voting       bool
	NetworkNames bool
}

// VotingConfig holds the voting contract settings
type VotingConfig struct {
	ContractAddress string
	ProposalCount   int
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled       bool
	BrokerAddress string
	Topic         string
	BatchSize     int
	BatchTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ChainConfig holds configuration for each chain, keyed by hex chain id
type ChainConfig struct {
	Name            string
	RpcEndpoint     string
	ApiKey          string
	RateLimit       float64
	ExplorerBaseURL string
}

// Endpoint returns the RPC endpoint with the API key substituted when the
// endpoint carries a {apiKey} placeholder
func (c ChainConfig) Endpoint() string {
	return strings.ReplaceAll(c.RpcEndpoint, apiKeyPlaceholder, c.ApiKey)
}

// HeaderAPIKey returns the key to send as a bearer token, empty when the key is part of the URL
func (c ChainConfig) HeaderAPIKey() string {
	if strings.Contains(c.RpcEndpoint, apiKeyPlaceholder) {
		return ""
	}
	return c.ApiKey
}

// ExplorerURL returns the block explorer link for a transaction
func (c ChainConfig) ExplorerURL(txHash string) string {
	if c.ExplorerBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.ExplorerBaseURL, "/"), txHash)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// A missing .env is fine, the variables may be set externally
	_ = godotenv.Load()

	config := &Config{
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DefaultChain: strings.ToLower(getEnv("DEFAULT_CHAIN_ID", "0xaa36a7")),
		HTTP: HTTPConfig{
			ListenAddress: getEnv("HTTP_LISTEN_ADDRESS", ":8080"),
			Timeout:       time.Duration(getEnvAsInt("HTTP_TIMEOUT", 30)) * time.Second,
		},
		Wallet: WalletConfig{
			KeystoreDir:          getEnv("KEYSTORE_DIR", "./keystore"),
			Passphrase:           getEnv("KEYSTORE_PASSPHRASE", ""),
			ChainPollInterval:    time.Duration(getEnvAsInt("CHAIN_POLL_INTERVAL", 10)) * time.Second,
			ConfirmTimeout:       time.Duration(getEnvAsInt("CONFIRM_TIMEOUT", 300)) * time.Second,
			BalanceWatchInterval: time.Duration(getEnvAsInt("BALANCE_WATCH_INTERVAL", 15)) * time.Second,
		},
		Features: FeatureConfig{
			History:      getEnvAsBool("FEATURE_HISTORY", true),
			Voting:       getEnvAsBool("FEATURE_VOTING", false),
			NetworkNames: getEnvAsBool("FEATURE_NETWORK_NAMES", true),
		},
		Voting: VotingConfig{
			ContractAddress: getEnv("VOTING_CONTRACT_ADDRESS", "0xB2E1185468e57A801a54162F27725CbD5B0EB4a6"),
			ProposalCount:   getEnvAsInt("VOTING_PROPOSAL_COUNT", 2),
		},
		Kafka: KafkaConfig{
			BrokerAddress: getEnv("KAFKA_BROKER_ADDRESS", ""),
			Topic:         getEnv("KAFKA_TOPIC", "wallet-events"),
			BatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 1),
			BatchTimeout:  time.Duration(getEnvAsInt("KAFKA_BATCH_TIMEOUT", 1)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wallet_session"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Chains: make(map[string]ChainConfig),
	}
	config.Kafka.Enabled = config.Kafka.BrokerAddress != ""
	config.Database.Enabled = config.Database.Host != ""

	// Load chain configurations
	config.Chains["0x1"] = ChainConfig{
		Name:            "Mainnet",
		RpcEndpoint:     getEnv("MAINNET_RPC_ENDPOINT", "https://mainnet.infura.io/v3/{apiKey}"),
		ApiKey:          getEnv("MAINNET_API_KEY", getEnv("RPC_API_KEY", "")),
		RateLimit:       getEnvAsFloat("MAINNET_RATE_LIMIT", 4),
		ExplorerBaseURL: "https://etherscan.io/tx",
	}

	config.Chains["0xaa36a7"] = ChainConfig{
		Name:            "Sepolia Testnet",
		RpcEndpoint:     getEnv("SEPOLIA_RPC_ENDPOINT", "https://sepolia.infura.io/v3/{apiKey}"),
		ApiKey:          getEnv("SEPOLIA_API_KEY", getEnv("RPC_API_KEY", "")),
		RateLimit:       getEnvAsFloat("SEPOLIA_RATE_LIMIT", 4),
		ExplorerBaseURL: "https://sepolia.etherscan.io/tx",
	}

	if endpoint := getEnv("LOCAL_RPC_ENDPOINT", ""); endpoint != "" {
		config.Chains["0x539"] = ChainConfig{
			Name:        "Local Devnet",
			RpcEndpoint: endpoint,
			RateLimit:   getEnvAsFloat("LOCAL_RATE_LIMIT", 100),
		}
	}

	return config, nil
}

// Validate checks the settings that would otherwise fail late at dial time
func (c *Config) Validate() error {
	if err := validation.ValidateChainID(c.DefaultChain); err != nil {
		return fmt.Errorf("invalid DEFAULT_CHAIN_ID: %w", err)
	}
	if _, ok := c.Chains[c.DefaultChain]; !ok {
		return fmt.Errorf("no chain configured for DEFAULT_CHAIN_ID %s", c.DefaultChain)
	}
	for id, chain := range c.Chains {
		if err := validation.ValidateURL(chain.Endpoint()); err != nil {
			return fmt.Errorf("chain %s: %w", id, err)
		}
		if chain.RateLimit <= 0 {
			return fmt.Errorf("chain %s: rate limit must be positive", id)
		}
	}
	if c.Features.Voting {
		if err := validation.ValidateAddress(c.Voting.ContractAddress); err != nil {
			return fmt.Errorf("invalid VOTING_CONTRACT_ADDRESS: %w", err)
		}
		if c.Voting.ProposalCount <= 0 {
			return fmt.Errorf("VOTING_PROPOSAL_COUNT must be positive")
		}
	}
	if c.Wallet.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

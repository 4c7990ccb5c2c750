package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// minEncryptionKeyLen is the floor for the vault passphrase. Anything
// shorter is refused at startup.
const minEncryptionKeyLen = 16

// Config holds all service configuration, loaded from the environment.
// WALLET_ENCRYPTION_KEY has no default on purpose: the process must not
// boot with an absent or weak vault passphrase.
type Config struct {
	Port             string        `envconfig:"PORT" default:"8080"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	SolanaRPCURL     string        `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	Network          string        `envconfig:"NETWORK" default:"solana-mainnet"`
	EncryptionKey    string        `envconfig:"WALLET_ENCRYPTION_KEY" required:"true"`
	ReceivingAddress string        `envconfig:"PLATFORM_RECEIVING_ADDRESS" required:"true"`
	AssetMint        string        `envconfig:"ASSET_MINT" default:""`
	AssetSymbol      string        `envconfig:"ASSET_SYMBOL" default:"SOL"`
	AssetDecimals    uint8         `envconfig:"ASSET_DECIMALS" default:"9"`
	ServicePrice     string        `envconfig:"SERVICE_PRICE" default:"0.1"`
	FreeUseQuota     int           `envconfig:"FREE_USE_QUOTA" default:"3"`
	ConfirmTimeout   time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"90s"`
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:""`
}

// Load reads and validates configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.EncryptionKey) < minEncryptionKeyLen {
		return fmt.Errorf("WALLET_ENCRYPTION_KEY must be at least %d bytes", minEncryptionKeyLen)
	}
	if _, err := solana.PublicKeyFromBase58(c.ReceivingAddress); err != nil {
		return fmt.Errorf("PLATFORM_RECEIVING_ADDRESS is not a valid address: %w", err)
	}
	if c.AssetMint != "" {
		if _, err := solana.PublicKeyFromBase58(c.AssetMint); err != nil {
			return fmt.Errorf("ASSET_MINT is not a valid address: %w", err)
		}
	}
	price, err := decimal.NewFromString(c.ServicePrice)
	if err != nil {
		return fmt.Errorf("SERVICE_PRICE is not a valid decimal: %w", err)
	}
	if price.Sign() <= 0 {
		return errors.New("SERVICE_PRICE must be positive")
	}
	if c.FreeUseQuota < 0 {
		return errors.New("FREE_USE_QUOTA must not be negative")
	}
	return nil
}

// Price returns the parsed service price. Load has already validated it.
func (c *Config) Price() decimal.Decimal {
	price, _ := decimal.NewFromString(c.ServicePrice)
	return price
}

// Receiving returns the parsed platform receiving address.
func (c *Config) Receiving() solana.PublicKey {
	pk, _ := solana.PublicKeyFromBase58(c.ReceivingAddress)
	return pk
}

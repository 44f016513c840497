package config

import (
	"time"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/api"
	"github.com/availops/creditflow/internal/infra/emitter"
	"github.com/availops/creditflow/internal/infra/journal"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig        `yaml:"server"`
	API      api.Config          `yaml:"api"`
	Chains   []ChainConfig       `yaml:"chains"`
	Events   emitter.RedisConfig `yaml:"events"`
	Database journal.Config      `yaml:"database"`
	Logging  LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings for health and metrics.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for one payment chain. Which fields apply
// depends on kind: EVM chains sign locally and call the deposit contract;
// the avail chain delegates signing to a sidecar daemon.
type ChainConfig struct {
	ID   domain.ChainID   `yaml:"id"`
	Kind domain.ChainKind `yaml:"kind"` // "evm" or "avail"

	// EVM fields.
	RPCURL          string           `yaml:"rpc_url"`
	PrivateKey      string           `yaml:"private_key"` // hex; use ${ENV_VAR} in the file
	DepositContract string           `yaml:"deposit_contract"`
	Spender         string           `yaml:"spender"`
	Tokens          map[string]int32 `yaml:"tokens"` // accepted token address -> decimals
	ReceiptInterval time.Duration    `yaml:"receipt_interval"`

	// Avail fields.
	SidecarURL    string        `yaml:"sidecar_url"`
	TokenAddress  string        `yaml:"token_address"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
}

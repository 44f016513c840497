package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if c.ReceiptInterval == 0 {
			c.ReceiptInterval = 2 * time.Second
		}
		if c.SubmitTimeout == 0 {
			c.SubmitTimeout = 60 * time.Second
		}
		if c.Spender == "" {
			c.Spender = c.DepositContract
		}
	}
}

func validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg.API); err != nil {
		return fmt.Errorf("invalid api config: %w", err)
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	seen := make(map[int64]bool)
	for _, c := range cfg.Chains {
		if c.ID == 0 {
			return fmt.Errorf("chain id is required")
		}
		if seen[int64(c.ID)] {
			return fmt.Errorf("duplicate chain id %d", c.ID)
		}
		seen[int64(c.ID)] = true

		if !c.Kind.Valid() {
			return fmt.Errorf("chain %d: unknown kind %q", c.ID, c.Kind)
		}
		switch c.Kind {
		case "evm":
			if c.RPCURL == "" || c.DepositContract == "" || c.PrivateKey == "" {
				return fmt.Errorf("chain %d: evm chains need rpc_url, deposit_contract and private_key", c.ID)
			}
			if len(c.Tokens) == 0 {
				return fmt.Errorf("chain %d: no accepted tokens configured", c.ID)
			}
		case "avail":
			if c.SidecarURL == "" {
				return fmt.Errorf("chain %d: avail chains need sidecar_url", c.ID)
			}
		}
	}
	return nil
}

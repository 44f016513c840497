package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/availops/creditflow/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  port: 9090
api:
  url: https://credits.example.com
  auth_token: ${CREDITFLOW_TEST_TOKEN}
chains:
  - id: 8453
    kind: evm
    rpc_url: https://base.example.com
    private_key: abcd1234
    deposit_contract: "0x1111111111111111111111111111111111111111"
    tokens:
      "0x2222222222222222222222222222222222222222": 6
  - id: 9999
    kind: avail
    sidecar_url: http://localhost:7007
    token_address: AVAIL
logging:
  level: debug
`

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("CREDITFLOW_TEST_TOKEN", "secret-token")
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.AuthToken != "secret-token" {
		t.Errorf("expected env-expanded auth token, got %q", cfg.API.AuthToken)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format, got %q", cfg.Logging.Format)
	}

	evm := cfg.Chains[0]
	if evm.ID != domain.ChainID(8453) || evm.Kind != domain.ChainKindEVM {
		t.Fatalf("unexpected first chain: %+v", evm)
	}
	if evm.ReceiptInterval != 2*time.Second {
		t.Errorf("expected default receipt interval, got %s", evm.ReceiptInterval)
	}
	if evm.Spender != evm.DepositContract {
		t.Errorf("expected spender defaulted to deposit contract, got %q", evm.Spender)
	}

	avail := cfg.Chains[1]
	if avail.Kind != domain.ChainKindAvail || avail.SubmitTimeout != 60*time.Second {
		t.Fatalf("unexpected avail chain: %+v", avail)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	t.Setenv("CREDITFLOW_TEST_TOKEN", "secret-token")

	cases := map[string]string{
		"missing api token": `
api:
  url: https://credits.example.com
chains:
  - id: 8453
    kind: evm
    rpc_url: https://base.example.com
    private_key: abcd
    deposit_contract: "0x1"
    tokens: {"0x2": 6}
`,
		"no chains": `
api:
  url: https://credits.example.com
  auth_token: x
chains: []
`,
		"unknown kind": `
api:
  url: https://credits.example.com
  auth_token: x
chains:
  - id: 1
    kind: solana
`,
		"evm missing deposit contract": `
api:
  url: https://credits.example.com
  auth_token: x
chains:
  - id: 1
    kind: evm
    rpc_url: https://rpc
    private_key: abcd
    tokens: {"0x2": 6}
`,
		"avail missing sidecar": `
api:
  url: https://credits.example.com
  auth_token: x
chains:
  - id: 1
    kind: avail
`,
		"duplicate chain id": `
api:
  url: https://credits.example.com
  auth_token: x
chains:
  - id: 1
    kind: avail
    sidecar_url: http://localhost:7007
  - id: 1
    kind: avail
    sidecar_url: http://localhost:7008
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected a config error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

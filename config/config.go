package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lumos-codes-dev/dfv-sc-core/crypto"
	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
)

type LogConfig struct {
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type AuthConfig struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

type TelemetryConfig struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
}

type Config struct {
	RPCAddress     string          `toml:"RPCAddress"`
	DataDir        string          `toml:"DataDir"`
	DBBackend      string          `toml:"DBBackend"`
	TokenSymbol    string          `toml:"TokenSymbol"`
	VaultAddress   string          `toml:"VaultAddress"`
	FundingMode    string          `toml:"FundingMode"`
	AllocationFile string          `toml:"AllocationFile"`
	Log            LogConfig       `toml:"Log"`
	Auth           AuthConfig      `toml:"Auth"`
	Telemetry      TelemetryConfig `toml:"Telemetry"`
}

func defaults() *Config {
	return &Config{
		RPCAddress:     ":8645",
		DataDir:        "./data",
		DBBackend:      "leveldb",
		TokenSymbol:    "DFV",
		FundingMode:    "prefunded",
		AllocationFile: "./allocation.yaml",
	}
}

// Load loads the configuration from the given path, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TokenSymbol) == "" {
		return fmt.Errorf("config: TokenSymbol must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.FundingMode)) {
	case "", "prefunded", "pull":
	default:
		return fmt.Errorf("config: FundingMode must be prefunded or pull, got %q", c.FundingMode)
	}
	if strings.TrimSpace(c.VaultAddress) != "" {
		if _, err := crypto.DecodeAddress(c.VaultAddress); err != nil {
			return fmt.Errorf("config: invalid VaultAddress: %w", err)
		}
	}
	return nil
}

// ResolveFundingMode maps the configured mode onto the engine constant.
func (c *Config) ResolveFundingMode() vesting.FundingMode {
	if strings.ToLower(strings.TrimSpace(c.FundingMode)) == "pull" {
		return vesting.FundingPull
	}
	return vesting.FundingPreFunded
}

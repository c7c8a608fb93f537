package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Config is the operator-facing configuration for a pool node.
type Config struct {
	DataDir        string `toml:"DataDir"`
	MetricsAddress string `toml:"MetricsAddress"`
	Environment    string `toml:"Environment"`
	LogLevel       string `toml:"LogLevel"`

	Pool  PoolConfig  `toml:"pool"`
	Quota QuotaConfig `toml:"quota"`
}

// PoolConfig describes the pool pair, its fee schedule, and the operating
// limits enforced before any trade is admitted.
type PoolConfig struct {
	Token0 string `toml:"Token0"`
	Token1 string `toml:"Token1"`

	LPFeeBps       uint16 `toml:"LPFeeBps"`
	ProtocolFeeBps uint16 `toml:"ProtocolFeeBps"`
	RefFeeBps      uint16 `toml:"RefFeeBps"`

	ProviderFeeAddress string   `toml:"ProviderFeeAddress"`
	ProtocolFeeAddress string   `toml:"ProtocolFeeAddress"`
	Admins             []string `toml:"Admins"`

	MinSwapAmount       int64 `toml:"MinSwapAmount"`
	MinOperatingReserve int64 `toml:"MinOperatingReserve"`
}

// QuotaConfig caps per-address activity within an epoch. Zero limits disable
// the check.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxUnitsPerEpoch    uint64 `toml:"MaxUnitsPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet. Unknown keys are rejected so typos surface at startup instead of
// silently falling back to defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s contains unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a running node cannot repair on its own.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pool.Token0) == "" || strings.TrimSpace(c.Pool.Token1) == "" {
		return fmt.Errorf("config: pool token pair must be set")
	}
	if c.Pool.Token0 == c.Pool.Token1 {
		return fmt.Errorf("config: pool tokens must differ")
	}
	for _, addr := range []string{c.Pool.ProviderFeeAddress, c.Pool.ProtocolFeeAddress} {
		if _, err := ParseAddress(addr); err != nil {
			return err
		}
	}
	for _, addr := range c.Pool.Admins {
		if _, err := ParseAddress(addr); err != nil {
			return err
		}
	}
	if c.Pool.MinSwapAmount < 0 {
		return fmt.Errorf("config: MinSwapAmount must not be negative")
	}
	if c.Pool.MinOperatingReserve < 0 {
		return fmt.Errorf("config: MinOperatingReserve must not be negative")
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without the 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("config: address must not be empty")
	}
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("config: invalid address %q", raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./pool-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "development"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Pool.MinSwapAmount == 0 {
		cfg.Pool.MinSwapAmount = 1
	}
	if cfg.Quota.EpochSeconds == 0 {
		cfg.Quota.EpochSeconds = 60
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./pool-data",
		MetricsAddress: "127.0.0.1:9464",
		Environment:    "development",
		LogLevel:       "info",
		Pool: PoolConfig{
			Token0:             "ZNHB",
			Token1:             "NHB",
			LPFeeBps:           30,
			ProtocolFeeBps:     10,
			RefFeeBps:          5,
			ProviderFeeAddress: "0x" + strings.Repeat("11", 20),
			ProtocolFeeAddress: "0x" + strings.Repeat("22", 20),
			MinSwapAmount:      1,
		},
		Quota: QuotaConfig{EpochSeconds: 60},
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"nftstake/crypto"
)

// Config describes the daemon configuration loaded from TOML.
type Config struct {
	ListenAddress    string `toml:"ListenAddress"`
	DataDir          string `toml:"DataDir"`
	AdminAddress     string `toml:"AdminAddress"`
	TreasuryAddress  string `toml:"TreasuryAddress"`
	TrustedSignerKey string `toml:"TrustedSignerKey"`
	Environment      string `toml:"Environment"`
}

// Load reads and validates the configuration at the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields and address/key encodings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if _, err := c.Admin(); err != nil {
		return err
	}
	if _, err := c.Treasury(); err != nil {
		return err
	}
	if _, err := c.SignerKey(); err != nil {
		return err
	}
	return nil
}

func decodeAddress(field, value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("config: %s: %w", field, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

// Admin returns the decoded admin address.
func (c *Config) Admin() ([20]byte, error) {
	return decodeAddress("AdminAddress", c.AdminAddress)
}

// Treasury returns the decoded treasury address.
func (c *Config) Treasury() ([20]byte, error) {
	return decodeAddress("TreasuryAddress", c.TreasuryAddress)
}

// SignerKey returns the trusted off-chain signer public key bytes. The key is
// hex encoded in the config file, 33-byte compressed or 65-byte uncompressed
// secp256k1.
func (c *Config) SignerKey() ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(c.TrustedSignerKey), "0x")
	key, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("config: TrustedSignerKey: %w", err)
	}
	if len(key) != 33 && len(key) != 65 {
		return nil, fmt.Errorf("config: TrustedSignerKey must be 33 or 65 bytes, got %d", len(key))
	}
	return key, nil
}

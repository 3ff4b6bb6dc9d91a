package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"nftstake/crypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testConfigBody(t *testing.T) (string, []byte) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	pub := ethcrypto.CompressPubkey(&key.PublicKey)
	admin := crypto.MustNewAddress(crypto.StakePrefix, make([]byte, 20)).String()
	treasuryBytes := make([]byte, 20)
	treasuryBytes[19] = 1
	treasury := crypto.MustNewAddress(crypto.StakePrefix, treasuryBytes).String()
	body := `ListenAddress = "127.0.0.1:8545"
DataDir = "./data"
AdminAddress = "` + admin + `"
TreasuryAddress = "` + treasury + `"
TrustedSignerKey = "` + hex.EncodeToString(pub) + `"
`
	return body, pub
}

func TestLoadValidConfig(t *testing.T) {
	body, pub := testConfigBody(t)
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	admin, err := cfg.Admin()
	require.NoError(t, err)
	require.Equal(t, [20]byte{}, admin)

	treasury, err := cfg.Treasury()
	require.NoError(t, err)
	require.Equal(t, byte(1), treasury[19])

	key, err := cfg.SignerKey()
	require.NoError(t, err)
	require.Equal(t, pub, key)
}

func TestLoadRejectsMissingFields(t *testing.T) {
	_, err := Load(writeConfig(t, `DataDir = "./data"`))
	require.Error(t, err)
}

func TestLoadRejectsBadSignerKey(t *testing.T) {
	body, _ := testConfigBody(t)
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	cfg.TrustedSignerKey = "zz"
	_, err = cfg.SignerKey()
	require.Error(t, err)

	cfg.TrustedSignerKey = "0102"
	_, err = cfg.SignerKey()
	require.Error(t, err)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	body, _ := testConfigBody(t)
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	cfg.AdminAddress = "not-an-address"
	_, err = cfg.Admin()
	require.Error(t, err)
}

package gateway

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftstake/crypto"
	"nftstake/native/nftstake"
	"nftstake/state"
	"nftstake/storage"
)

type gatewayEnv struct {
	server  *httptest.Server
	engine  *nftstake.Engine
	custody *state.NFTCustody
	key     *ecdsa.PrivateKey
	clock   int64
	admin   [20]byte
	staker  [20]byte
}

func newGatewayEnv(t *testing.T) *gatewayEnv {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	db := storage.NewMemDB()
	st := state.NewKVState(db)
	custody := state.NewNFTCustody(db)

	env := &gatewayEnv{custody: custody, key: key}
	env.admin[0] = 0xA1
	env.staker[0] = 0xC3

	env.engine = nftstake.NewEngine()
	env.engine.SetState(st)
	env.engine.SetCustody(custody)
	env.engine.SetNowFunc(func() int64 { return env.clock })

	var treasury [20]byte
	treasury[0] = 0xB2
	if err := env.engine.Init(env.admin, treasury, ethcrypto.CompressPubkey(&key.PublicKey)); err != nil {
		t.Fatalf("init: %v", err)
	}

	adminAccount, err := st.GetAccount(env.admin)
	if err != nil {
		t.Fatalf("load admin account: %v", err)
	}
	adminAccount.SetBalance("RWD", big.NewInt(1_000_000))
	if err := st.PutAccount(env.admin, adminAccount); err != nil {
		t.Fatalf("fund admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.server = httptest.NewServer(NewServer(env.engine, logger).Router())
	t.Cleanup(env.server.Close)
	return env
}

func (env *gatewayEnv) addr(raw [20]byte) string {
	return crypto.MustNewAddress(crypto.StakePrefix, raw[:]).String()
}

func (env *gatewayEnv) post(t *testing.T, path string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func (env *gatewayEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(env.server.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func (env *gatewayEnv) sign(t *testing.T, values []*big.Int, nonce uint64) string {
	t.Helper()
	digest, err := nftstake.CanonicalDigest(values, nonce)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := ethcrypto.Sign(digest, env.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return hex.EncodeToString(sig[:64])
}

func (env *gatewayEnv) createPool(t *testing.T) uint64 {
	t.Helper()
	resp, raw := env.post(t, "/v1/pools", map[string]interface{}{
		"caller":         env.addr(env.admin),
		"collection":     "cats",
		"rewardToken":    "RWD",
		"deposit":        "1000000",
		"dailyReward":    "86400",
		"maxDailyReward": "86400",
		"lockDuration":   0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pool: status %d body %s", resp.StatusCode, raw)
	}
	var pool struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &pool); err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	return pool.ID
}

func TestCreatePoolRequiresAdmin(t *testing.T) {
	env := newGatewayEnv(t)
	resp, _ := env.post(t, "/v1/pools", map[string]interface{}{
		"caller":         env.addr(env.staker),
		"collection":     "cats",
		"rewardToken":    "RWD",
		"deposit":        "0",
		"dailyReward":    "1",
		"maxDailyReward": "1",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestStakeClaimFlow(t *testing.T) {
	env := newGatewayEnv(t)
	poolID := env.createPool(t)

	asset := nftstake.AssetHandle{Collection: "cats", ID: "cat-1"}
	if err := env.custody.Mint(env.staker, asset); err != nil {
		t.Fatalf("mint: %v", err)
	}

	rates := []*big.Int{big.NewInt(86400)}
	resp, raw := env.post(t, fmt.Sprintf("/v1/pools/%d/stake", poolID), map[string]interface{}{
		"staker":        env.addr(env.staker),
		"assets":        []map[string]string{{"collection": "cats", "id": "cat-1"}},
		"dailyRates":    []string{"86400"},
		"rateSignature": env.sign(t, rates, 0),
		"fee":           "0",
		"feeSignature":  env.sign(t, []*big.Int{big.NewInt(0)}, 0),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stake: status %d body %s", resp.StatusCode, raw)
	}

	env.clock = 500
	resp, raw = env.get(t, fmt.Sprintf("/v1/pools/%d/rewards/%s?at=500", poolID, env.addr(env.staker)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rewards: status %d body %s", resp.StatusCode, raw)
	}
	var rewards struct {
		Owed string `json:"owed"`
	}
	if err := json.Unmarshal(raw, &rewards); err != nil {
		t.Fatalf("decode rewards: %v", err)
	}
	if rewards.Owed != "500" {
		t.Fatalf("expected 500 owed, got %s", rewards.Owed)
	}

	resp, raw = env.post(t, fmt.Sprintf("/v1/pools/%d/claim", poolID), map[string]interface{}{
		"staker": env.addr(env.staker),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d body %s", resp.StatusCode, raw)
	}
	var claim struct {
		Paid string `json:"paid"`
	}
	if err := json.Unmarshal(raw, &claim); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if claim.Paid != "500" {
		t.Fatalf("expected 500 paid, got %s", claim.Paid)
	}
}

func TestStakeRejectsBadSignature(t *testing.T) {
	env := newGatewayEnv(t)
	poolID := env.createPool(t)

	asset := nftstake.AssetHandle{Collection: "cats", ID: "cat-1"}
	if err := env.custody.Mint(env.staker, asset); err != nil {
		t.Fatalf("mint: %v", err)
	}

	resp, _ := env.post(t, fmt.Sprintf("/v1/pools/%d/stake", poolID), map[string]interface{}{
		"staker":        env.addr(env.staker),
		"assets":        []map[string]string{{"collection": "cats", "id": "cat-1"}},
		"dailyRates":    []string{"86400"},
		"rateSignature": hex.EncodeToString(make([]byte, 64)),
		"fee":           "0",
		"feeSignature":  env.sign(t, []*big.Int{big.NewInt(0)}, 0),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUnknownPoolReturnsNotFound(t *testing.T) {
	env := newGatewayEnv(t)
	resp, _ := env.get(t, "/v1/pools/42/")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPlatformEndpoint(t *testing.T) {
	env := newGatewayEnv(t)
	resp, raw := env.get(t, "/v1/platform")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("platform: status %d body %s", resp.StatusCode, raw)
	}
	var platform struct {
		Admin      string `json:"admin"`
		FeeBalance string `json:"feeBalance"`
	}
	if err := json.Unmarshal(raw, &platform); err != nil {
		t.Fatalf("decode platform: %v", err)
	}
	if platform.Admin != env.addr(env.admin) {
		t.Fatalf("unexpected admin %s", platform.Admin)
	}
	if platform.FeeBalance != "0" {
		t.Fatalf("expected zero fee balance, got %s", platform.FeeBalance)
	}
}

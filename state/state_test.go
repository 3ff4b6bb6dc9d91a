package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftstake/native/nftstake"
	"nftstake/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestPlatformRoundTrip(t *testing.T) {
	st := NewKVState(storage.NewMemDB())

	_, ok, err := st.PlatformGet()
	require.NoError(t, err)
	require.False(t, ok)

	platform := &nftstake.Platform{
		Admin:      testAddr(0x01),
		Treasury:   testAddr(0x02),
		TrustedKey: []byte{0x03, 0x04},
		FeeBalance: big.NewInt(777),
		NextPoolID: 5,
	}
	require.NoError(t, st.PlatformPut(platform))

	loaded, ok, err := st.PlatformGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, platform.Admin, loaded.Admin)
	require.Equal(t, platform.TrustedKey, loaded.TrustedKey)
	require.Zero(t, loaded.FeeBalance.Cmp(big.NewInt(777)))
	require.Equal(t, uint64(5), loaded.NextPoolID)
}

func TestPoolRoundTripKeepsLedgers(t *testing.T) {
	st := NewKVState(storage.NewMemDB())

	pool := &nftstake.Pool{
		ID:                   3,
		Creator:              testAddr(0x01),
		Collection:           "cats",
		RewardToken:          "RWD",
		RewardBalance:        big.NewInt(1000),
		DailyRewardPerNFT:    big.NewInt(10),
		MaxDailyRewardPerNFT: big.NewInt(10),
		CreationTime:         100,
		LockDuration:         3600,
		Nonce:                2,
		TotalStakedCount:     1,
		TotalClaimedReward:   big.NewInt(5),
		Users:                map[string]*nftstake.UserInfo{},
	}
	pool.Users["aa"] = &nftstake.UserInfo{Stakes: []*nftstake.StakeRecord{{
		Asset:               nftstake.AssetHandle{Collection: "cats", ID: "cat-1"},
		StakeTime:           100,
		DailyRewardRate:     big.NewInt(10),
		LastRewardClaimTime: 100,
		PendingReward:       big.NewInt(0),
	}}}
	require.NoError(t, st.PoolPut(pool))

	loaded, ok, err := st.PoolGet(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pool.Collection, loaded.Collection)
	require.Equal(t, uint64(2), loaded.Nonce)
	require.Len(t, loaded.Users["aa"].Stakes, 1)
	require.Equal(t, "cat-1", loaded.Users["aa"].Stakes[0].Asset.ID)

	_, ok, err = st.PoolGet(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccountsDefaultToEmpty(t *testing.T) {
	st := NewKVState(storage.NewMemDB())

	account, err := st.GetAccount(testAddr(0x07))
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Zero(t, account.BalanceOf("RWD").Sign())

	account.SetBalance("RWD", big.NewInt(123))
	require.NoError(t, st.PutAccount(testAddr(0x07), account))

	loaded, err := st.GetAccount(testAddr(0x07))
	require.NoError(t, err)
	require.Zero(t, loaded.BalanceOf("RWD").Cmp(big.NewInt(123)))
}

func TestApplyCommitsWholeChangeSet(t *testing.T) {
	st := NewKVState(storage.NewMemDB())

	platform := &nftstake.Platform{
		Admin:      testAddr(0x01),
		FeeBalance: big.NewInt(50),
		NextPoolID: 2,
	}
	pool := &nftstake.Pool{
		ID:                 1,
		Collection:         "cats",
		RewardToken:        "RWD",
		RewardBalance:      big.NewInt(1000),
		TotalClaimedReward: big.NewInt(0),
		Users:              map[string]*nftstake.UserInfo{},
	}
	account, err := st.GetAccount(testAddr(0x07))
	require.NoError(t, err)
	account.SetBalance("RWD", big.NewInt(321))

	require.NoError(t, st.Apply(nftstake.StateChange{
		Platform: platform,
		Pools:    []*nftstake.Pool{pool},
		Accounts: []nftstake.AccountChange{{Address: testAddr(0x07), Account: account}},
	}))

	loadedPlatform, ok, err := st.PlatformGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, loadedPlatform.FeeBalance.Cmp(big.NewInt(50)))

	loadedPool, ok, err := st.PoolGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cats", loadedPool.Collection)

	loadedAccount, err := st.GetAccount(testAddr(0x07))
	require.NoError(t, err)
	require.Zero(t, loadedAccount.BalanceOf("RWD").Cmp(big.NewInt(321)))
}

func TestApplyRejectsNilRecords(t *testing.T) {
	st := NewKVState(storage.NewMemDB())

	require.Error(t, st.Apply(nftstake.StateChange{Pools: []*nftstake.Pool{nil}}))
	require.Error(t, st.Apply(nftstake.StateChange{
		Accounts: []nftstake.AccountChange{{Address: testAddr(0x01)}},
	}))

	// Nothing leaked into the store.
	_, ok, err := st.PoolGet(0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNFTCustodyLifecycle(t *testing.T) {
	custody := NewNFTCustody(storage.NewMemDB())
	owner := testAddr(0x11)
	other := testAddr(0x22)
	asset := nftstake.AssetHandle{Collection: "cats", ID: "cat-1"}

	require.ErrorIs(t, custody.Take(owner, asset), nftstake.ErrNotOwned)

	require.NoError(t, custody.Mint(owner, asset))
	require.ErrorIs(t, custody.Take(other, asset), nftstake.ErrNotOwned)
	require.NoError(t, custody.Take(owner, asset))

	// While escrowed the asset has no owner entry and cannot be taken again.
	require.ErrorIs(t, custody.Take(owner, asset), nftstake.ErrNotOwned)

	require.NoError(t, custody.Deposit(owner, asset))
	got, err := custody.OwnerOf(asset)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	// Depositing an asset that is not escrowed is refused.
	require.Error(t, custody.Deposit(owner, asset))
}

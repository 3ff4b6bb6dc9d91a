package nftstake

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// FeeToken denominates the platform fee balance and all signed fee amounts.
const FeeToken = "STK"

// Platform holds the process-wide registry configuration: admin identity,
// treasury, trusted off-chain signer key and the accumulated protocol fee
// balance. Exactly one platform exists per deployment; it is created by Init
// and never destroyed.
type Platform struct {
	Admin      [20]byte `json:"admin"`
	Treasury   [20]byte `json:"treasury"`
	TrustedKey []byte   `json:"trustedKey"`
	FeeBalance *big.Int `json:"feeBalance"`
	NextPoolID uint64   `json:"nextPoolId"`
}

// Clone returns a deep copy of the platform record.
func (p *Platform) Clone() *Platform {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TrustedKey = append([]byte(nil), p.TrustedKey...)
	if p.FeeBalance != nil {
		clone.FeeBalance = new(big.Int).Set(p.FeeBalance)
	} else {
		clone.FeeBalance = big.NewInt(0)
	}
	return &clone
}

// AssetHandle references one escrowed NFT by collection and token identifier.
// Custody of the underlying asset is delegated to the AssetCustody
// collaborator; the handle itself is plain data.
type AssetHandle struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// StakeRecord is the accrual bookkeeping for a single escrowed NFT. The record
// is created on stake and destroyed on unstake; PendingReward carries the
// final accrued amount folded in at removal time.
type StakeRecord struct {
	Asset               AssetHandle `json:"asset"`
	StakeTime           int64       `json:"stakeTime"`
	DailyRewardRate     *big.Int    `json:"dailyRewardRate"`
	LastRewardClaimTime int64       `json:"lastRewardClaimTime"`
	PendingReward       *big.Int    `json:"pendingReward"`
}

// Clone returns a deep copy of the stake record.
func (r *StakeRecord) Clone() *StakeRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.DailyRewardRate != nil {
		clone.DailyRewardRate = new(big.Int).Set(r.DailyRewardRate)
	} else {
		clone.DailyRewardRate = big.NewInt(0)
	}
	if r.PendingReward != nil {
		clone.PendingReward = new(big.Int).Set(r.PendingReward)
	} else {
		clone.PendingReward = big.NewInt(0)
	}
	return &clone
}

// UserInfo is the per-staker ledger inside one pool. It is created lazily on
// first stake and may become empty, but is never explicitly destroyed.
type UserInfo struct {
	Stakes []*StakeRecord `json:"stakes"`
}

// Clone returns a deep copy of the ledger.
func (u *UserInfo) Clone() *UserInfo {
	if u == nil {
		return nil
	}
	clone := &UserInfo{Stakes: make([]*StakeRecord, len(u.Stakes))}
	for i, record := range u.Stakes {
		clone.Stakes[i] = record.Clone()
	}
	return clone
}

func (u *UserInfo) recordIndex(asset AssetHandle) int {
	if u == nil {
		return -1
	}
	for i, record := range u.Stakes {
		if record != nil && record.Asset == asset {
			return i
		}
	}
	return -1
}

// Pool scopes one NFT collection's stakes against one reward asset. The nonce
// strictly increments once per successful stake or unstake and backs the
// replay protection of the signed rate/fee protocol.
type Pool struct {
	ID                   uint64               `json:"id"`
	Creator              [20]byte             `json:"creator"`
	Collection           string               `json:"collection"`
	RewardToken          string               `json:"rewardToken"`
	RewardBalance        *big.Int             `json:"rewardBalance"`
	DailyRewardPerNFT    *big.Int             `json:"dailyRewardPerNft"`
	MaxDailyRewardPerNFT *big.Int             `json:"maxDailyRewardPerNft"`
	UsesRarityTiers      bool                 `json:"usesRarityTiers"`
	CreationTime         int64                `json:"creationTime"`
	LockDuration         int64                `json:"lockDuration"`
	Nonce                uint64               `json:"nonce"`
	TotalStakedCount     uint64               `json:"totalStakedCount"`
	TotalClaimedReward   *big.Int             `json:"totalClaimedReward"`
	Users                map[string]*UserInfo `json:"users"`
}

// Clone returns a deep copy of the pool including its stake ledgers.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.RewardBalance = copyAmount(p.RewardBalance)
	clone.DailyRewardPerNFT = copyAmount(p.DailyRewardPerNFT)
	clone.MaxDailyRewardPerNFT = copyAmount(p.MaxDailyRewardPerNFT)
	clone.TotalClaimedReward = copyAmount(p.TotalClaimedReward)
	clone.Users = make(map[string]*UserInfo, len(p.Users))
	for key, info := range p.Users {
		clone.Users[key] = info.Clone()
	}
	return &clone
}

// EndTime returns the end of the lock window, or 0 for flexible pools.
func (p *Pool) EndTime() int64 {
	if p == nil || p.LockDuration <= 0 {
		return 0
	}
	return p.CreationTime + p.LockDuration
}

// AcceptingStakes reports whether new stakes are permitted at the given time.
// Flexible pools accept stakes forever; locked pools refuse stakes once the
// lock window has fully elapsed.
func (p *Pool) AcceptingStakes(now int64) bool {
	if p == nil {
		return false
	}
	return p.LockDuration <= 0 || now < p.CreationTime+p.LockDuration
}

// UnstakeAllowed reports whether unstaking is permitted at the given time.
// Locked pools block unstakes until the lock window elapses.
func (p *Pool) UnstakeAllowed(now int64) bool {
	if p == nil {
		return false
	}
	return p.LockDuration <= 0 || now >= p.CreationTime+p.LockDuration
}

func (p *Pool) userLedger(staker [20]byte) *UserInfo {
	if p == nil {
		return nil
	}
	return p.Users[userKey(staker)]
}

func (p *Pool) ensureUserLedger(staker [20]byte) *UserInfo {
	if p.Users == nil {
		p.Users = make(map[string]*UserInfo)
	}
	key := userKey(staker)
	info, ok := p.Users[key]
	if !ok || info == nil {
		info = &UserInfo{}
		p.Users[key] = info
	}
	return info
}

func userKey(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// NormalizeToken canonicalises a token symbol to its uppercase trimmed form.
func NormalizeToken(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

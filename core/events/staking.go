package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"nftstake/core/types"
	"nftstake/crypto"
)

const (
	// TypePoolCreated is emitted when a new staking pool is registered.
	TypePoolCreated = "nftstake.pool.created"
	// TypeNftStaked captures a single NFT entering escrow.
	TypeNftStaked = "nftstake.staked"
	// TypeNftUnstaked captures a single NFT leaving escrow, carrying the final
	// accrued reward folded into the record before destruction.
	TypeNftUnstaked = "nftstake.unstaked"
	// TypeClaimedReward is emitted when a staker claims accrued rewards.
	TypeClaimedReward = "nftstake.rewardClaimed"
	// TypeRewardWithdrawn signals an admin drain of a pool's reward balance.
	TypeRewardWithdrawn = "nftstake.rewardWithdrawn"
	// TypePlatformFeeWithdrawn signals an admin drain of accumulated fees.
	TypePlatformFeeWithdrawn = "nftstake.feeWithdrawn"
	// TypeTreasuryUpdated signals a treasury rotation.
	TypeTreasuryUpdated = "nftstake.treasuryUpdated"
	// TypeAdminChanged signals an admin handover.
	TypeAdminChanged = "nftstake.adminChanged"
	// TypeVerificationKeyChanged signals rotation of the trusted signer key.
	TypeVerificationKeyChanged = "nftstake.verificationKeyChanged"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.StakePrefix, addr[:]).String()
}

// PoolCreated carries the immutable configuration of a freshly created pool.
type PoolCreated struct {
	PoolID        uint64
	Creator       [20]byte
	Collection    string
	RewardToken   string
	RewardDeposit *big.Int
	DailyReward   *big.Int
	MaxDaily      *big.Int
	RarityTiers   bool
	LockDuration  int64
	CreatedAt     int64
}

// EventType satisfies the Event interface.
func (PoolCreated) EventType() string { return TypePoolCreated }

// Event converts the structured payload into a broadcastable event.
func (e PoolCreated) Event() *types.Event {
	attrs := map[string]string{
		"poolId":       strconv.FormatUint(e.PoolID, 10),
		"creator":      formatAddress(e.Creator),
		"collection":   e.Collection,
		"rewardToken":  e.RewardToken,
		"deposit":      formatAmount(e.RewardDeposit),
		"dailyReward":  formatAmount(e.DailyReward),
		"maxDaily":     formatAmount(e.MaxDaily),
		"rarityTiers":  strconv.FormatBool(e.RarityTiers),
		"lockDuration": strconv.FormatInt(e.LockDuration, 10),
		"createdAt":    strconv.FormatInt(e.CreatedAt, 10),
	}
	return &types.Event{Type: TypePoolCreated, Attributes: attrs}
}

// NftStaked captures one asset entering a pool's escrow.
type NftStaked struct {
	PoolID    uint64
	Staker    [20]byte
	AssetID   string
	DailyRate *big.Int
	StakedAt  int64
	Nonce     uint64
}

// EventType satisfies the Event interface.
func (NftStaked) EventType() string { return TypeNftStaked }

// Event converts the structured payload into a broadcastable event.
func (e NftStaked) Event() *types.Event {
	attrs := map[string]string{
		"poolId":    strconv.FormatUint(e.PoolID, 10),
		"staker":    formatAddress(e.Staker),
		"assetId":   e.AssetID,
		"dailyRate": formatAmount(e.DailyRate),
		"stakedAt":  strconv.FormatInt(e.StakedAt, 10),
		"nonce":     strconv.FormatUint(e.Nonce, 10),
	}
	return &types.Event{Type: TypeNftStaked, Attributes: attrs}
}

// NftUnstaked captures one asset leaving a pool's escrow. AccruedReward is the
// amount folded into the record at removal time; it is informational and is
// not paid out by the unstake itself.
type NftUnstaked struct {
	PoolID        uint64
	Staker        [20]byte
	AssetID       string
	AccruedReward *big.Int
	UnstakedAt    int64
	Nonce         uint64
}

// EventType satisfies the Event interface.
func (NftUnstaked) EventType() string { return TypeNftUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e NftUnstaked) Event() *types.Event {
	attrs := map[string]string{
		"poolId":        strconv.FormatUint(e.PoolID, 10),
		"staker":        formatAddress(e.Staker),
		"assetId":       e.AssetID,
		"accruedReward": formatAmount(e.AccruedReward),
		"unstakedAt":    strconv.FormatInt(e.UnstakedAt, 10),
		"nonce":         strconv.FormatUint(e.Nonce, 10),
	}
	return &types.Event{Type: TypeNftUnstaked, Attributes: attrs}
}

// ClaimedReward captures a reward payout to a staker.
type ClaimedReward struct {
	PoolID    uint64
	Staker    [20]byte
	Amount    *big.Int
	ClaimedAt int64
}

// EventType satisfies the Event interface.
func (ClaimedReward) EventType() string { return TypeClaimedReward }

// Event converts the structured payload into a broadcastable event.
func (e ClaimedReward) Event() *types.Event {
	attrs := map[string]string{
		"poolId":    strconv.FormatUint(e.PoolID, 10),
		"staker":    formatAddress(e.Staker),
		"amount":    formatAmount(e.Amount),
		"claimedAt": strconv.FormatInt(e.ClaimedAt, 10),
	}
	return &types.Event{Type: TypeClaimedReward, Attributes: attrs}
}

// RewardWithdrawn captures an admin drain of a pool's residual reward balance.
type RewardWithdrawn struct {
	PoolID   uint64
	Treasury [20]byte
	Amount   *big.Int
}

// EventType satisfies the Event interface.
func (RewardWithdrawn) EventType() string { return TypeRewardWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e RewardWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		"poolId":   strconv.FormatUint(e.PoolID, 10),
		"treasury": formatAddress(e.Treasury),
		"amount":   formatAmount(e.Amount),
	}
	return &types.Event{Type: TypeRewardWithdrawn, Attributes: attrs}
}

// PlatformFeeWithdrawn captures an admin drain of the protocol fee balance.
type PlatformFeeWithdrawn struct {
	Treasury [20]byte
	Amount   *big.Int
}

// EventType satisfies the Event interface.
func (PlatformFeeWithdrawn) EventType() string { return TypePlatformFeeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e PlatformFeeWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		"treasury": formatAddress(e.Treasury),
		"amount":   formatAmount(e.Amount),
	}
	return &types.Event{Type: TypePlatformFeeWithdrawn, Attributes: attrs}
}

// TreasuryUpdated signals a treasury address rotation.
type TreasuryUpdated struct {
	Treasury [20]byte
}

// EventType satisfies the Event interface.
func (TreasuryUpdated) EventType() string { return TypeTreasuryUpdated }

// Event converts the structured payload into a broadcastable event.
func (e TreasuryUpdated) Event() *types.Event {
	return &types.Event{Type: TypeTreasuryUpdated, Attributes: map[string]string{
		"treasury": formatAddress(e.Treasury),
	}}
}

// AdminChanged signals an admin handover.
type AdminChanged struct {
	Admin [20]byte
}

// EventType satisfies the Event interface.
func (AdminChanged) EventType() string { return TypeAdminChanged }

// Event converts the structured payload into a broadcastable event.
func (e AdminChanged) Event() *types.Event {
	return &types.Event{Type: TypeAdminChanged, Attributes: map[string]string{
		"admin": formatAddress(e.Admin),
	}}
}

// VerificationKeyChanged signals rotation of the trusted off-chain signer key.
type VerificationKeyChanged struct {
	PublicKey []byte
}

// EventType satisfies the Event interface.
func (VerificationKeyChanged) EventType() string { return TypeVerificationKeyChanged }

// Event converts the structured payload into a broadcastable event.
func (e VerificationKeyChanged) Event() *types.Event {
	return &types.Event{Type: TypeVerificationKeyChanged, Attributes: map[string]string{
		"publicKey": hex.EncodeToString(e.PublicKey),
	}}
}

package gateway

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftstake/crypto"
	"nftstake/native/nftstake"
)

type assetPayload struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (a assetPayload) handle() nftstake.AssetHandle {
	return nftstake.AssetHandle{Collection: strings.TrimSpace(a.Collection), ID: strings.TrimSpace(a.ID)}
}

func formatAddr(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.StakePrefix, addr[:]).String()
}

func parseAddress(field, value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("%s: %w", field, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: amount must be non-negative", field)
	}
	return amount, nil
}

func parseAmounts(field string, values []string) ([]*big.Int, error) {
	amounts := make([]*big.Int, len(values))
	for i, value := range values {
		amount, err := parseAmount(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}
	return amounts, nil
}

func parseHex(field, value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid hex: %w", field, err)
	}
	return raw, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, nftstake.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, nftstake.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, nftstake.ErrNotInitialized),
		errors.Is(err, nftstake.ErrPoolNotFound),
		errors.Is(err, nftstake.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, nftstake.ErrAlreadyInitialized),
		errors.Is(err, nftstake.ErrPoolEnded),
		errors.Is(err, nftstake.ErrStillLocked),
		errors.Is(err, nftstake.ErrRateTooHigh),
		errors.Is(err, nftstake.ErrRateMismatch),
		errors.Is(err, nftstake.ErrWrongCollection),
		errors.Is(err, nftstake.ErrNotOwned),
		errors.Is(err, nftstake.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, nftstake.ErrLengthMismatch),
		errors.Is(err, nftstake.ErrEmptyBatch),
		errors.Is(err, nftstake.ErrInvalidRate),
		errors.Is(err, nftstake.ErrInvalidTime):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type poolResponse struct {
	ID                   uint64 `json:"id"`
	Creator              string `json:"creator"`
	Collection           string `json:"collection"`
	RewardToken          string `json:"rewardToken"`
	RewardBalance        string `json:"rewardBalance"`
	DailyRewardPerNFT    string `json:"dailyRewardPerNft"`
	MaxDailyRewardPerNFT string `json:"maxDailyRewardPerNft"`
	UsesRarityTiers      bool   `json:"usesRarityTiers"`
	CreationTime         int64  `json:"creationTime"`
	LockDuration         int64  `json:"lockDuration"`
	Nonce                uint64 `json:"nonce"`
	TotalStakedCount     uint64 `json:"totalStakedCount"`
	TotalClaimedReward   string `json:"totalClaimedReward"`
}

func renderPool(pool *nftstake.Pool) poolResponse {
	return poolResponse{
		ID:                   pool.ID,
		Creator:              crypto.MustNewAddress(crypto.StakePrefix, pool.Creator[:]).String(),
		Collection:           pool.Collection,
		RewardToken:          pool.RewardToken,
		RewardBalance:        pool.RewardBalance.String(),
		DailyRewardPerNFT:    pool.DailyRewardPerNFT.String(),
		MaxDailyRewardPerNFT: pool.MaxDailyRewardPerNFT.String(),
		UsesRarityTiers:      pool.UsesRarityTiers,
		CreationTime:         pool.CreationTime,
		LockDuration:         pool.LockDuration,
		Nonce:                pool.Nonce,
		TotalStakedCount:     pool.TotalStakedCount,
		TotalClaimedReward:   pool.TotalClaimedReward.String(),
	}
}

type stakeRecordResponse struct {
	Asset               assetPayload `json:"asset"`
	StakeTime           int64        `json:"stakeTime"`
	DailyRewardRate     string       `json:"dailyRewardRate"`
	LastRewardClaimTime int64        `json:"lastRewardClaimTime"`
	PendingReward       string       `json:"pendingReward"`
}

func renderStakes(records []*nftstake.StakeRecord) []stakeRecordResponse {
	out := make([]stakeRecordResponse, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, stakeRecordResponse{
			Asset:               assetPayload{Collection: record.Asset.Collection, ID: record.Asset.ID},
			StakeTime:           record.StakeTime,
			DailyRewardRate:     record.DailyRewardRate.String(),
			LastRewardClaimTime: record.LastRewardClaimTime,
			PendingReward:       record.PendingReward.String(),
		})
	}
	return out
}

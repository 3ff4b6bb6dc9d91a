package nftstake

import "math/big"

// SecondsPerDay converts daily reward rates into per-second accrual.
const SecondsPerDay = 86400

// rewardFor computes the reward owed to a single stake record at the given
// time. When poolEndTime is positive accrual is clamped there, so locked
// pools stop paying once the lock window elapses. Integer division truncates
// toward zero; sub-day remainders are forfeited rather than carried between
// evaluations.
func rewardFor(record *StakeRecord, now, poolEndTime int64) (*big.Int, error) {
	if record == nil {
		return big.NewInt(0), nil
	}
	base := now
	if poolEndTime > 0 && now > poolEndTime {
		base = poolEndTime
	}
	if record.StakeTime > base {
		return nil, ErrInvalidTime
	}
	if record.LastRewardClaimTime > base {
		return big.NewInt(0), nil
	}
	anchor := record.StakeTime
	if record.LastRewardClaimTime > anchor {
		anchor = record.LastRewardClaimTime
	}
	elapsed := big.NewInt(base - anchor)
	reward := new(big.Int).Mul(elapsed, copyAmount(record.DailyRewardRate))
	return reward.Quo(reward, big.NewInt(SecondsPerDay)), nil
}

// sumRewards totals the accrual over every record in the ledger at the given
// time, using the pool's lock-window end as the clamp.
func sumRewards(info *UserInfo, now, poolEndTime int64) (*big.Int, error) {
	total := big.NewInt(0)
	if info == nil {
		return total, nil
	}
	for _, record := range info.Stakes {
		owed, err := rewardFor(record, now, poolEndTime)
		if err != nil {
			return nil, err
		}
		total.Add(total, owed)
	}
	return total, nil
}

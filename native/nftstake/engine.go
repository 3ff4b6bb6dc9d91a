package nftstake

import (
	"fmt"
	"math/big"
	"time"

	"nftstake/core/events"
	"nftstake/core/types"
)

// engineState is the narrow persistence surface the engine needs from its
// host. Getters must return defensive copies. Apply is the single commit
// point: the engine hands over the complete mutation set of one operation,
// and the backend persists all of it or none of it.
type engineState interface {
	PlatformGet() (*Platform, bool, error)
	PoolGet(id uint64) (*Pool, bool, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	Apply(change StateChange) error
}

// AccountChange pairs an address with its new account record.
type AccountChange struct {
	Address [20]byte
	Account *types.Account
}

// StateChange is the complete mutation set of one engine operation. Nil
// fields are untouched; everything present commits atomically.
type StateChange struct {
	Platform *Platform
	Pools    []*Pool
	Accounts []AccountChange
}

// AssetCustody escrows and releases the underlying non-fungible assets. Take
// fails when the owner does not hold the asset; Deposit returns a previously
// escrowed asset to the owner.
type AssetCustody interface {
	Take(owner [20]byte, asset AssetHandle) error
	Deposit(owner [20]byte, asset AssetHandle) error
}

// Engine wires the staking pool business logic with external state, asset
// custody and event emission. Each exported operation commits fully or leaves
// no persisted effect.
type Engine struct {
	state   engineState
	custody AssetCustody
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a staking engine with a no-op emitter. Callers configure
// the state backend and custody collaborator before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the asset custody collaborator.
func (e *Engine) SetCustody(custody AssetCustody) { e.custody = custody }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return fmt.Errorf("nftstake: engine state not configured")
	}
	return nil
}

func (e *Engine) loadPlatform() (*Platform, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	platform, ok, err := e.state.PlatformGet()
	if err != nil {
		return nil, err
	}
	if !ok || platform == nil {
		return nil, ErrNotInitialized
	}
	return platform, nil
}

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	pool, ok, err := e.state.PoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = types.NewAccount()
	}
	return account, nil
}

func requireAdmin(platform *Platform, caller [20]byte) error {
	if platform == nil || platform.Admin != caller {
		return ErrPermissionDenied
	}
	return nil
}

// Init creates the platform registry. It may be called exactly once per
// deployment.
func (e *Engine) Init(admin, treasury [20]byte, trustedKey []byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	_, ok, err := e.state.PlatformGet()
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	platform := &Platform{
		Admin:      admin,
		Treasury:   treasury,
		TrustedKey: append([]byte(nil), trustedKey...),
		FeeBalance: big.NewInt(0),
		NextPoolID: 1,
	}
	return e.state.Apply(StateChange{Platform: platform})
}

// SetTreasury rotates the treasury address. Admin only.
func (e *Engine) SetTreasury(caller, treasury [20]byte) error {
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := requireAdmin(platform, caller); err != nil {
		return err
	}
	platform.Treasury = treasury
	if err := e.state.Apply(StateChange{Platform: platform}); err != nil {
		return err
	}
	e.emit(events.TreasuryUpdated{Treasury: treasury})
	return nil
}

// ChangeAdmin hands the platform over to a new admin identity. Admin only.
func (e *Engine) ChangeAdmin(caller, newAdmin [20]byte) error {
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := requireAdmin(platform, caller); err != nil {
		return err
	}
	platform.Admin = newAdmin
	if err := e.state.Apply(StateChange{Platform: platform}); err != nil {
		return err
	}
	e.emit(events.AdminChanged{Admin: newAdmin})
	return nil
}

// ChangeVerificationKey rotates the trusted off-chain signer key. Admin only.
func (e *Engine) ChangeVerificationKey(caller [20]byte, publicKey []byte) error {
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := requireAdmin(platform, caller); err != nil {
		return err
	}
	platform.TrustedKey = append([]byte(nil), publicKey...)
	if err := e.state.Apply(StateChange{Platform: platform}); err != nil {
		return err
	}
	e.emit(events.VerificationKeyChanged{PublicKey: append([]byte(nil), publicKey...)})
	return nil
}

// CreatePool registers a new staking pool for one collection and deposits the
// initial reward balance from the caller. Admin only.
func (e *Engine) CreatePool(caller [20]byte, collection, rewardToken string, deposit, dailyRate, maxDailyRate *big.Int, usesRarityTiers bool, lockDuration int64) (*Pool, error) {
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(platform, caller); err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, fmt.Errorf("nftstake: collection required")
	}
	token := NormalizeToken(rewardToken)
	if token == "" {
		return nil, fmt.Errorf("nftstake: reward token required")
	}
	deposit = copyAmount(deposit)
	dailyRate = copyAmount(dailyRate)
	maxDailyRate = copyAmount(maxDailyRate)
	if deposit.Sign() < 0 || dailyRate.Sign() < 0 {
		return nil, ErrInvalidRate
	}
	if maxDailyRate.Cmp(dailyRate) < 0 {
		return nil, ErrInvalidRate
	}
	if lockDuration < 0 {
		return nil, fmt.Errorf("nftstake: negative lock duration")
	}
	account, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	if account.BalanceOf(token).Cmp(deposit) < 0 {
		return nil, ErrInsufficientFunds
	}
	account.SetBalance(token, new(big.Int).Sub(account.BalanceOf(token), deposit))
	now := e.now()
	pool := &Pool{
		ID:                   platform.NextPoolID,
		Creator:              caller,
		Collection:           collection,
		RewardToken:          token,
		RewardBalance:        deposit,
		DailyRewardPerNFT:    dailyRate,
		MaxDailyRewardPerNFT: maxDailyRate,
		UsesRarityTiers:      usesRarityTiers,
		CreationTime:         now,
		LockDuration:         lockDuration,
		TotalClaimedReward:   big.NewInt(0),
		Users:                make(map[string]*UserInfo),
	}
	platform.NextPoolID++
	change := StateChange{
		Platform: platform,
		Pools:    []*Pool{pool},
		Accounts: []AccountChange{{Address: caller, Account: account}},
	}
	if err := e.state.Apply(change); err != nil {
		return nil, err
	}
	e.emit(events.PoolCreated{
		PoolID:        pool.ID,
		Creator:       caller,
		Collection:    collection,
		RewardToken:   token,
		RewardDeposit: copyAmount(deposit),
		DailyReward:   copyAmount(dailyRate),
		MaxDaily:      copyAmount(maxDailyRate),
		RarityTiers:   usesRarityTiers,
		LockDuration:  lockDuration,
		CreatedAt:     now,
	})
	return pool.Clone(), nil
}

// debitFee moves the signed fee amount from the staker into the platform fee
// balance. Both the staker account and the platform are mutated in place; the
// caller persists them only after the whole batch has validated.
func debitFee(platform *Platform, account *types.Account, fee *big.Int) error {
	if fee == nil || fee.Sign() <= 0 {
		return nil
	}
	balance := account.BalanceOf(FeeToken)
	if balance.Cmp(fee) < 0 {
		return ErrInsufficientFunds
	}
	account.SetBalance(FeeToken, balance.Sub(balance, fee))
	if platform.FeeBalance == nil {
		platform.FeeBalance = big.NewInt(0)
	}
	platform.FeeBalance = new(big.Int).Add(platform.FeeBalance, fee)
	return nil
}

func validateStakeRate(pool *Pool, rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	if rate.Cmp(pool.MaxDailyRewardPerNFT) > 0 {
		return ErrRateTooHigh
	}
	if !pool.UsesRarityTiers && rate.Cmp(pool.DailyRewardPerNFT) != 0 {
		return ErrRateMismatch
	}
	return nil
}

// BatchStake escrows the given assets into the pool at the signed daily
// rates, charging the signed platform fee. The whole batch commits or fails
// as a unit; the pool nonce advances by exactly one on success.
func (e *Engine) BatchStake(staker [20]byte, assets []AssetHandle, poolID uint64, dailyRates []*big.Int, rateSig []byte, fee *big.Int, feeSig []byte) error {
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if e.custody == nil {
		return fmt.Errorf("nftstake: asset custody not configured")
	}
	if len(assets) == 0 {
		return ErrEmptyBatch
	}
	if len(assets) != len(dailyRates) {
		return ErrLengthMismatch
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if !VerifyAuthorization(dailyRates, pool.Nonce, platform.TrustedKey, rateSig) {
		return ErrInvalidSignature
	}
	if !VerifyAuthorization([]*big.Int{fee}, pool.Nonce, platform.TrustedKey, feeSig) {
		return ErrInvalidSignature
	}
	now := e.now()
	if !pool.AcceptingStakes(now) {
		return ErrPoolEnded
	}
	for i, asset := range assets {
		if asset.Collection != pool.Collection {
			return ErrWrongCollection
		}
		if err := validateStakeRate(pool, dailyRates[i]); err != nil {
			return err
		}
	}
	account, err := e.loadAccount(staker)
	if err != nil {
		return err
	}
	if err := debitFee(platform, account, fee); err != nil {
		return err
	}
	// Escrow the assets. A failure part way returns the already-taken assets
	// so the aborted batch leaves custody untouched.
	for i, asset := range assets {
		if err := e.custody.Take(staker, asset); err != nil {
			for j := 0; j < i; j++ {
				_ = e.custody.Deposit(staker, assets[j])
			}
			return fmt.Errorf("%w: %s", ErrNotOwned, asset.ID)
		}
	}
	ledger := pool.ensureUserLedger(staker)
	for i, asset := range assets {
		ledger.Stakes = append(ledger.Stakes, &StakeRecord{
			Asset:               asset,
			StakeTime:           now,
			DailyRewardRate:     copyAmount(dailyRates[i]),
			LastRewardClaimTime: now,
			PendingReward:       big.NewInt(0),
		})
		pool.TotalStakedCount++
	}
	pool.Nonce++
	change := StateChange{
		Platform: platform,
		Pools:    []*Pool{pool},
		Accounts: []AccountChange{{Address: staker, Account: account}},
	}
	if err := e.state.Apply(change); err != nil {
		// The commit failed, so nothing persisted; hand the assets back.
		for _, asset := range assets {
			_ = e.custody.Deposit(staker, asset)
		}
		return err
	}
	for i, asset := range assets {
		e.emit(events.NftStaked{
			PoolID:    poolID,
			Staker:    staker,
			AssetID:   asset.ID,
			DailyRate: copyAmount(dailyRates[i]),
			StakedAt:  now,
			Nonce:     pool.Nonce,
		})
	}
	return nil
}

// BatchUnstake releases the given assets back to the staker, folding the
// final accrued reward into each record before destruction. The fold is
// informational: payouts only happen through ClaimReward. The whole batch
// commits or fails as a unit; the pool nonce advances by exactly one on
// success.
func (e *Engine) BatchUnstake(staker [20]byte, assets []AssetHandle, poolID uint64, fee *big.Int, feeSig []byte) error {
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if e.custody == nil {
		return fmt.Errorf("nftstake: asset custody not configured")
	}
	if len(assets) == 0 {
		return ErrEmptyBatch
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if !VerifyAuthorization([]*big.Int{fee}, pool.Nonce, platform.TrustedKey, feeSig) {
		return ErrInvalidSignature
	}
	now := e.now()
	if !pool.UnstakeAllowed(now) {
		return ErrStillLocked
	}
	ledger := pool.userLedger(staker)
	if ledger == nil {
		return ErrRecordNotFound
	}
	account, err := e.loadAccount(staker)
	if err != nil {
		return err
	}
	if err := debitFee(platform, account, fee); err != nil {
		return err
	}
	endTime := pool.EndTime()
	accrued := make([]*big.Int, 0, len(assets))
	released := make([]AssetHandle, 0, len(assets))
	for _, asset := range assets {
		if asset.Collection != pool.Collection {
			return ErrWrongCollection
		}
		// Records match on the full (collection, id) identity so custody is
		// always released under the handle that was escrowed.
		idx := ledger.recordIndex(asset)
		if idx < 0 {
			return ErrRecordNotFound
		}
		record := ledger.Stakes[idx]
		owed, err := rewardFor(record, now, endTime)
		if err != nil {
			return err
		}
		record.PendingReward = owed
		accrued = append(accrued, owed)
		released = append(released, record.Asset)
		ledger.Stakes = append(ledger.Stakes[:idx], ledger.Stakes[idx+1:]...)
		pool.TotalStakedCount--
	}
	// Return the assets. A failure part way re-escrows the already-returned
	// assets so the aborted batch leaves custody untouched.
	for i, asset := range released {
		if err := e.custody.Deposit(staker, asset); err != nil {
			for j := 0; j < i; j++ {
				_ = e.custody.Take(staker, released[j])
			}
			return fmt.Errorf("nftstake: release asset %s: %w", asset.ID, err)
		}
	}
	pool.Nonce++
	change := StateChange{
		Platform: platform,
		Pools:    []*Pool{pool},
		Accounts: []AccountChange{{Address: staker, Account: account}},
	}
	if err := e.state.Apply(change); err != nil {
		// The commit failed, so nothing persisted; put the assets back in
		// escrow to match the stored records.
		for _, asset := range released {
			_ = e.custody.Take(staker, asset)
		}
		return err
	}
	for i, asset := range released {
		e.emit(events.NftUnstaked{
			PoolID:        poolID,
			Staker:        staker,
			AssetID:       asset.ID,
			AccruedReward: copyAmount(accrued[i]),
			UnstakedAt:    now,
			Nonce:         pool.Nonce,
		})
	}
	return nil
}

// CalculateRewards returns the total reward owed to the staker across every
// stake record in the pool, evaluated at the given time. Read only.
func (e *Engine) CalculateRewards(staker [20]byte, poolID uint64, now int64) (*big.Int, error) {
	if _, err := e.loadPlatform(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	return sumRewards(pool.userLedger(staker), now, pool.EndTime())
}

// ClaimReward pays out the staker's accrued rewards, clamped to the pool's
// remaining reward balance. A drained pool pays zero without error. Claiming
// does not advance the pool nonce.
func (e *Engine) ClaimReward(staker [20]byte, poolID uint64) (*big.Int, error) {
	if _, err := e.loadPlatform(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	ledger := pool.userLedger(staker)
	owed, err := sumRewards(ledger, now, pool.EndTime())
	if err != nil {
		return nil, err
	}
	if pool.RewardBalance == nil {
		pool.RewardBalance = big.NewInt(0)
	}
	paid := owed
	if paid.Cmp(pool.RewardBalance) > 0 {
		paid = new(big.Int).Set(pool.RewardBalance)
	}
	pool.RewardBalance = new(big.Int).Sub(pool.RewardBalance, paid)
	if pool.TotalClaimedReward == nil {
		pool.TotalClaimedReward = big.NewInt(0)
	}
	pool.TotalClaimedReward = new(big.Int).Add(pool.TotalClaimedReward, paid)
	if ledger != nil {
		for _, record := range ledger.Stakes {
			record.PendingReward = big.NewInt(0)
			record.LastRewardClaimTime = now
		}
	}
	account, err := e.loadAccount(staker)
	if err != nil {
		return nil, err
	}
	account.SetBalance(pool.RewardToken, new(big.Int).Add(account.BalanceOf(pool.RewardToken), paid))
	change := StateChange{
		Pools:    []*Pool{pool},
		Accounts: []AccountChange{{Address: staker, Account: account}},
	}
	if err := e.state.Apply(change); err != nil {
		return nil, err
	}
	e.emit(events.ClaimedReward{
		PoolID:    poolID,
		Staker:    staker,
		Amount:    copyAmount(paid),
		ClaimedAt: now,
	})
	return copyAmount(paid), nil
}

// WithdrawReward drains the pool's entire residual reward balance to the
// treasury. Admin only; full-balance semantics, no partial withdraw.
func (e *Engine) WithdrawReward(caller [20]byte, poolID uint64) (*big.Int, error) {
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(platform, caller); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	amount := copyAmount(pool.RewardBalance)
	pool.RewardBalance = big.NewInt(0)
	treasury, err := e.loadAccount(platform.Treasury)
	if err != nil {
		return nil, err
	}
	treasury.SetBalance(pool.RewardToken, new(big.Int).Add(treasury.BalanceOf(pool.RewardToken), amount))
	change := StateChange{
		Pools:    []*Pool{pool},
		Accounts: []AccountChange{{Address: platform.Treasury, Account: treasury}},
	}
	if err := e.state.Apply(change); err != nil {
		return nil, err
	}
	e.emit(events.RewardWithdrawn{
		PoolID:   poolID,
		Treasury: platform.Treasury,
		Amount:   copyAmount(amount),
	})
	return amount, nil
}

// WithdrawPlatformFee drains the accumulated protocol fee balance to the
// treasury. Admin only; full-balance semantics.
func (e *Engine) WithdrawPlatformFee(caller [20]byte) (*big.Int, error) {
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(platform, caller); err != nil {
		return nil, err
	}
	amount := copyAmount(platform.FeeBalance)
	platform.FeeBalance = big.NewInt(0)
	treasury, err := e.loadAccount(platform.Treasury)
	if err != nil {
		return nil, err
	}
	treasury.SetBalance(FeeToken, new(big.Int).Add(treasury.BalanceOf(FeeToken), amount))
	change := StateChange{
		Platform: platform,
		Accounts: []AccountChange{{Address: platform.Treasury, Account: treasury}},
	}
	if err := e.state.Apply(change); err != nil {
		return nil, err
	}
	e.emit(events.PlatformFeeWithdrawn{
		Treasury: platform.Treasury,
		Amount:   copyAmount(amount),
	})
	return amount, nil
}

// PlatformInfo returns a copy of the platform registry record.
func (e *Engine) PlatformInfo() (*Platform, error) {
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	return platform.Clone(), nil
}

// PoolInfo returns a copy of the pool identified by id.
func (e *Engine) PoolInfo(poolID uint64) (*Pool, error) {
	if _, err := e.loadPlatform(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// StakesOf returns copies of the staker's stake records within the pool.
func (e *Engine) StakesOf(staker [20]byte, poolID uint64) ([]*StakeRecord, error) {
	pool, err := e.PoolInfo(poolID)
	if err != nil {
		return nil, err
	}
	ledger := pool.userLedger(staker)
	if ledger == nil {
		return nil, nil
	}
	return ledger.Stakes, nil
}

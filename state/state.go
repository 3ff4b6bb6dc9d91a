// Package state persists the staking platform's registry, pools and accounts
// in a key-value store, implementing the persistence surface the engine
// expects: getters return defensive copies and Apply commits a whole change
// set through one batch write.
package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"nftstake/core/types"
	"nftstake/native/nftstake"
	"nftstake/storage"
)

const (
	platformKey   = "platform"
	poolKeyPrefix = "pool/"
	acctKeyPrefix = "acct/"
)

// KVState adapts a storage.Database into the engine's state interface. Values
// are stored JSON-encoded under prefixed keys.
type KVState struct {
	db storage.Database
}

// NewKVState wraps the given database.
func NewKVState(db storage.Database) *KVState {
	return &KVState{db: db}
}

func (s *KVState) load(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KVState) store(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), raw)
}

// PlatformGet loads the platform registry record.
func (s *KVState) PlatformGet() (*nftstake.Platform, bool, error) {
	platform := &nftstake.Platform{}
	ok, err := s.load(platformKey, platform)
	if err != nil || !ok {
		return nil, false, err
	}
	return platform, true, nil
}

// PlatformPut stores the platform registry record.
func (s *KVState) PlatformPut(platform *nftstake.Platform) error {
	if platform == nil {
		return fmt.Errorf("state: nil platform")
	}
	return s.store(platformKey, platform)
}

func poolKey(id uint64) string {
	return poolKeyPrefix + strconv.FormatUint(id, 10)
}

// PoolGet loads a pool by identifier.
func (s *KVState) PoolGet(id uint64) (*nftstake.Pool, bool, error) {
	pool := &nftstake.Pool{}
	ok, err := s.load(poolKey(id), pool)
	if err != nil || !ok {
		return nil, false, err
	}
	return pool, true, nil
}

// PoolPut stores a pool.
func (s *KVState) PoolPut(pool *nftstake.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool")
	}
	return s.store(poolKey(pool.ID), pool)
}

func acctKey(addr [20]byte) string {
	return acctKeyPrefix + hex.EncodeToString(addr[:])
}

// GetAccount loads the account for the given address. Missing accounts come
// back as empty accounts, never nil.
func (s *KVState) GetAccount(addr [20]byte) (*types.Account, error) {
	account := types.NewAccount()
	if _, err := s.load(acctKey(addr), account); err != nil {
		return nil, err
	}
	if account.Balances == nil {
		account.Balances = types.NewAccount().Balances
	}
	return account, nil
}

// PutAccount stores the account for the given address.
func (s *KVState) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	return s.store(acctKey(addr), account)
}

// Apply commits one engine operation's mutations through a single batch
// write. Everything is encoded up front so an encoding failure aborts before
// any key is touched.
func (s *KVState) Apply(change nftstake.StateChange) error {
	entries := make([]storage.BatchEntry, 0, 2+len(change.Pools)+len(change.Accounts))
	encode := func(key string, value interface{}) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("state: encode %s: %w", key, err)
		}
		entries = append(entries, storage.BatchEntry{Key: []byte(key), Value: raw})
		return nil
	}
	if change.Platform != nil {
		if err := encode(platformKey, change.Platform); err != nil {
			return err
		}
	}
	for _, pool := range change.Pools {
		if pool == nil {
			return fmt.Errorf("state: nil pool in change set")
		}
		if err := encode(poolKey(pool.ID), pool); err != nil {
			return err
		}
	}
	for _, acct := range change.Accounts {
		if acct.Account == nil {
			return fmt.Errorf("state: nil account in change set")
		}
		if err := encode(acctKey(acct.Address), acct.Account); err != nil {
			return err
		}
	}
	return s.db.WriteBatch(entries)
}

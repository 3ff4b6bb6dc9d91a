package state

import (
	"encoding/hex"
	"errors"
	"fmt"

	"nftstake/native/nftstake"
	"nftstake/storage"
)

const nftKeyPrefix = "nft/"

// NFTCustody is a ledger-backed implementation of the engine's asset custody
// collaborator. Ownership of each (collection, id) pair is tracked in the
// key-value store; Take moves an asset into escrow by clearing its owner
// entry, Deposit hands it back.
type NFTCustody struct {
	db storage.Database
}

// NewNFTCustody wraps the given database.
func NewNFTCustody(db storage.Database) *NFTCustody {
	return &NFTCustody{db: db}
}

func nftKey(asset nftstake.AssetHandle) []byte {
	return []byte(nftKeyPrefix + asset.Collection + "/" + asset.ID)
}

// Mint registers an asset as owned by the given address. Intended for genesis
// provisioning and tests.
func (c *NFTCustody) Mint(owner [20]byte, asset nftstake.AssetHandle) error {
	return c.db.Put(nftKey(asset), owner[:])
}

// OwnerOf returns the current holder of the asset.
func (c *NFTCustody) OwnerOf(asset nftstake.AssetHandle) ([20]byte, error) {
	var owner [20]byte
	raw, err := c.db.Get(nftKey(asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return owner, nftstake.ErrNotOwned
	}
	if err != nil {
		return owner, err
	}
	if len(raw) != len(owner) {
		return owner, fmt.Errorf("custody: corrupt owner record for %s", asset.ID)
	}
	copy(owner[:], raw)
	return owner, nil
}

// Take escrows the asset, failing when the caller does not hold it.
func (c *NFTCustody) Take(owner [20]byte, asset nftstake.AssetHandle) error {
	current, err := c.OwnerOf(asset)
	if err != nil {
		return err
	}
	if current != owner {
		return fmt.Errorf("%w: held by %s", nftstake.ErrNotOwned, hex.EncodeToString(current[:]))
	}
	return c.db.Delete(nftKey(asset))
}

// Deposit returns a previously escrowed asset to the owner.
func (c *NFTCustody) Deposit(owner [20]byte, asset nftstake.AssetHandle) error {
	if _, err := c.OwnerOf(asset); err == nil {
		return fmt.Errorf("custody: asset %s not in escrow", asset.ID)
	} else if !errors.Is(err, nftstake.ErrNotOwned) {
		return err
	}
	return c.db.Put(nftKey(asset), owner[:])
}

package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable prefix carried by encoded addresses.
type AddressPrefix string

// StakePrefix is the prefix used for all staking platform accounts.
const StakePrefix AddressPrefix = "stk"

// Address represents a 20-byte account address with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress wraps the given 20-byte payload. It returns an error when the
// payload length is wrong.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("address must be 20 bytes long, got %d", len(b))
	}
	buf := append([]byte(nil), b...)
	return Address{prefix: prefix, bytes: buf}, nil
}

// MustNewAddress is like NewAddress but panics on malformed input. Intended for
// fixed-width byte arrays that are correct by construction.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// String renders the bech32 encoding of the address.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns the raw 20-byte payload.
func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// DecodeAddress parses a bech32 address string back into its byte form.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 payload: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address must be 20 bytes long, got %d", len(conv))
	}
	return Address{prefix: AddressPrefix(prefix), bytes: conv}, nil
}

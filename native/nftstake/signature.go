package nftstake

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// valueWidth is the fixed byte width of each signed amount. Amounts must
	// fit in 128 bits.
	valueWidth = 16
	nonceWidth = 8

	maxValueBits = valueWidth * 8
)

// CanonicalDigest renders the deterministic digest signed by the off-chain
// authority: each amount as a 16-byte big-endian unsigned integer, followed by
// the pool nonce as an 8-byte big-endian integer, hashed with keccak256. An
// empty value set still covers the nonce, so the signed message is never
// empty.
func CanonicalDigest(values []*big.Int, nonce uint64) ([]byte, error) {
	message := make([]byte, 0, len(values)*valueWidth+nonceWidth)
	for i, value := range values {
		if value == nil {
			value = big.NewInt(0)
		}
		if value.Sign() < 0 {
			return nil, fmt.Errorf("nftstake: signed value %d is negative", i)
		}
		if value.BitLen() > maxValueBits {
			return nil, fmt.Errorf("nftstake: signed value %d exceeds %d bits", i, maxValueBits)
		}
		message = append(message, value.FillBytes(make([]byte, valueWidth))...)
	}
	var nonceBuf [nonceWidth]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	message = append(message, nonceBuf[:]...)
	return ethcrypto.Keccak256(message), nil
}

// VerifyAuthorization reports whether the (values, nonce) pair was signed by
// the holder of the given secp256k1 public key. The signature is the 64-byte
// r||s form; the key may be 33-byte compressed or 65-byte uncompressed.
// Verification fails closed: malformed keys, signatures or values return
// false rather than an error.
func VerifyAuthorization(values []*big.Int, nonce uint64, publicKey, signature []byte) bool {
	if len(publicKey) == 0 || len(signature) < 64 {
		return false
	}
	digest, err := CanonicalDigest(values, nonce)
	if err != nil {
		return false
	}
	return ethcrypto.VerifySignature(publicKey, digest, signature[:64])
}

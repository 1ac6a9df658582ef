package utils

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrParityNotFound   = errors.New("no recovery id matches public key")
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// ParsePublicKey accepts compressed (33 bytes), uncompressed (65 bytes)
// and raw (64 bytes) secp256k1 public keys.
func ParsePublicKey(pub []byte) (*ecdsa.PublicKey, error) {
	var (
		key *ecdsa.PublicKey
		err error
	)
	switch len(pub) {
	case 33:
		key, err = crypto.DecompressPubkey(pub)
	case 64:
		key, err = crypto.UnmarshalPubkey(append([]byte{4}, pub...))
	case 65:
		key, err = crypto.UnmarshalPubkey(pub)
	default:
		return nil, fmt.Errorf("unexpected length %d: %w", len(pub), ErrInvalidPublicKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidPublicKey)
	}
	return key, nil
}

func PublicKeyToAddress(pub []byte) (common.Address, error) {
	key, err := ParsePublicKey(pub)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*key), nil
}

// NormalizeS maps s into the lower half of the curve order.
func NormalizeS(s []byte) []byte {
	v := new(big.Int).SetBytes(s)
	if v.Cmp(secp256k1HalfN) <= 0 {
		return s
	}
	return new(big.Int).Sub(secp256k1N, v).Bytes()
}

// RecoverParity finds the recovery id (0 or 1) for which the (r, s) signature
// of hash recovers to pub.
func RecoverParity(hash, r, s, pub []byte) (byte, error) {
	if len(r) > 32 || len(s) > 32 {
		return 0, fmt.Errorf("signature component too long: %w", ErrParityNotFound)
	}
	want, err := ParsePublicKey(pub)
	if err != nil {
		return 0, err
	}
	wantBytes := crypto.FromECDSAPub(want)

	sig := make([]byte, crypto.SignatureLength)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	for v := byte(0); v < 2; v++ {
		sig[64] = v
		got, err := crypto.Ecrecover(hash, sig)
		if err != nil {
			continue
		}
		if bytes.Equal(got, wantBytes) {
			return v, nil
		}
	}
	return 0, ErrParityNotFound
}

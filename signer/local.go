package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner keeps the key in process memory. Derivation paths are ignored.
type LocalSigner struct {
	key *ecdsa.PrivateKey
}

func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("can't parse private key: %w", err)
	}
	return &LocalSigner{key: key}, nil
}

func NewLocalSignerFromKey(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

func (s *LocalSigner) PublicKey(context.Context, [][]byte) ([]byte, error) {
	return crypto.FromECDSAPub(&s.key.PublicKey), nil
}

func (s *LocalSigner) Sign(_ context.Context, hash []byte, _ [][]byte) ([]byte, []byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, nil, fmt.Errorf("can't sign hash: %w", err)
	}
	return sig[:32], sig[32:64], nil
}

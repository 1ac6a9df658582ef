package signer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omni/job-relay/config"
	"github.com/omni/job-relay/utils"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signer holds the relay key. It returns bare (r, s) pairs, the recovery id
// is left to the caller.
type Signer interface {
	PublicKey(ctx context.Context, derivationPath [][]byte) ([]byte, error)
	Sign(ctx context.Context, hash []byte, derivationPath [][]byte) (r, s []byte, err error)
}

func New(cfg *config.SignerConfig) (Signer, error) {
	if cfg.URL != "" {
		return NewRemoteSigner(cfg.URL, cfg.KeyID, cfg.Timeout)
	}
	return NewLocalSigner(cfg.PrivateKey)
}

// SignTx signs tx with the signer and attaches the signature together with
// the recovery id matching publicKey.
func SignTx(
	ctx context.Context,
	signer Signer,
	tx *types.Transaction,
	chainID *big.Int,
	publicKey []byte,
	derivationPath [][]byte,
) (*types.Transaction, error) {
	txSigner := types.LatestSignerForChainID(chainID)
	hash := txSigner.Hash(tx)
	r, s, err := signer.Sign(ctx, hash[:], derivationPath)
	if err != nil {
		return nil, fmt.Errorf("can't sign transaction hash: %w", err)
	}
	if len(r) > 32 || len(s) > 32 {
		return nil, fmt.Errorf("signature component is longer than 32 bytes: %w", ErrInvalidSignature)
	}
	s = utils.NormalizeS(s)
	v, err := utils.RecoverParity(hash[:], r, s, publicKey)
	if err != nil {
		return nil, fmt.Errorf("can't determine recovery id: %w", err)
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	sig[64] = v
	signed, err := tx.WithSignature(txSigner, sig)
	if err != nil {
		return nil, fmt.Errorf("can't attach signature: %w: %w", err, ErrInvalidSignature)
	}
	return signed, nil
}

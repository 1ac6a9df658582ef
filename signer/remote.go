package signer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RemoteSigner talks to a signing service over JSON-RPC.
type RemoteSigner struct {
	client  *rpc.Client
	keyID   string
	timeout time.Duration
}

type PublicKeyRequest struct {
	KeyID          string          `json:"key_id"`
	DerivationPath []hexutil.Bytes `json:"derivation_path"`
}

type PublicKeyResponse struct {
	PublicKey hexutil.Bytes `json:"public_key"`
}

type SignRequest struct {
	KeyID          string          `json:"key_id"`
	DerivationPath []hexutil.Bytes `json:"derivation_path"`
	Hash           hexutil.Bytes   `json:"hash"`
}

type SignResponse struct {
	R hexutil.Bytes `json:"r"`
	S hexutil.Bytes `json:"s"`
}

func NewRemoteSigner(url, keyID string, timeout time.Duration) (*RemoteSigner, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial signer url: %w", err)
	}
	return &RemoteSigner{
		client:  client,
		keyID:   keyID,
		timeout: timeout,
	}, nil
}

func (s *RemoteSigner) Close() {
	s.client.Close()
}

func (s *RemoteSigner) PublicKey(ctx context.Context, derivationPath [][]byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var res PublicKeyResponse
	req := PublicKeyRequest{KeyID: s.keyID, DerivationPath: toHexPath(derivationPath)}
	if err := s.client.CallContext(ctx, &res, "signer_publicKey", req); err != nil {
		return nil, fmt.Errorf("can't get public key: %w", err)
	}
	return res.PublicKey, nil
}

func (s *RemoteSigner) Sign(ctx context.Context, hash []byte, derivationPath [][]byte) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var res SignResponse
	req := SignRequest{KeyID: s.keyID, DerivationPath: toHexPath(derivationPath), Hash: hash}
	if err := s.client.CallContext(ctx, &res, "signer_signHash", req); err != nil {
		return nil, nil, fmt.Errorf("can't sign hash: %w", err)
	}
	return res.R, res.S, nil
}

func toHexPath(path [][]byte) []hexutil.Bytes {
	res := make([]hexutil.Bytes, len(path))
	for i, p := range path {
		res[i] = p
	}
	return res
}

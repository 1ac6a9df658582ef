package relay

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/job-relay/ethclient"
)

// ChainRPC is the multi-provider view of the chain. Implementations return
// ethclient.ErrInconsistentResponse when providers disagree and
// ethclient.ErrResponseTooLarge when a provider refuses a response by size.
type ChainRPC interface {
	BlockNumberByTag(ctx context.Context, tag string) (uint64, error)
	GetLogs(ctx context.Context, from, to uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
	TransactionCount(ctx context.Context, addr common.Address, tag string) (uint64, error)
	FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*ethereum.FeeHistory, error)
	SendRawTransaction(ctx context.Context, raw []byte) (ethclient.SendStatus, error)
}

var _ ChainRPC = (*ethclient.MultiClient)(nil)

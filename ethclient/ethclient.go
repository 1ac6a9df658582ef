package ethclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

var (
	ErrIncompatibleChainID = errors.New("rpc url returned incompatible chainID")
	ErrInvalidLogsQuery    = errors.New("invalid logs filter query")
	ErrBlockNotFound       = errors.New("block not found")
)

type Client interface {
	URL() string
	BlockNumberByTag(ctx context.Context, tag string) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionCount(ctx context.Context, addr common.Address, tag string) (uint64, error)
	FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*ethereum.FeeHistory, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

type rpcClient struct {
	url       string
	timeout   time.Duration
	limiter   *rate.Limiter
	rawClient *rpc.Client
	client    *ethclient.Client
}

func NewClient(url string, timeout time.Duration, rps float64, chainID string) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	client := &rpcClient{
		url:       url,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, 1),
		rawClient: rawClient,
		client:    ethclient.NewClient(rawClient),
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), timeout)
	defer cancel2()
	rpcChainID, err := client.client.ChainID(ctx2)
	if err != nil {
		rawClient.Close()
		return nil, fmt.Errorf("can't get chainID: %w", err)
	}
	if rpcChainID.String() != chainID {
		rawClient.Close()
		return nil, fmt.Errorf("received chainID %s != expected %s: %w", rpcChainID, chainID, ErrIncompatibleChainID)
	}
	return client, nil
}

func (c *rpcClient) URL() string {
	return c.url
}

func (c *rpcClient) call(ctx context.Context, method string, f func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	defer ObserveDuration(c.url, method)()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := f(ctx)
	ObserveError(c.url, method, err)
	return err
}

type blockHead struct {
	Number *hexutil.Big `json:"number"`
}

func (c *rpcClient) BlockNumberByTag(ctx context.Context, tag string) (uint64, error) {
	var head *blockHead
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		return c.rawClient.CallContext(ctx, &head, "eth_getBlockByNumber", tag, false)
	})
	if err != nil {
		return 0, err
	}
	if head == nil || head.Number == nil {
		return 0, fmt.Errorf("%s block: %w", tag, ErrBlockNotFound)
	}
	return head.Number.ToInt().Uint64(), nil
}

func (c *rpcClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	arg, err := toFilterArg(q)
	if err != nil {
		return nil, fmt.Errorf("can't encode filter argument: %w", err)
	}
	var logs []types.Log
	err = c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		return c.rawClient.CallContext(ctx, &logs, "eth_getLogs", arg)
	})
	return logs, err
}

func (c *rpcClient) TransactionCount(ctx context.Context, addr common.Address, tag string) (uint64, error) {
	var count hexutil.Uint64
	err := c.call(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		return c.rawClient.CallContext(ctx, &count, "eth_getTransactionCount", addr, tag)
	})
	return uint64(count), err
}

func (c *rpcClient) FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*ethereum.FeeHistory, error) {
	var history *ethereum.FeeHistory
	err := c.call(ctx, "eth_feeHistory", func(ctx context.Context) error {
		var err error
		history, err = c.client.FeeHistory(ctx, blockCount, nil, percentiles)
		return err
	})
	return history, err
}

func (c *rpcClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.call(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.rawClient.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw))
	})
	return hash, err
}

func toFilterArg(q ethereum.FilterQuery) (interface{}, error) {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		return nil, ErrInvalidLogsQuery
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = hexutil.EncodeBig(q.FromBlock)
	}
	if q.ToBlock == nil || q.ToBlock.Sign() < 0 {
		return nil, fmt.Errorf("only non-negative toBlock is supported: %w", ErrInvalidLogsQuery)
	}
	if q.FromBlock != nil && q.FromBlock.Cmp(q.ToBlock) > 0 {
		return nil, fmt.Errorf("fromBlock is after toBlock: %w", ErrInvalidLogsQuery)
	}
	arg["toBlock"] = hexutil.EncodeBig(q.ToBlock)
	return arg, nil
}

func blockRangeQuery(from, to uint64, addresses []common.Address, topics [][]common.Hash) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addresses,
		Topics:    topics,
	}
}

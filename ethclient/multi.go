package ethclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/omni/job-relay/config"
	"github.com/omni/job-relay/logging"
	"github.com/omni/job-relay/utils"
)

const (
	readAttempts   = 3
	readRetryDelay = time.Second
)

var ErrNoEndpoints = errors.New("no rpc endpoints configured")

// MultiClient issues every call against all configured endpoints and
// only returns a value all of them agree on.
type MultiClient struct {
	logger     logging.Logger
	clients    []Client
	retryDelay time.Duration
}

func NewMultiClient(logger logging.Logger, clients ...Client) (*MultiClient, error) {
	if len(clients) == 0 {
		return nil, ErrNoEndpoints
	}
	return &MultiClient{
		logger:     logger,
		clients:    clients,
		retryDelay: readRetryDelay,
	}, nil
}

func Dial(logger logging.Logger, cfg *config.ChainConfig) (*MultiClient, error) {
	chainID := fmt.Sprint(cfg.ChainID)
	clients := make([]Client, len(cfg.RPC.Hosts))
	for i, host := range cfg.RPC.Hosts {
		client, err := NewClient(host, cfg.RPC.Timeout, cfg.RPC.RPS, chainID)
		if err != nil {
			return nil, fmt.Errorf("can't dial rpc endpoint #%d: %w", i, err)
		}
		clients[i] = client
	}
	return NewMultiClient(logger, clients...)
}

// SetRetryDelay changes the pause between attempts of retried reads.
func (m *MultiClient) SetRetryDelay(d time.Duration) {
	m.retryDelay = d
}

type reply[T any] struct {
	value       T
	err         error
	fingerprint string
}

// Call runs f against every endpoint in parallel and checks the replies for
// agreement. Replies are compared by their JSON encoding.
func Call[T any](ctx context.Context, m *MultiClient, query string, f func(ctx context.Context, c Client) (T, error)) (T, error) {
	return call(ctx, m, query, f, jsonFingerprint[T])
}

func jsonFingerprint[T any](value T) (string, error) {
	blob, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("can't encode reply: %w", err)
	}
	return string(blob), nil
}

func call[T any](
	ctx context.Context,
	m *MultiClient,
	query string,
	f func(ctx context.Context, c Client) (T, error),
	fingerprint func(T) (string, error),
) (result T, err error) {
	defer func() {
		ObserveConsensus(query, err)
	}()

	replies := make([]reply[T], len(m.clients))
	var g errgroup.Group
	for i, client := range m.clients {
		i, client := i, client
		g.Go(func() error {
			value, err := f(ctx, client)
			if err != nil {
				replies[i] = reply[T]{err: err, fingerprint: "error"}
				return nil
			}
			fp, err := fingerprint(value)
			if err != nil {
				replies[i] = reply[T]{err: err, fingerprint: "error"}
				return nil
			}
			replies[i] = reply[T]{value: value, fingerprint: fp}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range replies {
		if r.err != nil && isResponseTooLarge(r.err) {
			return result, fmt.Errorf("%s: %w", query, ErrResponseTooLarge)
		}
	}

	consistent := true
	for _, r := range replies[1:] {
		if r.fingerprint != replies[0].fingerprint {
			consistent = false
			break
		}
	}
	if !consistent {
		summary := make(map[string]string, len(replies))
		for i, r := range replies {
			if r.err != nil {
				summary[m.clients[i].URL()] = r.err.Error()
			} else {
				summary[m.clients[i].URL()] = shorten(r.fingerprint)
			}
		}
		return result, &InconsistentError{Query: query, Replies: summary}
	}
	if replies[0].err != nil {
		return result, fmt.Errorf("%s: %w", query, replies[0].err)
	}
	return replies[0].value, nil
}

func shorten(s string) string {
	const maxLen = 128
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func (m *MultiClient) retryRead(ctx context.Context, query string, f func(ctx context.Context) error) error {
	attempt := 0
	return utils.Retry(ctx, readAttempts, m.retryDelay, func(ctx context.Context) error {
		attempt++
		err := f(ctx)
		if err != nil && attempt < readAttempts {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"query":   query,
				"attempt": attempt,
			}).Warn("rpc read failed, retrying")
		}
		return err
	})
}

// BlockNumberByTag returns the number of the block at latest, safe or finalized tag.
func (m *MultiClient) BlockNumberByTag(ctx context.Context, tag string) (uint64, error) {
	var n uint64
	err := m.retryRead(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		n, err = Call(ctx, m, "eth_getBlockByNumber", func(ctx context.Context, c Client) (uint64, error) {
			return c.BlockNumberByTag(ctx, tag)
		})
		return err
	})
	return n, err
}

func (m *MultiClient) TransactionCount(ctx context.Context, addr common.Address, tag string) (uint64, error) {
	var n uint64
	err := m.retryRead(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		var err error
		n, err = Call(ctx, m, "eth_getTransactionCount", func(ctx context.Context, c Client) (uint64, error) {
			return c.TransactionCount(ctx, addr, tag)
		})
		return err
	})
	return n, err
}

func (m *MultiClient) FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*ethereum.FeeHistory, error) {
	var history *ethereum.FeeHistory
	err := m.retryRead(ctx, "eth_feeHistory", func(ctx context.Context) error {
		var err error
		history, err = Call(ctx, m, "eth_feeHistory", func(ctx context.Context, c Client) (*ethereum.FeeHistory, error) {
			return c.FeeHistory(ctx, blockCount, percentiles)
		})
		return err
	})
	return history, err
}

// GetLogs is not retried, a failed range is scraped again on the next cycle.
func (m *MultiClient) GetLogs(ctx context.Context, from, to uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	q := blockRangeQuery(from, to, addresses, topics)
	return Call(ctx, m, "eth_getLogs", func(ctx context.Context, c Client) ([]types.Log, error) {
		logs, err := c.FilterLogs(ctx, q)
		if err == nil && logs == nil {
			logs = []types.Log{}
		}
		return logs, err
	})
}

// SendRawTransaction broadcasts a signed transaction to all endpoints. Known
// rejections are returned as a status, not as an error. An endpoint that
// already knows the transaction agrees with one that has just accepted it.
func (m *MultiClient) SendRawTransaction(ctx context.Context, raw []byte) (SendStatus, error) {
	status, err := call(ctx, m, "eth_sendRawTransaction", func(ctx context.Context, c Client) (SendStatus, error) {
		_, err := c.SendRawTransaction(ctx, raw)
		status, ok := sendStatus(err)
		if !ok {
			return 0, err
		}
		return status, nil
	}, func(status SendStatus) (string, error) {
		if status.Accepted() {
			return "accepted", nil
		}
		return status.String(), nil
	})
	if err != nil {
		return 0, err
	}
	return status, nil
}

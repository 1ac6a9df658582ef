package ethclient_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/ethclient"
)

type fakeClient struct {
	url      string
	block    uint64
	blockErr error
	logs     []types.Log
	logsErr  error
	sendErr  error
	count    uint64
	calls    atomic.Int32
}

func (c *fakeClient) URL() string {
	return c.url
}

func (c *fakeClient) BlockNumberByTag(context.Context, string) (uint64, error) {
	c.calls.Add(1)
	return c.block, c.blockErr
}

func (c *fakeClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	c.calls.Add(1)
	return c.logs, c.logsErr
}

func (c *fakeClient) TransactionCount(context.Context, common.Address, string) (uint64, error) {
	c.calls.Add(1)
	return c.count, nil
}

func (c *fakeClient) FeeHistory(context.Context, uint64, []float64) (*ethereum.FeeHistory, error) {
	c.calls.Add(1)
	return &ethereum.FeeHistory{BaseFee: []*big.Int{big.NewInt(100)}}, nil
}

func (c *fakeClient) SendRawTransaction(context.Context, []byte) (common.Hash, error) {
	c.calls.Add(1)
	return common.Hash{}, c.sendErr
}

type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string {
	return e.msg
}

func (e *rpcError) ErrorCode() int {
	return e.code
}

func newMultiClient(t *testing.T, clients ...ethclient.Client) *ethclient.MultiClient {
	t.Helper()
	m, err := ethclient.NewMultiClient(logrus.New(), clients...)
	require.NoError(t, err)
	m.SetRetryDelay(0)
	return m
}

func testLog(block uint64) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0x01"),
		Topics:      []common.Hash{common.HexToHash("0x02")},
		BlockNumber: block,
		TxHash:      common.HexToHash("0x03"),
	}
}

func TestNewMultiClient_NoEndpoints(t *testing.T) {
	t.Parallel()

	_, err := ethclient.NewMultiClient(logrus.New())
	require.ErrorIs(t, err, ethclient.ErrNoEndpoints)
}

func TestMultiClient_GetLogs(t *testing.T) {
	t.Parallel()

	errProvider := errors.New("internal error")
	errRateLimited := &rpcError{code: -32005, msg: "project ID request rate exceeded"}
	errRequestsLimit := errors.New("request exceeds the limit of 100 requests per second")
	for _, test := range []struct {
		Name    string
		Clients []*fakeClient
		Logs    []types.Log
		Err     error
	}{
		{
			Name: "consistent",
			Clients: []*fakeClient{
				{url: "a", logs: []types.Log{testLog(10)}},
				{url: "b", logs: []types.Log{testLog(10)}},
			},
			Logs: []types.Log{testLog(10)},
		},
		{
			Name: "inconsistent",
			Clients: []*fakeClient{
				{url: "a", logs: []types.Log{testLog(10)}},
				{url: "b", logs: []types.Log{testLog(11)}},
			},
			Err: ethclient.ErrInconsistentResponse,
		},
		{
			Name: "response too large on one endpoint",
			Clients: []*fakeClient{
				{url: "a", logs: []types.Log{testLog(10)}},
				{url: "b", logsErr: errors.New("query returned more than 10000 results")},
			},
			Err: ethclient.ErrResponseTooLarge,
		},
		{
			Name: "limit exceeded code with size message",
			Clients: []*fakeClient{
				{url: "a", logsErr: &rpcError{code: -32005, msg: "query returned more than 10000 results"}},
				{url: "b", logsErr: &rpcError{code: -32005, msg: "query returned more than 10000 results"}},
			},
			Err: ethclient.ErrResponseTooLarge,
		},
		{
			Name: "rate limited with limit exceeded code",
			Clients: []*fakeClient{
				{url: "a", logsErr: errRateLimited},
				{url: "b", logsErr: errRateLimited},
			},
			Err: errRateLimited,
		},
		{
			Name: "requests per second limit",
			Clients: []*fakeClient{
				{url: "a", logsErr: errRequestsLimit},
				{url: "b", logsErr: errRequestsLimit},
			},
			Err: errRequestsLimit,
		},
		{
			Name: "null and empty replies agree",
			Clients: []*fakeClient{
				{url: "a", logs: nil},
				{url: "b", logs: []types.Log{}},
			},
			Logs: []types.Log{},
		},
		{
			Name: "all endpoints fail",
			Clients: []*fakeClient{
				{url: "a", logsErr: errProvider},
				{url: "b", logsErr: errProvider},
			},
			Err: errProvider,
		},
		{
			Name: "one endpoint fails",
			Clients: []*fakeClient{
				{url: "a", logs: []types.Log{testLog(10)}},
				{url: "b", logsErr: errProvider},
			},
			Err: ethclient.ErrInconsistentResponse,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			clients := make([]ethclient.Client, len(test.Clients))
			for i, c := range test.Clients {
				clients[i] = c
			}
			m := newMultiClient(t, clients...)
			logs, err := m.GetLogs(context.Background(), 1, 20, nil, nil)
			if test.Err != nil {
				require.ErrorIs(t, err, test.Err)
				if !errors.Is(test.Err, ethclient.ErrResponseTooLarge) {
					require.NotErrorIs(t, err, ethclient.ErrResponseTooLarge)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.Logs, logs)
		})
	}
}

func TestMultiClient_InconsistentErrorDetails(t *testing.T) {
	t.Parallel()

	m := newMultiClient(t,
		&fakeClient{url: "a", logs: []types.Log{testLog(10)}},
		&fakeClient{url: "b", logs: []types.Log{testLog(11)}},
	)
	_, err := m.GetLogs(context.Background(), 1, 20, nil, nil)

	var inconsistent *ethclient.InconsistentError
	require.ErrorAs(t, err, &inconsistent)
	require.Equal(t, "eth_getLogs", inconsistent.Query)
	require.Len(t, inconsistent.Replies, 2)
}

func TestMultiClient_BlockNumberByTag(t *testing.T) {
	t.Parallel()

	a := &fakeClient{url: "a", block: 100}
	b := &fakeClient{url: "b", block: 100}
	m := newMultiClient(t, a, b)
	n, err := m.BlockNumberByTag(context.Background(), "finalized")
	require.NoError(t, err)
	require.Equal(t, uint64(100), n)
	require.Equal(t, int32(1), a.calls.Load())

	b.block = 101
	_, err = m.BlockNumberByTag(context.Background(), "finalized")
	require.ErrorIs(t, err, ethclient.ErrInconsistentResponse)
	require.Equal(t, int32(4), a.calls.Load())
}

func TestMultiClient_SendRawTransaction(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name   string
		Errs   []error
		Status ethclient.SendStatus
		Err    error
	}{
		{"ok", []error{nil, nil}, ethclient.SendStatusOK, nil},
		{"already known by one", []error{nil, errors.New("already known")}, ethclient.SendStatusOK, nil},
		{"already known by all", []error{errors.New("already known"), errors.New("already known")}, ethclient.SendStatusAlreadyKnown, nil},
		{"nonce too low", []error{errors.New("nonce too low"), errors.New("nonce too low: next nonce 5, tx nonce 4")}, ethclient.SendStatusNonceTooLow, nil},
		{"nonce too high", []error{errors.New("nonce too high"), errors.New("nonce too high")}, ethclient.SendStatusNonceTooHigh, nil},
		{"insufficient funds", []error{errors.New("insufficient funds for gas * price + value"), errors.New("insufficient funds")}, ethclient.SendStatusInsufficientFunds, nil},
		{"disagreement", []error{nil, errors.New("nonce too low")}, 0, ethclient.ErrInconsistentResponse},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			clients := make([]ethclient.Client, len(test.Errs))
			for i, err := range test.Errs {
				clients[i] = &fakeClient{url: string(rune('a' + i)), sendErr: err}
			}
			m := newMultiClient(t, clients...)
			status, err := m.SendRawTransaction(context.Background(), []byte{1})
			if test.Err != nil {
				require.ErrorIs(t, err, test.Err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.Status, status)
		})
	}
}

func TestMultiClient_FeeHistoryAndCount(t *testing.T) {
	t.Parallel()

	m := newMultiClient(t, &fakeClient{url: "a", count: 5}, &fakeClient{url: "b", count: 5})
	count, err := m.TransactionCount(context.Background(), common.HexToAddress("0x01"), "latest")
	require.NoError(t, err)
	require.Equal(t, uint64(5), count)

	history, err := m.FeeHistory(context.Background(), 9, []float64{95})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), history.BaseFee[0])
}

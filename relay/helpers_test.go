package relay_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/omni/job-relay/contract"
	"github.com/omni/job-relay/ethclient"
)

var (
	relayAddress = common.HexToAddress("0x75Df5AF045d91108662D8080fD1FEFAd6aA0bb59")
	newJobTopic  = contract.NewRelayContract(relayAddress).NewJobTopic()
)

type fakeRPC struct {
	mu sync.Mutex

	head     uint64
	headErr  error
	logs     []types.Log
	tooLarge func(from, to uint64) bool
	logsErr  func(from, to uint64) error
	ranges   [][2]uint64

	nonce   uint64
	history *ethereum.FeeHistory

	sendStatus ethclient.SendStatus
	sendErr    error
	sent       []*types.Transaction
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		history: &ethereum.FeeHistory{
			BaseFee: []*big.Int{big.NewInt(90), big.NewInt(100)},
			Reward: [][]*big.Int{
				{big.NewInt(5)}, {big.NewInt(1)}, {big.NewInt(9)},
				{big.NewInt(2)}, {big.NewInt(8)}, {big.NewInt(3)},
				{big.NewInt(7)}, {big.NewInt(4)}, {big.NewInt(6)},
			},
		},
	}
}

func (f *fakeRPC) BlockNumberByTag(context.Context, string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeRPC) GetLogs(_ context.Context, from, to uint64, _ []common.Address, _ [][]common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, [2]uint64{from, to})
	if f.tooLarge != nil && f.tooLarge(from, to) {
		return nil, fmt.Errorf("eth_getLogs: %w", ethclient.ErrResponseTooLarge)
	}
	if f.logsErr != nil {
		if err := f.logsErr(from, to); err != nil {
			return nil, err
		}
	}
	var res []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			res = append(res, log)
		}
	}
	return res, nil
}

func (f *fakeRPC) TransactionCount(context.Context, common.Address, string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeRPC) FeeHistory(context.Context, uint64, []float64) (*ethereum.FeeHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeRPC) SendRawTransaction(_ context.Context, raw []byte) (ethclient.SendStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return 0, err
	}
	f.sent = append(f.sent, tx)
	return f.sendStatus, f.sendErr
}

func (f *fakeRPC) Ranges() [][2]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]uint64(nil), f.ranges...)
}

func (f *fakeRPC) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (s *fakeScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

func (s *fakeScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// RunAll runs scheduled callbacks, including the ones they schedule.
func (s *fakeScheduler) RunAll() {
	for {
		s.mu.Lock()
		if len(s.fns) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.fns[0]
		s.fns = s.fns[1:]
		s.mu.Unlock()
		fn()
	}
}

func newJobLog(block uint64, txHash string, index uint, jobID, executionTime int64) types.Log {
	return types.Log{
		Address:     relayAddress,
		Topics:      []common.Hash{newJobTopic, common.BigToHash(big.NewInt(jobID))},
		Data:        common.BigToHash(big.NewInt(executionTime)).Bytes(),
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
		Index:       index,
	}
}

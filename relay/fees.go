package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
)

const (
	FeeHistoryWindow = 9
	RewardPercentile = 95
)

// MinPriorityFee is the lower bound of maxFeePerGas, in wei.
var MinPriorityFee = big.NewInt(1_500_000_000)

var ErrNoBaseFee = errors.New("fee history has no base fee")

type Fees struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

type FeeEstimator struct {
	rpc ChainRPC
}

func NewFeeEstimator(rpc ChainRPC) *FeeEstimator {
	return &FeeEstimator{rpc: rpc}
}

func (e *FeeEstimator) Estimate(ctx context.Context) (*Fees, error) {
	history, err := e.rpc.FeeHistory(ctx, FeeHistoryWindow, []float64{RewardPercentile})
	if err != nil {
		return nil, fmt.Errorf("can't get fee history: %w", err)
	}
	return EstimateFromHistory(history, FeeHistoryWindow)
}

// EstimateFromHistory takes the median of the window's rewards as the
// priority fee, and the last base fee plus that median, but no less than
// MinPriorityFee, as the max fee.
func EstimateFromHistory(history *ethereum.FeeHistory, windowSize int) (*Fees, error) {
	if history == nil || len(history.BaseFee) == 0 {
		return nil, ErrNoBaseFee
	}
	baseFee := history.BaseFee[len(history.BaseFee)-1]

	rewards := make([]*big.Int, 0, windowSize)
	for _, blockRewards := range history.Reward {
		for _, reward := range blockRewards {
			if reward != nil {
				rewards = append(rewards, reward)
			}
		}
	}
	sort.Slice(rewards, func(i, j int) bool {
		return rewards[i].Cmp(rewards[j]) < 0
	})

	medianReward := new(big.Int)
	if idx := (windowSize - 1) / 2; idx < len(rewards) {
		medianReward.Set(rewards[idx])
	}

	maxFee := new(big.Int).Add(medianReward, baseFee)
	if maxFee.Cmp(MinPriorityFee) < 0 {
		maxFee.Set(MinPriorityFee)
	}
	return &Fees{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: medianReward,
	}, nil
}

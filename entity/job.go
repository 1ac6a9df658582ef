package entity

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// JobEvent is a decoded NewJob event.
type JobEvent struct {
	JobID         *big.Int
	ExecutionTime *big.Int
}

// IsDue reports whether the job may run at now.
func (e *JobEvent) IsDue(now time.Time) bool {
	return e.ExecutionTime.Cmp(big.NewInt(now.Unix())) <= 0
}

// Delay returns how long to wait from now until the execution time.
func (e *JobEvent) Delay(now time.Time) time.Duration {
	if e.IsDue(now) {
		return 0
	}
	secs := new(big.Int).Sub(e.ExecutionTime, big.NewInt(now.Unix()))
	if !secs.IsInt64() || secs.Int64() > math.MaxInt64/int64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs.Int64()) * time.Second
}

// ScheduledJob is a deferred job waiting in the durable queue.
type ScheduledJob struct {
	ChainID         string      `db:"chain_id"`
	JobID           common.Hash `db:"job_id"`
	ExecutionTime   common.Hash `db:"execution_time"`
	TransactionHash common.Hash `db:"transaction_hash"`
	LogIndex        uint64      `db:"log_index"`
	CreatedAt       *time.Time  `db:"created_at"`
}

func NewScheduledJob(chainID string, src LogSource, event *JobEvent) *ScheduledJob {
	return &ScheduledJob{
		ChainID:         chainID,
		JobID:           common.BigToHash(event.JobID),
		ExecutionTime:   common.BigToHash(event.ExecutionTime),
		TransactionHash: src.TransactionHash,
		LogIndex:        src.LogIndex,
	}
}

func (j *ScheduledJob) Event() *JobEvent {
	return &JobEvent{
		JobID:         j.JobID.Big(),
		ExecutionTime: j.ExecutionTime.Big(),
	}
}

func (j *ScheduledJob) Source() LogSource {
	return LogSource{TransactionHash: j.TransactionHash, LogIndex: j.LogIndex}
}

type ScheduledJobsRepo interface {
	Replace(ctx context.Context, chainID string, jobs ...*ScheduledJob) error
	FindByChainID(ctx context.Context, chainID string) ([]*ScheduledJob, error)
}

package relay

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omni/job-relay/contract"
	"github.com/omni/job-relay/entity"
	"github.com/omni/job-relay/logging"
	"github.com/omni/job-relay/state"
	"github.com/omni/job-relay/utils"
)

type JobRunner interface {
	ExecuteJob(ctx context.Context, jobID *big.Int) (common.Hash, error)
}

type JobSchedulerOptions struct {
	// Durable keeps future jobs in the store queue instead of timers.
	Durable bool
	Now     func() time.Time
}

// JobScheduler turns pending logs into job executions.
type JobScheduler struct {
	logger    logging.Logger
	store     *state.Store
	contract  *contract.RelayContract
	runner    JobRunner
	scheduler utils.Scheduler
	durable   bool
	now       func() time.Time
}

func NewJobScheduler(
	logger logging.Logger,
	store *state.Store,
	relayContract *contract.RelayContract,
	runner JobRunner,
	scheduler utils.Scheduler,
	opts JobSchedulerOptions,
) *JobScheduler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &JobScheduler{
		logger:    logger,
		store:     store,
		contract:  relayContract,
		runner:    runner,
		scheduler: scheduler,
		durable:   opts.Durable,
		now:       now,
	}
}

// Drain dequeues every pending log in source order. A log is marked completed
// before its job runs, so a failed job is not retried.
func (j *JobScheduler) Drain(ctx context.Context) error {
	guard, err := j.store.Acquire(state.TaskProcessLogs)
	if errors.Is(err, state.ErrAlreadyActive) {
		j.logger.Debug("logs are already being processed, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer guard.Release()
	defer observeState(j.store)

	for _, log := range j.store.PendingLogs() {
		src := log.Source()
		completed, err := j.store.CompleteLog(src)
		if err != nil {
			return err
		}
		logger := j.logger.WithFields(logrus.Fields{
			"tx_hash":      src.TransactionHash,
			"log_index":    src.LogIndex,
			"block_number": completed.BlockNumber,
		})
		event, err := j.contract.DecodeJobEvent(completed)
		if err != nil {
			logger.WithError(err).Error("can't decode job event")
			Jobs.WithLabelValues("invalid").Inc()
			continue
		}
		if err = j.dispatch(ctx, logger, src, event); err != nil {
			return err
		}
	}
	return nil
}

func (j *JobScheduler) dispatch(ctx context.Context, logger logging.Logger, src entity.LogSource, event *entity.JobEvent) error {
	logger = logger.WithFields(logrus.Fields{
		"job_id":         event.JobID.String(),
		"execution_time": event.ExecutionTime.String(),
	})
	now := j.now()
	switch {
	case event.IsDue(now):
		Jobs.WithLabelValues("immediate").Inc()
		j.run(ctx, logger, event)
	case j.durable:
		if err := j.store.ScheduleJob(entity.NewScheduledJob(j.store.ChainID(), src, event)); err != nil {
			return err
		}
		Jobs.WithLabelValues("queued").Inc()
		logger.Info("job is queued until its execution time")
	default:
		delay := event.Delay(now)
		Jobs.WithLabelValues("deferred").Inc()
		logger.WithField("delay", delay.String()).Info("job is deferred until its execution time")
		j.scheduler.Schedule(delay, func() {
			j.run(ctx, logger, event)
		})
	}
	return nil
}

// ExecuteDueJobs runs every queued job whose execution time has come. The
// tick is skipped while there are pending logs.
func (j *JobScheduler) ExecuteDueJobs(ctx context.Context) error {
	guard, err := j.store.Acquire(state.TaskExecuteJobs)
	if errors.Is(err, state.ErrAlreadyActive) {
		j.logger.Debug("queued jobs are already being executed, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer guard.Release()
	defer observeState(j.store)

	if j.store.HasPendingLogs() {
		j.logger.Debug("pending logs are not processed yet, skipping queued jobs")
		return nil
	}
	for _, job := range j.store.PopDueJobs(j.now()) {
		event := job.Event()
		src := job.Source()
		logger := j.logger.WithFields(logrus.Fields{
			"tx_hash":        src.TransactionHash,
			"log_index":      src.LogIndex,
			"job_id":         event.JobID.String(),
			"execution_time": event.ExecutionTime.String(),
		})
		j.run(ctx, logger, event)
	}
	return nil
}

func (j *JobScheduler) run(ctx context.Context, logger logging.Logger, event *entity.JobEvent) {
	txHash, err := j.runner.ExecuteJob(ctx, event.JobID)
	if err != nil {
		logger.WithError(err).Error("job execution failed")
		return
	}
	logger.WithField("execution_tx_hash", txHash).Info("job executed")
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/omni/job-relay/config"
	"github.com/omni/job-relay/contract"
	"github.com/omni/job-relay/logging"
	"github.com/omni/job-relay/signer"
	"github.com/omni/job-relay/state"
	"github.com/omni/job-relay/utils"
)

const (
	nonceTag            = "latest"
	shutdownSaveTimeout = 30 * time.Second
)

var ErrNotInitialized = errors.New("relay is not initialized")

// Checkpointer is the persistence boundary of the relay state. Load returns
// nil if nothing was saved yet.
type Checkpointer interface {
	Load(ctx context.Context) (*state.Checkpoint, error)
	Save(ctx context.Context, cp *state.Checkpoint) error
}

type Relay struct {
	logger       logging.Logger
	cfg          *config.RelayConfig
	store        *state.Store
	rpc          ChainRPC
	signer       signer.Signer
	checkpointer Checkpointer
	scheduler    utils.Scheduler

	contract  *contract.RelayContract
	submitter *Submitter
	scraper   *Scraper
	jobs      *JobScheduler
}

type Status struct {
	Address           string       `json:"address"`
	Nonce             uint64       `json:"nonce"`
	LastScrapedBlock  uint64       `json:"last_scraped_block"`
	LastObservedBlock *uint64      `json:"last_observed_block"`
	SkippedBlocks     []uint64     `json:"skipped_blocks"`
	PendingLogs       int          `json:"pending_logs"`
	CompletedLogs     int          `json:"completed_logs"`
	ScheduledJobs     int          `json:"scheduled_jobs"`
	ActiveTasks       []state.Task `json:"active_tasks"`
}

// NewRelay wires the relay components. checkpointer may be nil, in which case
// the state lives only in memory.
func NewRelay(
	logger logging.Logger,
	cfg *config.Config,
	rpc ChainRPC,
	txSigner signer.Signer,
	checkpointer Checkpointer,
	scheduler utils.Scheduler,
) *Relay {
	relayContract := contract.NewRelayContract(cfg.Relay.Addresses[0])
	topics := cfg.Relay.Topics
	if len(topics) == 0 {
		topics = [][]common.Hash{{relayContract.NewJobTopic()}}
	}
	store := state.NewStore(state.Settings{
		ChainID:        new(big.Int).SetUint64(cfg.Chain.ChainID),
		Addresses:      cfg.Relay.Addresses,
		Topics:         topics,
		BlockTag:       cfg.Relay.BlockTag,
		DerivationPath: cfg.Signer.Path(),
	}, cfg.Relay.StartBlock)

	r := &Relay{
		logger:       logger,
		cfg:          cfg.Relay,
		store:        store,
		rpc:          rpc,
		signer:       txSigner,
		checkpointer: checkpointer,
		scheduler:    scheduler,
		contract:     relayContract,
	}
	r.submitter = NewSubmitter(logger.WithField("service", "submitter"), store, rpc, txSigner, relayContract, cfg.Relay.JobGasLimit)
	r.jobs = NewJobScheduler(logger.WithField("service", "scheduler"), store, relayContract, r.submitter, scheduler, JobSchedulerOptions{
		Durable: cfg.Relay.DurableJobs,
	})
	r.scraper = NewScraper(logger.WithField("service", "scraper"), store, rpc, cfg.Relay.MaxBlockRangeSize, r.triggerDrain)
	return r
}

func (r *Relay) Store() *state.Store {
	return r.store
}

func (r *Relay) Scraper() *Scraper {
	return r.scraper
}

func (r *Relay) Jobs() *JobScheduler {
	return r.jobs
}

// Init restores the saved state, resolves the relay address and reads its
// nonce from the chain.
func (r *Relay) Init(ctx context.Context) error {
	restored := false
	if r.checkpointer != nil {
		cp, err := r.checkpointer.Load(ctx)
		if err != nil {
			return fmt.Errorf("can't load checkpoint: %w", err)
		}
		if cp != nil {
			if err = r.store.Restore(cp); err != nil {
				return fmt.Errorf("can't restore checkpoint: %w", err)
			}
			restored = true
			r.logger.WithFields(logrus.Fields{
				"last_scraped_block": cp.LastScrapedBlock,
				"logs":               len(cp.Logs),
				"scheduled_jobs":     len(cp.ScheduledJobs),
			}).Info("restored relay state")
		}
	}

	settings := r.store.Settings()
	pub, err := r.signer.PublicKey(ctx, settings.DerivationPath)
	if err != nil {
		return fmt.Errorf("can't get relay public key: %w", err)
	}
	address, err := utils.PublicKeyToAddress(pub)
	if err != nil {
		return fmt.Errorf("can't derive relay address: %w", err)
	}
	r.store.SetIdentity(pub, address)

	guard, err := r.store.Acquire(state.TaskScrapeLogs)
	if err != nil {
		return err
	}
	defer guard.Release()

	nonce, err := r.rpc.TransactionCount(ctx, address, nonceTag)
	if err != nil {
		return fmt.Errorf("can't get relay nonce: %w", err)
	}
	r.store.SetNonce(nonce)

	if r.cfg.StartFromHead && !restored {
		head, err := r.rpc.BlockNumberByTag(ctx, settings.BlockTag)
		if err != nil {
			return fmt.Errorf("can't get %s block: %w", settings.BlockTag, err)
		}
		if head > r.store.LastScrapedBlock() {
			if err = r.store.AdvanceCursor(head); err != nil {
				return err
			}
		}
	}
	observeState(r.store)

	r.logger.WithFields(logrus.Fields{
		"address":            address.Hex(),
		"nonce":              nonce,
		"last_scraped_block": r.store.LastScrapedBlock(),
	}).Info("initialized relay")
	return nil
}

// Start runs the relay until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	if r.store.Address() == (common.Address{}) {
		return ErrNotInitialized
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(r.logger))))
	if _, err := c.AddFunc(every(r.cfg.ScrapeInterval), func() { r.scrape(ctx) }); err != nil {
		return fmt.Errorf("can't schedule scraping: %w", err)
	}
	if r.cfg.DurableJobs {
		if _, err := c.AddFunc(every(r.cfg.ExecuteJobsInterval), func() { r.executeDueJobs(ctx) }); err != nil {
			return fmt.Errorf("can't schedule job execution: %w", err)
		}
	}
	if r.checkpointer != nil {
		if _, err := c.AddFunc(every(r.cfg.CheckpointInterval), func() { r.saveCheckpoint(ctx) }); err != nil {
			return fmt.Errorf("can't schedule checkpoints: %w", err)
		}
	}

	r.scheduler.Schedule(r.cfg.StartDelay, func() { r.scrape(ctx) })
	if r.store.HasPendingLogs() {
		r.triggerDrain(ctx)
	}
	c.Start()
	r.logger.Info("started relay")

	<-ctx.Done()
	<-c.Stop().Done()

	if r.checkpointer != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownSaveTimeout)
		defer cancel()
		if err := r.SaveCheckpoint(saveCtx); err != nil {
			return fmt.Errorf("can't save checkpoint on shutdown: %w", err)
		}
	}
	r.logger.Info("stopped relay")
	return nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func (r *Relay) scrape(ctx context.Context) {
	if err := r.scraper.ScrapeCycle(ctx); err != nil {
		r.logger.WithError(err).Error("scrape cycle aborted")
	}
}

func (r *Relay) triggerDrain(ctx context.Context) {
	r.scheduler.Schedule(0, func() {
		if err := r.jobs.Drain(ctx); err != nil {
			r.logger.WithError(err).Error("can't process pending logs")
		}
	})
}

func (r *Relay) executeDueJobs(ctx context.Context) {
	if err := r.jobs.ExecuteDueJobs(ctx); err != nil {
		r.logger.WithError(err).Error("can't execute queued jobs")
	}
}

func (r *Relay) saveCheckpoint(ctx context.Context) {
	if err := r.SaveCheckpoint(ctx); err != nil {
		r.logger.WithError(err).Error("can't save checkpoint")
	}
}

func (r *Relay) SaveCheckpoint(ctx context.Context) error {
	if r.checkpointer == nil {
		return nil
	}
	cp := r.store.Checkpoint()
	if err := r.checkpointer.Save(ctx, cp); err != nil {
		return err
	}
	r.store.CommitCheckpoint(cp)
	r.logger.WithFields(logrus.Fields{
		"last_scraped_block": cp.LastScrapedBlock,
		"logs":               len(cp.Logs),
	}).Debug("saved checkpoint")
	return nil
}

// Address returns the checksummed relay address.
func (r *Relay) Address() string {
	return r.store.Address().Hex()
}

func (r *Relay) TransferValue(ctx context.Context, amount *big.Int, to common.Address) (common.Hash, error) {
	return r.submitter.TransferValue(ctx, amount, to)
}

func (r *Relay) Status() *Status {
	observed, ok := r.store.LastObservedBlock()
	status := &Status{
		Address:          r.Address(),
		Nonce:            r.store.Nonce(),
		LastScrapedBlock: r.store.LastScrapedBlock(),
		SkippedBlocks:    r.store.SkippedBlocks(),
		PendingLogs:      r.store.PendingCount(),
		CompletedLogs:    r.store.CompletedCount(),
		ScheduledJobs:    len(r.store.ScheduledJobs()),
		ActiveTasks:      r.store.ActiveTasks(),
	}
	if ok {
		status.LastObservedBlock = &observed
	}
	return status
}

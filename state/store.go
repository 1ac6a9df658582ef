package state

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/job-relay/entity"
)

// Settings is the static part of the relay state.
type Settings struct {
	ChainID        *big.Int
	Addresses      []common.Address
	Topics         [][]common.Hash
	BlockTag       string
	DerivationPath [][]byte
}

// Store is the single mutable root of the relay. Every exported method is an
// atomic step.
type Store struct {
	mu sync.Mutex

	settings Settings

	lastScrapedBlock  uint64
	lastObservedBlock *uint64
	skippedBlocks     map[uint64]struct{}

	pendingLogs   map[entity.LogSource]*entity.Log
	completedLogs map[entity.LogSource]*entity.Log
	dirtyLogs     map[entity.LogSource]struct{}

	scheduledJobs map[entity.LogSource]*entity.ScheduledJob

	activeTasks map[Task]struct{}

	nonce     uint64
	publicKey []byte
	address   common.Address
}

func NewStore(settings Settings, startBlock uint64) *Store {
	return &Store{
		settings:         settings,
		lastScrapedBlock: startBlock,
		skippedBlocks:    make(map[uint64]struct{}),
		pendingLogs:      make(map[entity.LogSource]*entity.Log),
		completedLogs:    make(map[entity.LogSource]*entity.Log),
		dirtyLogs:        make(map[entity.LogSource]struct{}),
		scheduledJobs:    make(map[entity.LogSource]*entity.ScheduledJob),
		activeTasks:      make(map[Task]struct{}),
	}
}

func (s *Store) Settings() Settings {
	return s.settings
}

func (s *Store) ChainID() string {
	return s.settings.ChainID.String()
}

// TargetAddress is the contract jobs are executed on.
func (s *Store) TargetAddress() common.Address {
	return s.settings.Addresses[0]
}

func (s *Store) LastScrapedBlock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScrapedBlock
}

func (s *Store) LastObservedBlock() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastObservedBlock == nil {
		return 0, false
	}
	return *s.lastObservedBlock, true
}

func (s *Store) SetLastObservedBlock(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastObservedBlock = &n
}

// AdvanceCursor moves the scrape cursor forward without recording logs.
func (s *Store) AdvanceCursor(to uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to < s.lastScrapedBlock {
		return fmt.Errorf("cursor regression from %d to %d: %w", s.lastScrapedBlock, to, ErrInvariantViolation)
	}
	s.lastScrapedBlock = to
	return nil
}

// RecordScrapedRange inserts logs into the pending set and advances the cursor
// to the given block. Nothing is committed if any log was already observed.
func (s *Store) RecordScrapedRange(logs []*entity.Log, to uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if to < s.lastScrapedBlock {
		return 0, fmt.Errorf("cursor regression from %d to %d: %w", s.lastScrapedBlock, to, ErrInvariantViolation)
	}
	batch := make(map[entity.LogSource]struct{}, len(logs))
	for _, log := range logs {
		src := log.Source()
		if _, ok := batch[src]; ok {
			return 0, fmt.Errorf("log %s is duplicated in range: %w", src, ErrInvariantViolation)
		}
		if _, ok := s.pendingLogs[src]; ok {
			return 0, fmt.Errorf("log %s is already pending: %w", src, ErrInvariantViolation)
		}
		if _, ok := s.completedLogs[src]; ok {
			return 0, fmt.Errorf("log %s is already completed: %w", src, ErrInvariantViolation)
		}
		batch[src] = struct{}{}
	}

	for _, log := range logs {
		src := log.Source()
		pending := log.Clone()
		pending.Status = entity.LogStatusPending
		s.pendingLogs[src] = pending
		s.dirtyLogs[src] = struct{}{}
	}
	s.lastScrapedBlock = to
	return len(s.pendingLogs), nil
}

// RecordSkippedBlock marks a single block as unrecoverable and moves the
// cursor to it.
func (s *Store) RecordSkippedBlock(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.skippedBlocks[n]; ok {
		return fmt.Errorf("block %d is already skipped: %w", n, ErrInvariantViolation)
	}
	if n < s.lastScrapedBlock {
		return fmt.Errorf("cursor regression from %d to %d: %w", s.lastScrapedBlock, n, ErrInvariantViolation)
	}
	s.skippedBlocks[n] = struct{}{}
	s.lastScrapedBlock = n
	return nil
}

func (s *Store) SkippedBlocks() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skippedBlocksLocked()
}

func (s *Store) skippedBlocksLocked() []uint64 {
	blocks := make([]uint64, 0, len(s.skippedBlocks))
	for n := range s.skippedBlocks {
		blocks = append(blocks, n)
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i] < blocks[j]
	})
	return blocks
}

// PendingLogs returns a snapshot of the pending logs ordered by source.
func (s *Store) PendingLogs() []*entity.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedLogs(s.pendingLogs)
}

func (s *Store) HasPendingLogs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingLogs) > 0
}

func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingLogs)
}

func (s *Store) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completedLogs)
}

func (s *Store) IsCompleted(src entity.LogSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completedLogs[src]
	return ok
}

// CompleteLog moves a pending log into the completed set and returns it.
func (s *Store) CompleteLog(src entity.LogSource) (*entity.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.pendingLogs[src]
	if !ok {
		return nil, fmt.Errorf("log %s is not pending: %w", src, ErrInvariantViolation)
	}
	if _, ok = s.completedLogs[src]; ok {
		return nil, fmt.Errorf("log %s is already completed: %w", src, ErrInvariantViolation)
	}
	completed := log.Clone()
	completed.Status = entity.LogStatusCompleted
	delete(s.pendingLogs, src)
	s.completedLogs[src] = completed
	s.dirtyLogs[src] = struct{}{}
	return completed, nil
}

func (s *Store) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// SetNonce initializes the nonce from the chain.
func (s *Store) SetNonce(nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = nonce
}

// IncrementNonce advances the nonce after nonce was confirmed as sent.
func (s *Store) IncrementNonce(sent uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sent != s.nonce {
		return fmt.Errorf("sent nonce %d, current nonce %d: %w", sent, s.nonce, ErrInvariantViolation)
	}
	s.nonce++
	return nil
}

func (s *Store) SetIdentity(publicKey []byte, address common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKey = common.CopyBytes(publicKey)
	s.address = address
}

func (s *Store) PublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return common.CopyBytes(s.publicKey)
}

func (s *Store) Address() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

func (s *Store) ScheduleJob(job *entity.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := job.Source()
	if _, ok := s.scheduledJobs[src]; ok {
		return fmt.Errorf("job from %s is already scheduled: %w", src, ErrInvariantViolation)
	}
	s.scheduledJobs[src] = job
	return nil
}

// PopDueJobs removes and returns every scheduled job due at now, ordered by
// execution time and job id.
func (s *Store) PopDueJobs(now time.Time) []*entity.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*entity.ScheduledJob, 0)
	for src, job := range s.scheduledJobs {
		if job.Event().IsDue(now) {
			due = append(due, job)
			delete(s.scheduledJobs, src)
		}
	}
	sortJobs(due)
	return due
}

func (s *Store) ScheduledJobs() []*entity.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduledJobsLocked()
}

func (s *Store) scheduledJobsLocked() []*entity.ScheduledJob {
	jobs := make([]*entity.ScheduledJob, 0, len(s.scheduledJobs))
	for _, job := range s.scheduledJobs {
		jobs = append(jobs, job)
	}
	sortJobs(jobs)
	return jobs
}

func sortedLogs(m map[entity.LogSource]*entity.Log) []*entity.Log {
	logs := make([]*entity.Log, 0, len(m))
	for _, log := range m {
		logs = append(logs, log)
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Source().Less(logs[j].Source())
	})
	return logs
}

func sortJobs(jobs []*entity.ScheduledJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if c := jobs[i].ExecutionTime.Cmp(jobs[j].ExecutionTime); c != 0 {
			return c < 0
		}
		return jobs[i].JobID.Cmp(jobs[j].JobID) < 0
	})
}

package state

import (
	"fmt"

	"github.com/omni/job-relay/entity"
)

// Checkpoint is a persistable copy of the mutable relay state. Logs holds
// only the logs changed since the last committed checkpoint.
type Checkpoint struct {
	LastScrapedBlock  uint64
	LastObservedBlock *uint64
	Nonce             uint64
	SkippedBlocks     []uint64
	Logs              []*entity.Log
	ScheduledJobs     []*entity.ScheduledJob
}

func (s *Store) Checkpoint() *Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := &Checkpoint{
		LastScrapedBlock: s.lastScrapedBlock,
		Nonce:            s.nonce,
		SkippedBlocks:    s.skippedBlocksLocked(),
		Logs:             make([]*entity.Log, 0, len(s.dirtyLogs)),
		ScheduledJobs:    s.scheduledJobsLocked(),
	}
	if s.lastObservedBlock != nil {
		observed := *s.lastObservedBlock
		cp.LastObservedBlock = &observed
	}
	for src := range s.dirtyLogs {
		if log, ok := s.completedLogs[src]; ok {
			cp.Logs = append(cp.Logs, log.Clone())
		} else if log, ok = s.pendingLogs[src]; ok {
			cp.Logs = append(cp.Logs, log.Clone())
		}
	}
	return cp
}

// CommitCheckpoint clears the dirty marks of logs saved with cp, unless they
// changed again after cp was taken.
func (s *Store) CommitCheckpoint(cp *Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, saved := range cp.Logs {
		src := saved.Source()
		if saved.Status == entity.LogStatusCompleted {
			delete(s.dirtyLogs, src)
			continue
		}
		if _, ok := s.pendingLogs[src]; ok {
			delete(s.dirtyLogs, src)
		}
	}
}

// Restore loads a checkpoint into an empty store.
func (s *Store) Restore(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pendingLogs) > 0 || len(s.completedLogs) > 0 {
		return fmt.Errorf("restoring into a non-empty store: %w", ErrInvariantViolation)
	}
	for _, log := range cp.Logs {
		src := log.Source()
		if _, ok := s.pendingLogs[src]; ok {
			return fmt.Errorf("log %s is restored twice: %w", src, ErrInvariantViolation)
		}
		if _, ok := s.completedLogs[src]; ok {
			return fmt.Errorf("log %s is restored twice: %w", src, ErrInvariantViolation)
		}
		switch log.Status {
		case entity.LogStatusPending:
			s.pendingLogs[src] = log.Clone()
		case entity.LogStatusCompleted:
			s.completedLogs[src] = log.Clone()
		default:
			return fmt.Errorf("log %s has unknown status %q: %w", src, log.Status, ErrInvariantViolation)
		}
	}
	for _, n := range cp.SkippedBlocks {
		s.skippedBlocks[n] = struct{}{}
	}
	for _, job := range cp.ScheduledJobs {
		s.scheduledJobs[job.Source()] = job
	}
	if cp.LastScrapedBlock > s.lastScrapedBlock {
		s.lastScrapedBlock = cp.LastScrapedBlock
	}
	if cp.LastObservedBlock != nil {
		observed := *cp.LastObservedBlock
		s.lastObservedBlock = &observed
	}
	s.nonce = cp.Nonce
	return nil
}

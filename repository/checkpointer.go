package repository

import (
	"context"
	"fmt"

	"github.com/omni/job-relay/db"
	"github.com/omni/job-relay/entity"
	"github.com/omni/job-relay/state"
)

const logsBatchSize = 1000

// Checkpointer persists relay checkpoints of one chain in postgres.
type Checkpointer struct {
	db      *db.DB
	repo    *Repo
	chainID string
}

func NewCheckpointer(conn *db.DB, chainID string) *Checkpointer {
	return &Checkpointer{
		db:      conn,
		repo:    NewRepo(conn),
		chainID: chainID,
	}
}

// Load returns the saved checkpoint, or nil if the chain has none yet.
func (c *Checkpointer) Load(ctx context.Context) (*state.Checkpoint, error) {
	cursor, err := c.repo.RelayCursors.GetByChainID(ctx, c.chainID)
	if err != nil {
		return nil, db.IgnoreErrNotFound(err)
	}
	pending, err := c.repo.Logs.FindByStatus(ctx, c.chainID, entity.LogStatusPending)
	if err != nil {
		return nil, err
	}
	completed, err := c.repo.Logs.FindByStatus(ctx, c.chainID, entity.LogStatusCompleted)
	if err != nil {
		return nil, err
	}
	skipped, err := c.repo.SkippedBlocks.FindByChainID(ctx, c.chainID)
	if err != nil {
		return nil, err
	}
	jobs, err := c.repo.ScheduledJobs.FindByChainID(ctx, c.chainID)
	if err != nil {
		return nil, err
	}
	return NewCheckpoint(cursor, append(pending, completed...), skipped, jobs), nil
}

// Save writes cp in one transaction. The cursor goes last.
func (c *Checkpointer) Save(ctx context.Context, cp *state.Checkpoint) error {
	return c.db.WithTx(ctx, func(ctx context.Context) error {
		for _, batch := range Batches(cp.Logs, logsBatchSize) {
			if err := c.repo.Logs.Ensure(ctx, batch...); err != nil {
				return err
			}
		}
		if err := c.repo.SkippedBlocks.Ensure(ctx, SkippedBlocks(c.chainID, cp)...); err != nil {
			return err
		}
		if err := c.repo.ScheduledJobs.Replace(ctx, c.chainID, cp.ScheduledJobs...); err != nil {
			return err
		}
		if err := c.repo.RelayCursors.Ensure(ctx, Cursor(c.chainID, cp)); err != nil {
			return fmt.Errorf("can't save checkpoint cursor: %w", err)
		}
		return nil
	})
}

func NewCheckpoint(cursor *entity.RelayCursor, logs []*entity.Log, skipped []*entity.SkippedBlock, jobs []*entity.ScheduledJob) *state.Checkpoint {
	cp := &state.Checkpoint{
		LastScrapedBlock:  cursor.LastScrapedBlock,
		LastObservedBlock: cursor.LastObservedBlock,
		Nonce:             cursor.Nonce,
		SkippedBlocks:     make([]uint64, len(skipped)),
		Logs:              logs,
		ScheduledJobs:     jobs,
	}
	for i, block := range skipped {
		cp.SkippedBlocks[i] = block.BlockNumber
	}
	return cp
}

func Cursor(chainID string, cp *state.Checkpoint) *entity.RelayCursor {
	return &entity.RelayCursor{
		ChainID:           chainID,
		LastScrapedBlock:  cp.LastScrapedBlock,
		LastObservedBlock: cp.LastObservedBlock,
		Nonce:             cp.Nonce,
	}
}

func SkippedBlocks(chainID string, cp *state.Checkpoint) []*entity.SkippedBlock {
	blocks := make([]*entity.SkippedBlock, len(cp.SkippedBlocks))
	for i, n := range cp.SkippedBlocks {
		blocks[i] = &entity.SkippedBlock{ChainID: chainID, BlockNumber: n}
	}
	return blocks
}

func Batches[T any](items []T, size int) [][]T {
	var res [][]T
	for len(items) > size {
		res = append(res, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		res = append(res, items)
	}
	return res
}

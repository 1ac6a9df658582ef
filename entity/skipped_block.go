package entity

import (
	"context"
	"time"
)

type SkippedBlock struct {
	ChainID     string     `db:"chain_id"`
	BlockNumber uint64     `db:"block_number"`
	CreatedAt   *time.Time `db:"created_at"`
}

type SkippedBlocksRepo interface {
	Ensure(ctx context.Context, blocks ...*SkippedBlock) error
	FindByChainID(ctx context.Context, chainID string) ([]*SkippedBlock, error)
}

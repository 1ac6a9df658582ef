package entity

import (
	"context"
	"time"
)

type RelayCursor struct {
	ChainID           string     `db:"chain_id"`
	LastScrapedBlock  uint64     `db:"last_scraped_block"`
	LastObservedBlock *uint64    `db:"last_observed_block"`
	Nonce             uint64     `db:"nonce"`
	CreatedAt         *time.Time `db:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at"`
}

type RelayCursorsRepo interface {
	Ensure(ctx context.Context, cursor *RelayCursor) error
	GetByChainID(ctx context.Context, chainID string) (*RelayCursor, error)
}

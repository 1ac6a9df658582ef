package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/job-relay/db"
	"github.com/omni/job-relay/entity"
)

type skippedBlocksRepo basePostgresRepo

func NewSkippedBlocksRepo(table string, db *db.DB) entity.SkippedBlocksRepo {
	return (*skippedBlocksRepo)(newBasePostgresRepo(table, db))
}

func (r *skippedBlocksRepo) Ensure(ctx context.Context, blocks ...*entity.SkippedBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	builder := sq.Insert(r.table).Columns("chain_id", "block_number")
	for _, block := range blocks {
		builder = builder.Values(block.ChainID, block.BlockNumber)
	}
	q, args, err := builder.
		Suffix("ON CONFLICT (chain_id, block_number) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert skipped blocks: %w", err)
	}
	return nil
}

func (r *skippedBlocksRepo) FindByChainID(ctx context.Context, chainID string) ([]*entity.SkippedBlock, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"chain_id": chainID}).
		OrderBy("block_number").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	blocks := make([]*entity.SkippedBlock, 0, 10)
	err = r.db.SelectContext(ctx, &blocks, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get skipped blocks: %w", err)
	}
	return blocks, nil
}

package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/job-relay/db"
	"github.com/omni/job-relay/entity"
)

type logsRepo basePostgresRepo

func NewLogsRepo(table string, db *db.DB) entity.LogsRepo {
	return (*logsRepo)(newBasePostgresRepo(table, db))
}

func (r *logsRepo) Ensure(ctx context.Context, logs ...*entity.Log) error {
	if len(logs) == 0 {
		return nil
	}
	builder := sq.Insert(r.table).
		Columns("chain_id", "address", "topic0", "topic1", "topic2", "topic3", "data", "block_number", "block_hash",
			"log_index", "transaction_hash", "transaction_index", "removed", "status")
	for _, log := range logs {
		builder = builder.Values(log.ChainID, log.Address, log.Topic0, log.Topic1, log.Topic2, log.Topic3, log.Data,
			log.BlockNumber, log.BlockHash, log.LogIndex, log.TransactionHash, log.TransactionIndex, log.Removed, log.Status)
	}
	q, args, err := builder.
		Suffix("ON CONFLICT (chain_id, transaction_hash, log_index) DO UPDATE SET updated_at = NOW(), status = EXCLUDED.status").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert logs: %w", err)
	}
	return nil
}

func (r *logsRepo) FindByStatus(ctx context.Context, chainID string, status entity.LogStatus) ([]*entity.Log, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"chain_id": chainID, "status": status}).
		OrderBy("transaction_hash", "log_index").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	logs := make([]*entity.Log, 0, 10)
	err = r.db.SelectContext(ctx, &logs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get logs by status: %w", err)
	}
	return logs, nil
}

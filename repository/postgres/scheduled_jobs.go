package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/job-relay/db"
	"github.com/omni/job-relay/entity"
)

type scheduledJobsRepo basePostgresRepo

func NewScheduledJobsRepo(table string, db *db.DB) entity.ScheduledJobsRepo {
	return (*scheduledJobsRepo)(newBasePostgresRepo(table, db))
}

// Replace makes jobs the whole queue of the chain.
func (r *scheduledJobsRepo) Replace(ctx context.Context, chainID string, jobs ...*entity.ScheduledJob) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q, args, err := sq.Delete(r.table).
			Where(sq.Eq{"chain_id": chainID}).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't delete scheduled jobs: %w", err)
		}
		if len(jobs) == 0 {
			return nil
		}

		builder := sq.Insert(r.table).Columns("chain_id", "job_id", "execution_time", "transaction_hash", "log_index")
		for _, job := range jobs {
			builder = builder.Values(chainID, job.JobID, job.ExecutionTime, job.TransactionHash, job.LogIndex)
		}
		q, args, err = builder.PlaceholderFormat(sq.Dollar).ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't insert scheduled jobs: %w", err)
		}
		return nil
	})
}

func (r *scheduledJobsRepo) FindByChainID(ctx context.Context, chainID string) ([]*entity.ScheduledJob, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"chain_id": chainID}).
		OrderBy("execution_time", "job_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	jobs := make([]*entity.ScheduledJob, 0, 10)
	err = r.db.SelectContext(ctx, &jobs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get scheduled jobs: %w", err)
	}
	return jobs, nil
}

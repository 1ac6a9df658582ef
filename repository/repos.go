package repository

import (
	"github.com/omni/job-relay/db"
	"github.com/omni/job-relay/entity"
	"github.com/omni/job-relay/repository/postgres"
)

type Repo struct {
	RelayCursors  entity.RelayCursorsRepo
	Logs          entity.LogsRepo
	SkippedBlocks entity.SkippedBlocksRepo
	ScheduledJobs entity.ScheduledJobsRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		RelayCursors:  postgres.NewRelayCursorsRepo("relay_cursors", db),
		Logs:          postgres.NewLogsRepo("relay_logs", db),
		SkippedBlocks: postgres.NewSkippedBlocksRepo("skipped_blocks", db),
		ScheduledJobs: postgres.NewScheduledJobsRepo("scheduled_jobs", db),
	}
}

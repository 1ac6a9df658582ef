package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/omni/job-relay/entity"
	"github.com/omni/job-relay/ethclient"
	"github.com/omni/job-relay/logging"
	"github.com/omni/job-relay/state"
)

// Scraper moves the sync cursor towards the block at the configured tag,
// adding every matching log to the pending set.
type Scraper struct {
	logger    logging.Logger
	store     *state.Store
	rpc       ChainRPC
	maxRange  uint64
	onPending func(ctx context.Context)
}

// NewScraper creates a scraper. onPending is called each time a scanned range
// leaves the pending set non-empty.
func NewScraper(logger logging.Logger, store *state.Store, rpc ChainRPC, maxRange uint64, onPending func(ctx context.Context)) *Scraper {
	if maxRange == 0 {
		maxRange = 1
	}
	return &Scraper{
		logger:    logger,
		store:     store,
		rpc:       rpc,
		maxRange:  maxRange,
		onPending: onPending,
	}
}

// ScrapeCycle scans all blocks up to the current tagged block. It does
// nothing if another cycle is still running.
func (s *Scraper) ScrapeCycle(ctx context.Context) error {
	guard, err := s.store.Acquire(state.TaskScrapeLogs)
	if errors.Is(err, state.ErrAlreadyActive) {
		s.logger.Debug("previous scrape cycle is still running, skipping")
		ScrapeCycles.WithLabelValues("skipped").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	defer guard.Release()

	err = s.scrape(ctx)
	observeState(s.store)
	if err != nil {
		ScrapeCycles.WithLabelValues("aborted").Inc()
		return err
	}
	ScrapeCycles.WithLabelValues("completed").Inc()
	return nil
}

func (s *Scraper) scrape(ctx context.Context) error {
	tag := s.store.Settings().BlockTag
	observed, err := s.rpc.BlockNumberByTag(ctx, tag)
	switch {
	case err == nil:
		s.store.SetLastObservedBlock(observed)
	case errors.Is(err, ethclient.ErrInconsistentResponse):
		return fmt.Errorf("can't get %s block: %w", tag, err)
	default:
		prev, ok := s.store.LastObservedBlock()
		if !ok {
			return fmt.Errorf("can't get %s block: %w", tag, err)
		}
		s.logger.WithError(err).WithField("last_observed_block", prev).
			Warn("can't get tagged block, using last observed block")
		observed = prev
	}

	for {
		last := s.store.LastScrapedBlock()
		if last >= observed {
			return nil
		}
		to := observed
		if observed-last > s.maxRange {
			to = last + s.maxRange
		}
		if _, err = s.scanRange(ctx, last+1, to); err != nil {
			return err
		}
	}
}

// scanRange fetches logs of [from, to], halving the range while providers
// refuse the response by size. It returns the block the cursor was moved to.
func (s *Scraper) scanRange(ctx context.Context, from, to uint64) (uint64, error) {
	settings := s.store.Settings()
	for {
		logger := s.logger.WithFields(logrus.Fields{
			"from_block": from,
			"to_block":   to,
		})
		logs, err := s.rpc.GetLogs(ctx, from, to, settings.Addresses, settings.Topics)
		if errors.Is(err, ethclient.ErrResponseTooLarge) {
			if from == to {
				if err = s.store.RecordSkippedBlock(to); err != nil {
					return 0, err
				}
				logger.Error("logs of a single block exceed provider limits, block is skipped")
				return to, nil
			}
			to = from + (to-from)/2
			logger.WithField("new_to_block", to).Debug("response is too large, splitting block range")
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("can't get logs in [%d, %d]: %w", from, to, err)
		}

		entries := make([]*entity.Log, len(logs))
		for i, log := range logs {
			entries[i] = entity.NewLog(s.store.ChainID(), log)
		}
		pending, err := s.store.RecordScrapedRange(entries, to)
		if err != nil {
			return 0, err
		}
		ScrapedLogs.Add(float64(len(entries)))
		if len(entries) > 0 {
			logger.WithField("count", len(entries)).Info("scraped new logs")
		} else {
			logger.Debug("scraped block range")
		}
		if pending > 0 && s.onPending != nil {
			s.onPending(ctx)
		}
		return to, nil
	}
}

package repository_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/entity"
	"github.com/omni/job-relay/repository"
	"github.com/omni/job-relay/state"
)

func TestBatches(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name     string
		Items    []int
		Size     int
		Expected [][]int
	}{
		{Name: "empty", Items: nil, Size: 2, Expected: nil},
		{Name: "exact", Items: []int{1, 2, 3, 4}, Size: 2, Expected: [][]int{{1, 2}, {3, 4}}},
		{Name: "tail", Items: []int{1, 2, 3}, Size: 2, Expected: [][]int{{1, 2}, {3}}},
		{Name: "single batch", Items: []int{1, 2, 3}, Size: 5, Expected: [][]int{{1, 2, 3}}},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, test.Expected, repository.Batches(test.Items, test.Size))
		})
	}
}

func TestCheckpointRecords(t *testing.T) {
	t.Parallel()

	observed := uint64(120)
	cp := &state.Checkpoint{
		LastScrapedBlock:  100,
		LastObservedBlock: &observed,
		Nonce:             7,
		SkippedBlocks:     []uint64{50, 60},
		Logs: []*entity.Log{{
			ChainID:         "100",
			TransactionHash: common.HexToHash("0x01"),
			Status:          entity.LogStatusCompleted,
		}},
	}

	cursor := repository.Cursor("100", cp)
	require.Equal(t, "100", cursor.ChainID)
	require.Equal(t, uint64(100), cursor.LastScrapedBlock)
	require.Equal(t, &observed, cursor.LastObservedBlock)
	require.Equal(t, uint64(7), cursor.Nonce)

	skipped := repository.SkippedBlocks("100", cp)
	require.Len(t, skipped, 2)
	require.Equal(t, uint64(60), skipped[1].BlockNumber)

	restored := repository.NewCheckpoint(cursor, cp.Logs, skipped, nil)
	require.Equal(t, cp.LastScrapedBlock, restored.LastScrapedBlock)
	require.Equal(t, cp.LastObservedBlock, restored.LastObservedBlock)
	require.Equal(t, cp.Nonce, restored.Nonce)
	require.Equal(t, cp.SkippedBlocks, restored.SkippedBlocks)
	require.Equal(t, cp.Logs, restored.Logs)
}

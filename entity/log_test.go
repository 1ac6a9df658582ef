package entity_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/entity"
)

func TestNewLog(t *testing.T) {
	t.Parallel()

	raw := types.Log{
		Address:     common.HexToAddress("0x01"),
		Topics:      []common.Hash{common.HexToHash("0xaa"), common.HexToHash("0xbb")},
		Data:        []byte{1, 2, 3},
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xcc"),
		TxIndex:     2,
		Index:       7,
	}
	log := entity.NewLog("1", raw)
	require.Equal(t, raw.Topics, log.Topics())
	require.Nil(t, log.Topic2)
	require.Equal(t, entity.LogStatusPending, log.Status)
	require.Equal(t, entity.LogSource{TransactionHash: raw.TxHash, LogIndex: 7}, log.Source())
}

func TestLogSource_Less(t *testing.T) {
	t.Parallel()

	a := entity.LogSource{TransactionHash: common.HexToHash("0x01"), LogIndex: 5}
	b := entity.LogSource{TransactionHash: common.HexToHash("0x01"), LogIndex: 6}
	c := entity.LogSource{TransactionHash: common.HexToHash("0x02"), LogIndex: 0}

	require.True(t, a.Less(b))
	require.True(t, b.Less(c))
	require.True(t, a.Less(c))
	require.False(t, c.Less(a))
	require.False(t, a.Less(a))
}

func TestJobEvent_Delay(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	for _, test := range []struct {
		Name          string
		ExecutionTime int64
		Due           bool
		Delay         time.Duration
	}{
		{"past", 1_600_000_000, true, 0},
		{"now", 1_700_000_000, true, 0},
		{"future", 1_700_000_060, false, time.Minute},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			event := &entity.JobEvent{JobID: big.NewInt(1), ExecutionTime: big.NewInt(test.ExecutionTime)}
			require.Equal(t, test.Due, event.IsDue(now))
			require.Equal(t, test.Delay, event.Delay(now))
		})
	}
}

func TestScheduledJob_Event(t *testing.T) {
	t.Parallel()

	event := &entity.JobEvent{JobID: big.NewInt(42), ExecutionTime: big.NewInt(1_700_000_000)}
	src := entity.LogSource{TransactionHash: common.HexToHash("0x01"), LogIndex: 3}
	job := entity.NewScheduledJob("1", src, event)
	require.Equal(t, event, job.Event())
	require.Equal(t, src, job.Source())
}

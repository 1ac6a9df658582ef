package entity

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type LogStatus string

const (
	LogStatusPending   LogStatus = "pending"
	LogStatusCompleted LogStatus = "completed"
)

// LogSource identifies one observed event: its transaction and its position
// within the block.
type LogSource struct {
	TransactionHash common.Hash
	LogIndex        uint64
}

func (s LogSource) Less(other LogSource) bool {
	if c := bytes.Compare(s.TransactionHash[:], other.TransactionHash[:]); c != 0 {
		return c < 0
	}
	return s.LogIndex < other.LogIndex
}

func (s LogSource) String() string {
	return fmt.Sprintf("%s:%d", s.TransactionHash, s.LogIndex)
}

type Log struct {
	ChainID          string         `db:"chain_id"`
	Address          common.Address `db:"address"`
	Topic0           *common.Hash   `db:"topic0"`
	Topic1           *common.Hash   `db:"topic1"`
	Topic2           *common.Hash   `db:"topic2"`
	Topic3           *common.Hash   `db:"topic3"`
	Data             []byte         `db:"data"`
	BlockNumber      uint64         `db:"block_number"`
	BlockHash        common.Hash    `db:"block_hash"`
	LogIndex         uint64         `db:"log_index"`
	TransactionHash  common.Hash    `db:"transaction_hash"`
	TransactionIndex uint64         `db:"transaction_index"`
	Removed          bool           `db:"removed"`
	Status           LogStatus      `db:"status"`
	CreatedAt        *time.Time     `db:"created_at"`
	UpdatedAt        *time.Time     `db:"updated_at"`
}

func NewLog(chainID string, log types.Log) *Log {
	e := &Log{
		ChainID:          chainID,
		Address:          log.Address,
		Data:             log.Data,
		BlockNumber:      log.BlockNumber,
		BlockHash:        log.BlockHash,
		LogIndex:         uint64(log.Index),
		TransactionHash:  log.TxHash,
		TransactionIndex: uint64(log.TxIndex),
		Removed:          log.Removed,
		Status:           LogStatusPending,
	}
	topics := [4]**common.Hash{&e.Topic0, &e.Topic1, &e.Topic2, &e.Topic3}
	for i, topic := range log.Topics {
		if i == len(topics) {
			break
		}
		topic := topic
		*topics[i] = &topic
	}
	return e
}

func (l *Log) Source() LogSource {
	return LogSource{
		TransactionHash: l.TransactionHash,
		LogIndex:        l.LogIndex,
	}
}

func (l *Log) Topics() []common.Hash {
	topics := make([]common.Hash, 0, 4)
	for _, topic := range []*common.Hash{l.Topic0, l.Topic1, l.Topic2, l.Topic3} {
		if topic == nil {
			break
		}
		topics = append(topics, *topic)
	}
	return topics
}

func (l *Log) Clone() *Log {
	c := *l
	c.Data = common.CopyBytes(l.Data)
	return &c
}

type LogsRepo interface {
	Ensure(ctx context.Context, logs ...*Log) error
	FindByStatus(ctx context.Context, chainID string, status LogStatus) ([]*Log, error)
}

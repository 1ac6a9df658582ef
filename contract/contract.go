package contract

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/job-relay/contract/abi"
	"github.com/omni/job-relay/entity"
)

var ErrUnexpectedEvent = errors.New("unexpected event")

type RelayContract struct {
	address common.Address
	abi     abi.ABI
}

func NewRelayContract(addr common.Address) *RelayContract {
	return &RelayContract{addr, abi.RelayABI}
}

func (c *RelayContract) Address() common.Address {
	return c.address
}

// NewJobTopic is the topic0 of NewJob events.
func (c *RelayContract) NewJobTopic() common.Hash {
	return c.abi.Events["NewJob"].ID
}

// PackExecuteJob encodes the executeJob(uint256) call.
func (c *RelayContract) PackExecuteJob(jobID *big.Int) ([]byte, error) {
	data, err := c.abi.Pack(abi.ExecuteJob, jobID)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	return data, nil
}

func (c *RelayContract) DecodeJobEvent(log *entity.Log) (*entity.JobEvent, error) {
	event, data, err := c.abi.ParseLog(log)
	if err != nil {
		return nil, err
	}
	if event != abi.NewJob {
		return nil, fmt.Errorf("log %s is not a NewJob event: %w", log.Source(), ErrUnexpectedEvent)
	}
	jobID, ok := data["jobId"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("jobId has type %T: %w", data["jobId"], ErrUnexpectedEvent)
	}
	executionTime, ok := data["executionTime"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("executionTime has type %T: %w", data["executionTime"], ErrUnexpectedEvent)
	}
	return &entity.JobEvent{
		JobID:         jobID,
		ExecutionTime: executionTime,
	}, nil
}

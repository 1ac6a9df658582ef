package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/omni/job-relay/contract"
	"github.com/omni/job-relay/ethclient"
	"github.com/omni/job-relay/logging"
	"github.com/omni/job-relay/signer"
	"github.com/omni/job-relay/state"
)

const TransferGasLimit = 21_000

var ErrTransactionRejected = errors.New("transaction rejected")

type RejectedError struct {
	Status ethclient.SendStatus
	Nonce  uint64
	TxHash common.Hash
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: status %s, nonce %d, tx %s", ErrTransactionRejected, e.Status, e.Nonce, e.TxHash)
}

func (e *RejectedError) Unwrap() error {
	return ErrTransactionRejected
}

// Submitter signs and sends transactions from the relay account. Calls are
// serialized, so two submissions never use the same nonce.
type Submitter struct {
	mu          sync.Mutex
	logger      logging.Logger
	store       *state.Store
	rpc         ChainRPC
	fees        *FeeEstimator
	signer      signer.Signer
	contract    *contract.RelayContract
	jobGasLimit uint64
}

func NewSubmitter(
	logger logging.Logger,
	store *state.Store,
	rpc ChainRPC,
	txSigner signer.Signer,
	relayContract *contract.RelayContract,
	jobGasLimit uint64,
) *Submitter {
	return &Submitter{
		logger:      logger,
		store:       store,
		rpc:         rpc,
		fees:        NewFeeEstimator(rpc),
		signer:      txSigner,
		contract:    relayContract,
		jobGasLimit: jobGasLimit,
	}
}

// ExecuteJob calls executeJob(jobID) on the relay contract.
func (s *Submitter) ExecuteJob(ctx context.Context, jobID *big.Int) (common.Hash, error) {
	data, err := s.contract.PackExecuteJob(jobID)
	if err != nil {
		return common.Hash{}, err
	}
	logger := s.logger.WithField("job_id", jobID.String())
	return s.submit(ctx, logger, "execute_job", s.contract.Address(), nil, data, s.jobGasLimit)
}

// TransferValue sends amount wei from the relay account to the given address.
func (s *Submitter) TransferValue(ctx context.Context, amount *big.Int, to common.Address) (common.Hash, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"amount": amount.String(),
		"to":     to.String(),
	})
	return s.submit(ctx, logger, "transfer", to, amount, nil, TransferGasLimit)
}

func (s *Submitter) submit(
	ctx context.Context,
	logger logging.Logger,
	kind string,
	to common.Address,
	value *big.Int,
	data []byte,
	gasLimit uint64,
) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.store.Settings()
	nonce := s.store.Nonce()
	logger = logger.WithField("nonce", nonce)

	fees, err := s.fees.Estimate(ctx)
	if err != nil {
		Submissions.WithLabelValues(kind, "error").Inc()
		return common.Hash{}, fmt.Errorf("can't estimate fees: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   settings.ChainID,
		Nonce:     nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := signer.SignTx(ctx, s.signer, tx, settings.ChainID, s.store.PublicKey(), settings.DerivationPath)
	if err != nil {
		Submissions.WithLabelValues(kind, "error").Inc()
		return common.Hash{}, fmt.Errorf("can't sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		Submissions.WithLabelValues(kind, "error").Inc()
		return common.Hash{}, fmt.Errorf("can't encode transaction: %w", err)
	}
	logger = logger.WithField("tx_hash", signed.Hash())

	status, err := s.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		Submissions.WithLabelValues(kind, "error").Inc()
		return common.Hash{}, fmt.Errorf("can't send transaction: %w", err)
	}
	Submissions.WithLabelValues(kind, status.String()).Inc()
	if !status.Accepted() {
		logger.WithField("status", status.String()).Error("transaction was rejected")
		return common.Hash{}, &RejectedError{Status: status, Nonce: nonce, TxHash: signed.Hash()}
	}
	if err = s.store.IncrementNonce(nonce); err != nil {
		return signed.Hash(), err
	}
	Nonce.Set(float64(nonce + 1))
	logger.WithFields(logrus.Fields{
		"status":           status.String(),
		"max_fee":          fees.MaxFeePerGas.String(),
		"max_priority_fee": fees.MaxPriorityFeePerGas.String(),
	}).Info("submitted transaction")
	return signed.Hash(), nil
}

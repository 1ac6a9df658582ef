package relay_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/contract"
	"github.com/omni/job-relay/ethclient"
	"github.com/omni/job-relay/relay"
	"github.com/omni/job-relay/signer"
	"github.com/omni/job-relay/state"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestSubmitter(t *testing.T, rpc *fakeRPC) (*relay.Submitter, *state.Store, common.Address) {
	t.Helper()
	ctx := context.Background()
	local, err := signer.NewLocalSigner(testPrivateKey)
	require.NoError(t, err)
	pub, err := local.PublicKey(ctx, nil)
	require.NoError(t, err)
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	store := newTestStore(0)
	store.SetIdentity(pub, address)
	store.SetNonce(rpc.nonce)
	submitter := relay.NewSubmitter(logrus.New(), store, rpc, local, contract.NewRelayContract(relayAddress), 1_000_000)
	return submitter, store, address
}

func TestSubmitter_ExecuteJob(t *testing.T) {
	t.Parallel()

	rpc := newFakeRPC()
	rpc.nonce = 7
	submitter, store, address := newTestSubmitter(t, rpc)

	txHash, err := submitter.ExecuteJob(context.Background(), big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, uint64(8), store.Nonce())

	sent := rpc.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	require.Equal(t, txHash, tx.Hash())
	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(1_000_000), tx.Gas())
	require.Equal(t, "1500000000", tx.GasFeeCap().String())
	require.Equal(t, "5", tx.GasTipCap().String())
	require.Equal(t, "100", tx.ChainId().String())
	require.Equal(t, relayAddress, *tx.To())
	require.Zero(t, tx.Value().Sign())

	data, err := contract.NewRelayContract(relayAddress).PackExecuteJob(big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, data, tx.Data())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(100)), tx)
	require.NoError(t, err)
	require.Equal(t, address, sender)
}

func TestSubmitter_TransferValue(t *testing.T) {
	t.Parallel()

	rpc := newFakeRPC()
	rpc.sendStatus = ethclient.SendStatusAlreadyKnown
	submitter, store, _ := newTestSubmitter(t, rpc)
	to := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	_, err := submitter.TransferValue(context.Background(), big.NewInt(1000), to)
	require.NoError(t, err)
	require.Equal(t, uint64(1), store.Nonce())

	sent := rpc.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, uint64(relay.TransferGasLimit), sent[0].Gas())
	require.Equal(t, to, *sent[0].To())
	require.Equal(t, "1000", sent[0].Value().String())
	require.Empty(t, sent[0].Data())
}

func TestSubmitter_Rejected(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name   string
		Status ethclient.SendStatus
	}{
		{Name: "nonce too low", Status: ethclient.SendStatusNonceTooLow},
		{Name: "nonce too high", Status: ethclient.SendStatusNonceTooHigh},
		{Name: "insufficient funds", Status: ethclient.SendStatusInsufficientFunds},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			rpc := newFakeRPC()
			rpc.nonce = 3
			rpc.sendStatus = test.Status
			submitter, store, _ := newTestSubmitter(t, rpc)

			_, err := submitter.ExecuteJob(context.Background(), big.NewInt(1))
			require.ErrorIs(t, err, relay.ErrTransactionRejected)
			var rejected *relay.RejectedError
			require.ErrorAs(t, err, &rejected)
			require.Equal(t, test.Status, rejected.Status)
			require.Equal(t, uint64(3), rejected.Nonce)
			require.Equal(t, uint64(3), store.Nonce())
		})
	}
}

func TestSubmitter_SendError(t *testing.T) {
	t.Parallel()

	rpc := newFakeRPC()
	rpc.sendErr = errors.New("connection refused")
	submitter, store, _ := newTestSubmitter(t, rpc)

	_, err := submitter.ExecuteJob(context.Background(), big.NewInt(1))
	require.ErrorIs(t, err, rpc.sendErr)
	require.Equal(t, uint64(0), store.Nonce())

	rpc.sendErr = nil
	_, err = submitter.ExecuteJob(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	sent := rpc.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, sent[0].Nonce(), sent[1].Nonce())
	require.Equal(t, uint64(1), store.Nonce())
}

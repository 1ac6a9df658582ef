package presenter

import (
	"github.com/ethereum/go-ethereum/common"
)

type AddressResponse struct {
	Address string `json:"address"`
}

type TransferRequest struct {
	Amount string         `json:"amount"`
	To     common.Address `json:"to"`
}

type TransferResponse struct {
	TxHash common.Hash `json:"tx_hash"`
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/job-relay/presenter"
	"github.com/omni/job-relay/relay"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client talks to the relay presenter.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func New(baseURL, authToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Address(ctx context.Context) (string, error) {
	res := new(presenter.AddressResponse)
	if err := c.do(ctx, http.MethodGet, "/address", nil, res); err != nil {
		return "", err
	}
	return res.Address, nil
}

func (c *Client) Status(ctx context.Context) (*relay.Status, error) {
	res := new(relay.Status)
	if err := c.do(ctx, http.MethodGet, "/status", nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Transfer(ctx context.Context, amount *big.Int, to common.Address) (common.Hash, error) {
	req := &presenter.TransferRequest{Amount: amount.String(), To: to}
	res := new(presenter.TransferResponse)
	if err := c.do(ctx, http.MethodPost, "/transfer", req, res); err != nil {
		return common.Hash{}, err
	}
	return res.TxHash, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("can't encode request: %w", err)
		}
		reader = bytes.NewReader(blob)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("can't create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("can't send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var errRes struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&errRes)
		return fmt.Errorf("%s %s: %w %d: %s", method, path, ErrUnexpectedStatus, res.StatusCode, errRes.Error)
	}
	if err = json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("can't decode response: %w", err)
	}
	return nil
}

package ethclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrInconsistentResponse = errors.New("rpc providers returned inconsistent responses")
	ErrResponseTooLarge     = errors.New("rpc response exceeds provider size limit")
)

// InconsistentError carries the reply summary of every endpoint.
type InconsistentError struct {
	Query   string
	Replies map[string]string
}

func (e *InconsistentError) Error() string {
	urls := make([]string, 0, len(e.Replies))
	for url := range e.Replies {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	parts := make([]string, len(urls))
	for i, url := range urls {
		parts[i] = fmt.Sprintf("%s: %s", url, e.Replies[url])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Query, ErrInconsistentResponse, strings.Join(parts, "; "))
}

func (e *InconsistentError) Unwrap() error {
	return ErrInconsistentResponse
}

// Providers share the -32005 "limit exceeded" code between oversized
// responses and rate limiting, so only the message tells them apart.
var responseTooLargeMessages = []string{
	"response size",
	"query returned more than",
	"size limit",
	"too many results",
	"block range is too large",
	"block range too large",
}

func isResponseTooLarge(err error) bool {
	if errors.Is(err, ErrResponseTooLarge) {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusRequestEntityTooLarge {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range responseTooLargeMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

type SendStatus int

const (
	SendStatusOK SendStatus = iota
	SendStatusAlreadyKnown
	SendStatusNonceTooLow
	SendStatusNonceTooHigh
	SendStatusInsufficientFunds
)

func (s SendStatus) String() string {
	switch s {
	case SendStatusOK:
		return "ok"
	case SendStatusAlreadyKnown:
		return "already_known"
	case SendStatusNonceTooLow:
		return "nonce_too_low"
	case SendStatusNonceTooHigh:
		return "nonce_too_high"
	case SendStatusInsufficientFunds:
		return "insufficient_funds"
	default:
		return "unknown"
	}
}

func (s SendStatus) Accepted() bool {
	return s == SendStatusOK || s == SendStatusAlreadyKnown
}

// sendStatus maps a node's eth_sendRawTransaction error to a status. It
// returns false for errors that are not a known rejection.
func sendStatus(err error) (SendStatus, bool) {
	if err == nil {
		return SendStatusOK, true
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already known"), strings.Contains(msg, "known transaction"):
		return SendStatusAlreadyKnown, true
	case strings.Contains(msg, "nonce too low"):
		return SendStatusNonceTooLow, true
	case strings.Contains(msg, "nonce too high"):
		return SendStatusNonceTooHigh, true
	case strings.Contains(msg, "insufficient funds"):
		return SendStatusInsufficientFunds, true
	default:
		return 0, false
	}
}

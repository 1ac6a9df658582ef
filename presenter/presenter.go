package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/omni/job-relay/logging"
	relaymw "github.com/omni/job-relay/presenter/http/middleware"
	"github.com/omni/job-relay/presenter/http/render"
	"github.com/omni/job-relay/relay"
)

const shutdownTimeout = 5 * time.Second

var (
	ErrInvalidAmount    = errors.New("amount must be a positive decimal integer")
	ErrInvalidRecipient = errors.New("recipient address is required")
)

type Service interface {
	Address() string
	Status() *relay.Status
	TransferValue(ctx context.Context, amount *big.Int, to common.Address) (common.Hash, error)
}

type Presenter struct {
	logger  logging.Logger
	service Service
	root    chi.Router
}

func NewPresenter(logger logging.Logger, service Service, authToken string) *Presenter {
	p := &Presenter{
		logger:  logger,
		service: service,
		root:    chi.NewMux(),
	}
	p.root.Use(middleware.Throttle(5))
	p.root.Use(middleware.RequestID)
	p.root.Use(relaymw.NewLoggerMiddleware(logger))
	p.root.Use(relaymw.Recoverer)
	p.root.Get("/address", p.GetAddress)
	p.root.Get("/status", p.GetStatus)
	p.root.With(relaymw.BearerAuth(authToken)).Post("/transfer", p.PostTransfer)
	return p
}

func (p *Presenter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.root.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is cancelled.
func (p *Presenter) Serve(ctx context.Context, addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.logger.WithError(err).Error("can't shutdown presenter service")
		}
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (p *Presenter) GetAddress(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, &AddressResponse{Address: p.service.Address()})
}

func (p *Presenter) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, p.service.Status())
}

func (p *Presenter) PostTransfer(w http.ResponseWriter, r *http.Request) {
	req := new(TransferRequest)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		render.ErrorStatus(w, r, http.StatusBadRequest, fmt.Errorf("can't decode request: %w", err))
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		render.ErrorStatus(w, r, http.StatusBadRequest, ErrInvalidAmount)
		return
	}
	if req.To == (common.Address{}) {
		render.ErrorStatus(w, r, http.StatusBadRequest, ErrInvalidRecipient)
		return
	}

	logger := logging.LoggerFromContext(r.Context())
	txHash, err := p.service.TransferValue(r.Context(), amount, req.To)
	if errors.Is(err, relay.ErrTransactionRejected) {
		render.ErrorStatus(w, r, http.StatusConflict, err)
		return
	}
	if err != nil {
		render.Error(w, r, fmt.Errorf("can't transfer value: %w", err))
		return
	}
	logger.WithField("tx_hash", txHash).Info("transferred value")
	render.JSON(w, r, http.StatusOK, &TransferResponse{TxHash: txHash})
}

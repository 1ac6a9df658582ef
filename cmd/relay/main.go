package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omni/job-relay/config"
	"github.com/omni/job-relay/db"
	"github.com/omni/job-relay/ethclient"
	"github.com/omni/job-relay/logging"
	"github.com/omni/job-relay/presenter"
	"github.com/omni/job-relay/relay"
	"github.com/omni/job-relay/repository"
	"github.com/omni/job-relay/signer"
	"github.com/omni/job-relay/utils"
)

func main() {
	logger := logging.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}
	cfg, err := config.ReadConfigFromFile(configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Host,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := metricsSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("can't start listener for prometheus metrics")
		}
	}()
	defer metricsSrv.Close()

	var checkpointer relay.Checkpointer
	if cfg.DBConfig != nil {
		dbConn, err2 := db.ConnectToDBAndMigrate(cfg.DBConfig)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't connect to database and apply migrations")
		}
		defer dbConn.Close()
		checkpointer = repository.NewCheckpointer(dbConn, strconv.FormatUint(cfg.Chain.ChainID, 10))
	} else {
		logger.Warn("postgres is not configured, relay state is kept in memory only")
	}

	rpc, err := ethclient.Dial(logger.WithField("service", "rpc"), cfg.Chain)
	if err != nil {
		logger.WithError(err).Fatal("can't dial rpc clients")
	}

	txSigner, err := signer.New(cfg.Signer)
	if err != nil {
		logger.WithError(err).Fatal("can't create signer")
	}
	if closer, ok := txSigner.(interface{ Close() }); ok {
		defer closer.Close()
	}

	r := relay.NewRelay(logger.WithField("service", "relay"), cfg, rpc, txSigner, checkpointer, utils.TimerScheduler{})
	if err = r.Init(ctx); err != nil {
		logger.WithError(err).Fatal("can't initialize relay")
	}

	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), r, cfg.Presenter.AuthToken)
		go func() {
			if err := pr.Serve(ctx, cfg.Presenter.Host); err != nil {
				logger.WithError(err).Fatal("can't serve presenter")
			}
		}()
	}

	if err = r.Start(ctx); err != nil {
		logger.WithError(err).Error("relay stopped with error")
		return
	}
	logger.Warn("caught termination signal, relay is stopped")
}

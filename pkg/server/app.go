package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CryptoSouq/internal/relay"
	"CryptoSouq/internal/usecase"
	"CryptoSouq/pkg/config"
	xhttp "CryptoSouq/pkg/http"
	pkgkafka "CryptoSouq/pkg/kafka"
	applogger "CryptoSouq/pkg/logger"
	"CryptoSouq/pkg/queue"
)

// App encapsulates the application lifecycle: pollers, queue workers,
// the optional Kafka consumer and the HTTP server, with ordered
// graceful shutdown.
type App struct {
	cfg    *config.Config
	logger *applogger.Logger

	pricePoller *usecase.PricePoller
	newsPoller  *usecase.NewsPoller
	hub         *relay.Hub
	retryQueue  *queue.RedisQueue
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	httpServer  *xhttp.Server
	closers     []func()
}

func New(
	cfg *config.Config,
	logger *applogger.Logger,
	pricePoller *usecase.PricePoller,
	newsPoller *usecase.NewsPoller,
	hub *relay.Hub,
	retryQueue *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	httpHandler xhttp.Handler,
) *App {
	httpServer := xhttp.NewServer(httpHandler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
	return &App{
		cfg:         cfg,
		logger:      logger,
		pricePoller: pricePoller,
		newsPoller:  newsPoller,
		hub:         hub,
		retryQueue:  retryQueue,
		consumer:    consumer,
		kh:          kh,
		httpServer:  httpServer,
	}
}

// OnShutdown registers a cleanup hook, run last in registration order.
func (a *App) OnShutdown(fn func()) { a.closers = append(a.closers, fn) }

// Run starts everything and blocks until a termination signal.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.retryQueue != nil {
		if err := a.retryQueue.Start(); err != nil {
			return err
		}
		a.logger.Info("retry queue started")
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	go a.pricePoller.Run(ctx)
	go a.newsPoller.Run(ctx)

	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	a.logger.Info("shutdown signal received")

	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// stop accepting work first, then drain, then close stores
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown error", applogger.Error(err))
	}
	a.hub.Close()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.retryQueue != nil {
		if err := a.retryQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("retry queue stop error", applogger.Error(err))
		}
	}

	for _, fn := range a.closers {
		fn()
	}
	a.logger.Info("shutdown complete")
	return nil
}

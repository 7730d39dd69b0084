package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	"github.com/RoyceAzure/lab/storefront/internal/api/router"
	"github.com/RoyceAzure/lab/storefront/internal/appcontext"
	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cf := config.GetConfig()
	log := logger.New(logger.Config{Level: cf.LogLevel, Pretty: cf.LogPretty})

	app, err := appcontext.NewApplicationContextWithSource(config.GetConfig, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to init application")
		return err
	}

	// 初始化 handler
	server := router.NewServer(
		handler.NewCartHandler(app.CartService),
		handler.NewOrderHandler(app.CheckoutService),
		handler.NewPaymentHandler(app.CheckoutService),
	)
	r := router.SetupRouter(server, app.Metrics, app.RateLimiter, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cf.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 設置訊號監聽
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.OutboxRelay != nil {
		g.Go(func() error {
			return app.OutboxRelay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if runErr != nil {
		log.Error().Err(runErr).Msg("server stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("application shutdown error")
		return errors.Join(runErr, err)
	}
	log.Info().Msg("closed completed")
	return runErr
}

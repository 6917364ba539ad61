package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/httpapi"
	"github.com/quizparty/party-backend/internal/quiz"
	"github.com/quizparty/party-backend/internal/registry"
	"github.com/quizparty/party-backend/internal/session"
	"github.com/quizparty/party-backend/internal/ws"
)

func run(parent context.Context, cfg *config) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	bank := quiz.Default()
	if cfg.questions != "" {
		bank, err = quiz.Load(cfg.questions)
		if err != nil {
			return err
		}
	}
	log.Info("question bank loaded", zap.Int("questions", bank.Len()))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(log)
	reg := registry.New(ctx, bank, hub, log, session.Timing{})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           httpapi.SetupRoutes(reg, hub, cfg.publicURL, log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info("shut down cleanly")
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

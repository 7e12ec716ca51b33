package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"

	"github.com/devaloi/chatrelay/internal/codec"
	"github.com/devaloi/chatrelay/internal/config"
	"github.com/devaloi/chatrelay/internal/handler"
	"github.com/devaloi/chatrelay/internal/history"
	"github.com/devaloi/chatrelay/internal/hub"
	"github.com/devaloi/chatrelay/internal/linesrv"
	"github.com/devaloi/chatrelay/internal/middleware"
	"github.com/devaloi/chatrelay/internal/registry"
	"github.com/devaloi/chatrelay/internal/router"
	"github.com/devaloi/chatrelay/internal/rpc"
	"github.com/devaloi/chatrelay/internal/store"
)

const (
	exitStartup = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

var errConfig = errors.New("configuration")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		if errors.Is(err, errConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitStartup)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	snapCodec, err := codec.ByName(cfg.SnapshotCodec)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	st, err := store.Open(cfg.StoreBackend, cfg.DataPath, snapCodec)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("closing store", "error", err)
		}
	}()

	hist := history.New()
	reg := registry.New(hist)
	h := hub.New(log)
	rt := router.New(hist, reg, h, st, log, router.Options{
		RequireRegisteredSender: cfg.RequireRegisteredSender,
		ScopeGroupsToMembers:    cfg.ScopeGroupsToMembers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Restore(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(ctx, cfg, rt, log) })
	g.Go(func() error { return serveLine(ctx, cfg, rt, log) })
	g.Go(func() error { return serveGRPC(ctx, cfg, rt, log) })

	log.Info("chatrelay started",
		"http", cfg.Addr(cfg.HTTPPort),
		"line", cfg.Addr(cfg.LinePort),
		"grpc", cfg.Addr(cfg.GRPCPort),
		"store", cfg.StoreBackend,
	)
	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Flush(flushCtx); err != nil {
		log.Error("final snapshot failed", "error", err)
	}
	log.Info("chatrelay stopped")
	return runErr
}

func serveHTTP(ctx context.Context, cfg config.Config, rt *router.Router, log *slog.Logger) error {
	mux := httprouter.New()
	handler.NewAPI(rt).Register(mux)
	mux.GET("/ws", handler.ServeWS(ctx, rt, log, handler.WSOptions{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
		WriteTimeout:   cfg.WriteTimeout,
	}))

	srv := &http.Server{
		Addr:              cfg.Addr(cfg.HTTPPort),
		Handler:           middleware.Logging(log, middleware.CORS(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveLine(ctx context.Context, cfg config.Config, rt *router.Router, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr(cfg.LinePort))
	if err != nil {
		return fmt.Errorf("line listener: %w", err)
	}
	srv := linesrv.New(rt, log, linesrv.Options{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
		WriteTimeout:   cfg.WriteTimeout,
	})
	return srv.Serve(ctx, ln)
}

func serveGRPC(ctx context.Context, cfg config.Config, rt *router.Router, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr(cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listener: %w", err)
	}
	gs := rpc.NewGRPCServer(rpc.NewServer(rt, log, cfg.SendBuffer))

	errCh := make(chan error, 1)
	go func() {
		log.Info("grpc server listening", "address", ln.Addr().String())
		errCh <- gs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("grpc server: %w", err)
	case <-ctx.Done():
	}
	// Subscribe streams only end when their clients leave, so a graceful
	// stop gets a deadline before falling back to Stop.
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		gs.Stop()
	}
	return nil
}

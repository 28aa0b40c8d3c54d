// README: Entry point for the simulated dispatch backend.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hail/internal/config"
	"hail/internal/infra"
	"hail/internal/logger"
	"hail/internal/sim"
)

func main() {
	cfg := config.Load()
	lg := logger.New("dispatchd", cfg.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := infra.NewRedis(cfg.Sim.RedisAddr, cfg.Sim.RedisPassword)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	srv := sim.NewServer(redisClient, lg, cfg.Sync.AcceptWindow)
	go srv.RunDispatcher(ctx)

	server := &http.Server{Addr: cfg.Sim.Addr, Handler: srv.Router()}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	lg.Info("dispatch sim listening", logger.String("addr", cfg.Sim.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/consumer/worker"
	infraPkg "github.com/tnqbao/gau-compute-dispatcher/infra"
	"github.com/tnqbao/gau-compute-dispatcher/provision"
	"github.com/tnqbao/gau-compute-dispatcher/repository"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []provision.Option{
		provision.WithMetrics(provision.NewMetrics(prometheus.DefaultRegisterer)),
	}
	if infra.Redis != nil {
		opts = append(opts, provision.WithLaunchGuard(infraPkg.NewLaunchGuard(infra.Redis, cfg.EnvConfig.Consumer.DedupTTL)))
	}
	provisioner, err := provision.NewProvisioner(cfg.Provisioner, infra.EC2, infra.EC2, infra.Logger, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize provisioner: %v", err)
	}

	// Start Outbox Relay
	relay := worker.NewOutboxRelay(
		repo.OutboxRepo,
		infra.Produce.JobService,
		infra.Logger,
		cfg.EnvConfig.Consumer.RelaySchedule,
		cfg.EnvConfig.Consumer.RelayBatch,
	)
	if err := relay.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start outbox relay: %v", err)
		log.Fatalf("Failed to start outbox relay: %v", err)
	}

	// Start Job Consumer
	jobConsumer := worker.NewJobConsumer(infra.RabbitMQ.Channel, infra.Logger, cfg.EnvConfig.Consumer.Concurrency)
	jobConsumer.OnCreated(provisioner.OnJobCreated)
	if err := jobConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Job consumer: %v", err)
		log.Fatalf("Failed to start Job consumer: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.EnvConfig.Consumer.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			infra.Logger.ErrorWithContextf(ctx, err, "Metrics server stopped: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel() // Cancel context to stop consumers
	jobConsumer.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	if err := infra.RabbitMQ.Close(); err != nil {
		log.Printf("Failed to close RabbitMQ: %v", err)
	}
	if err := infra.Telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to flush telemetry: %v", err)
	}

	infra.Logger.InfoWithContextf(context.Background(), "Consumer exited properly")
}

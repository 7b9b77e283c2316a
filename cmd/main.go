package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/config"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/metrics"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/repository"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/server"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/service"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/spray"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/weather"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/pkg/broker"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.NewSugared(cfg.Log.Level)
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.Weather.APIKey == "" {
		log.Warn("WEATHER_API_KEY is empty; weather fetches will fail")
	}

	deps := service.Deps{
		Weather: weather.NewOWMClient(cfg.Weather, log.Desugar()),
		Metrics: metrics.New(reg),
	}

	if cfg.S3.Enabled {
		repo, err := repository.NewS3Repository(ctx, &cfg.S3, log.Desugar())
		if err != nil {
			log.Fatal("Failed to create S3 repository: ", err)
		}
		deps.Overlays = repo
	}

	if cfg.MQTT.Enabled {
		client, err := broker.Connect(ctx, broker.Config{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
		}, log.Desugar())
		if err != nil {
			log.Fatal("Failed to connect to MQTT: ", err)
		}
		deps.Publisher = spray.NewBusPublisher(broker.NewPublisher(client, cfg.MQTT.Topic, 1, log.Desugar()))
	}

	svc := service.NewAnalysisService(deps, cfg, log.Desugar())
	srv := server.New(cfg, log.Desugar(), svc, reg)

	go func() {
		log.Infof("Starting server on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

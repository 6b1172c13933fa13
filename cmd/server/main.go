package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhoini/Subscription-microservice/config"
	"github.com/Dhoini/Subscription-microservice/internal/api/rest"
	"github.com/Dhoini/Subscription-microservice/internal/app"
	"github.com/Dhoini/Subscription-microservice/internal/metrics"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("development")
		bootLog.Fatalw("Failed to load configuration", "error", err)
	}

	log := logger.New(cfg.App.Env)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	systemMetrics := metrics.NewSystemMetrics(promRegistry, log.Named("system"))
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Сборка компонентов приложения
	application, err := app.NewApp(ctx, cfg, promRegistry, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}
	defer application.Close()

	// Установка режима Gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(
		application.SubscriptionHandler,
		application.OwnerHandler,
		application.AuthMiddleware,
		promRegistry,
		log,
	)

	// Создание и запуск HTTP сервера
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalw("Server forced to shutdown", "error", err)
	}

	log.Infow("Server stopped gracefully")
}

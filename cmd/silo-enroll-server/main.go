package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/silo-enroll/internal/api/http"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	grpcserver "github.com/EternisAI/silo-enroll/internal/grpc/server"
	"github.com/EternisAI/silo-enroll/internal/metrics"
	"github.com/EternisAI/silo-enroll/internal/provisioning"
	"github.com/EternisAI/silo-enroll/internal/session"
	"github.com/EternisAI/silo-enroll/internal/tokens"
	"github.com/EternisAI/silo-enroll/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Silo Enroll Server", "version", AppVersion, "backend", config.Bsidca.Endpoint())

	if config.Bsidca.BaseURL == "" {
		slog.Error("bsidca.base_url is not configured")
		os.Exit(1)
	}
	if !config.Auth.Enabled() {
		slog.Warn("No API credentials configured, REST API will reject every request")
	}

	m := metrics.New()

	supervisor := session.NewSupervisor(config.Session, session.BackendDialer(config.Bsidca), m)
	supervisor.Start()

	provisioner := provisioning.NewService(supervisor, config.Provisioning)
	services := &internalhttp.Services{
		Enrollment: enrollment.NewService(supervisor, provisioner, config.Enrollment, m),
		Tokens:     tokens.NewService(supervisor, m),
		Users:      users.NewService(supervisor),
		Pinger:     supervisor,
		Metrics:    m,
		Auth:       config.Auth,
	}

	grpcSrv, err := grpcserver.NewServer(config.Grpc, supervisor)
	if err != nil {
		slog.Error("Failed to create gRPC server", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  config.Http.CORS.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        config.Http.CORS.MaxAge,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, config.Http, services)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Http.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := grpcSrv.Start(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcSrv.StopWithTimeout(shutdownTimeout); err != nil {
			slog.Error("gRPC server shutdown error", "error", err)
		}
	}()

	wg.Wait()

	supervisor.Stop()
	slog.Info("Shutdown complete")
}

package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ecoshare/internal/config"
	"ecoshare/internal/di"
)

func main() {
	cfg := config.LoadConfig()

	app, cleanup, err := di.InitializeChatServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize chat service: %v", err)
	}
	defer cleanup()
	logger := app.Log

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.ChatHTTPPort),
		Handler:      app.Router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(loggingUnaryInterceptor(logger)),
		grpc.StreamInterceptor(loggingStreamInterceptor(logger)),
	)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, cfg.Server.ChatHealthPort))
	if err != nil {
		logger.Fatal("health_listen_failed", zap.String("port", cfg.Server.ChatHealthPort), zap.Error(err))
	}

	go func() {
		logger.Info("grpc_health_listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc_serve_failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("http_listening", zap.String("addr", httpServer.Addr))
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_failed", zap.Error(err))
			healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("chat_service_stopped")
}

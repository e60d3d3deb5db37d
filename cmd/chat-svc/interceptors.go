package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func loggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{},
		info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{zap.String("method", info.FullMethod), zap.Duration("took", time.Since(start))}
		if err != nil {
			logger.Warn("grpc_call_failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("grpc_call", fields...)
		}
		return resp, err
	}
}

func loggingStreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, stream grpc.ServerStream,
		info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {

		logger.Debug("grpc_stream_started", zap.String("method", info.FullMethod))
		err := handler(srv, stream)

		if err != nil {
			logger.Warn("grpc_stream_failed", zap.String("method", info.FullMethod), zap.Error(err))
		} else {
			logger.Debug("grpc_stream_completed", zap.String("method", info.FullMethod))
		}
		return err
	}
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"aws-sqs-helper/configs"
	"aws-sqs-helper/internal/app/monitor"
	"aws-sqs-helper/internal/pkg/cache"
	redisCache "aws-sqs-helper/internal/pkg/cache/redis"
	httpServer "aws-sqs-helper/internal/pkg/http"
	"aws-sqs-helper/internal/pkg/k8s"
	"aws-sqs-helper/internal/pkg/logger"
	"aws-sqs-helper/internal/pkg/observability/metrics"
	sqsHelper "aws-sqs-helper/internal/pkg/queue/sqs"
)

func main() {
	cfg, err := configs.Parse()
	if err != nil {
		panic(err)
	}

	if err := logger.Setup(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()

	metrics.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := sqsHelper.NewClient(ctx, sqsHelper.ClientConfig{
		Region:   cfg.AwsRegion,
		Endpoint: cfg.SqsEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to create SQS client", zap.Error(err))
	}

	helper, err := sqsHelper.New(logger.L(), client)
	if err != nil {
		logger.Fatal("Failed to create SQS helper", zap.Error(err))
	}

	var cacheClient cache.Client
	if cfg.CacheRedisEndpoint != "" {
		rdb := redisCache.NewClient(cfg.CacheRedisEndpoint, cfg.CacheRedisDB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cacheClient = &redisCache.RedisRepository{Client: rdb}
	}

	var k8sClient *k8s.Client
	if cfg.LeaderElectionEnabled {
		k8sClient, err = k8s.NewClient()
		if err != nil {
			logger.Fatal("Failed to create Kubernetes client", zap.Error(err))
		}
	}

	httpServer.StartHTTPServer(ctx, cfg.HttpAddr)

	m := &monitor.QueueMonitor{
		Queue:     helper,
		Cache:     cacheClient,
		K8sClient: k8sClient,
		Config:    cfg,
	}
	if err := m.Start(ctx); err != nil {
		logger.Fatal("Failed to start queue monitor", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")
}

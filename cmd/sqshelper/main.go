package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aws-sqs-helper/configs"
	"aws-sqs-helper/internal/app/cli"
	"aws-sqs-helper/internal/pkg/cache"
	redisCache "aws-sqs-helper/internal/pkg/cache/redis"
	"aws-sqs-helper/internal/pkg/logger"
	"aws-sqs-helper/internal/pkg/queue"
	sqsHelper "aws-sqs-helper/internal/pkg/queue/sqs"
)

func main() {
	cfg, err := configs.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := logger.Setup(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Deps{
		Config:   cfg,
		NewQueue: newQueue,
		NewCache: newCache,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func newQueue(ctx context.Context, cfg *configs.Config) (queue.Client, error) {
	client, err := sqsHelper.NewClient(ctx, sqsHelper.ClientConfig{
		Region:   cfg.AwsRegion,
		Endpoint: cfg.SqsEndpoint,
	})
	if err != nil {
		return nil, err
	}
	helper, err := sqsHelper.New(logger.L(), client)
	if err != nil {
		return nil, err
	}
	return helper, nil
}

func newCache(_ context.Context, cfg *configs.Config) (cache.Client, error) {
	return &redisCache.RedisRepository{
		Client: redisCache.NewClient(cfg.CacheRedisEndpoint, cfg.CacheRedisDB),
	}, nil
}

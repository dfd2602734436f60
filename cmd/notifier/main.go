package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wyfcoding/loancollateral/internal/notifier/application"
	"github.com/wyfcoding/loancollateral/internal/notifier/domain"
	"github.com/wyfcoding/loancollateral/internal/notifier/infrastructure/sender"
	"github.com/wyfcoding/loancollateral/pkg/config"
	"github.com/wyfcoding/loancollateral/pkg/logger"
	"github.com/wyfcoding/loancollateral/pkg/mq"
)

var configPath = flag.String("config", "configs/notifier/config.toml", "config file path")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producer, err := mq.NewProducer(cfg.Kafka)
	if err != nil {
		logger.Fatal(ctx, "failed to create kafka producer", "error", err)
	}
	defer producer.Close()

	dlq := mq.NewDeadLetterQueue(producer, cfg.DeadLetterTopic)
	senders := map[domain.Channel]domain.Sender{
		domain.ChannelEmail: sender.NewMockEmailSender(),
		domain.ChannelSMS:   sender.NewMockSMSSender(),
	}
	dispatcher := application.NewDispatcher(senders, dlq)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "shutting down notifier...")
		cancel()
	}()

	logger.Info(ctx, "notifier starting", "topics", domain.Topics(), "group_id", cfg.Kafka.GroupID)
	if err := dispatcher.Run(ctx, cfg.Kafka); err != nil {
		logger.Error(ctx, "notifier exited with error", "error", err)
	}
}

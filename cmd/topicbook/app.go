package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/books"
	"github.com/mohammad-safakhou/topicbook/internal/llm"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/mohammad-safakhou/topicbook/internal/pipeline"
	"github.com/mohammad-safakhou/topicbook/internal/queue/streams"
	"github.com/mohammad-safakhou/topicbook/internal/sources"
	"github.com/mohammad-safakhou/topicbook/internal/synthesis"
	"github.com/mohammad-safakhou/topicbook/internal/task"
	"github.com/mohammad-safakhou/topicbook/internal/task/redisbus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app holds what every command shares.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *books.Store
}

func loadApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.General.LogLevel, cfg.General.LogFormat)
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  books.NewStore(cfg.Storage.OutputDir, logger),
	}, nil
}

// engine wires sources, the language model and the store into a pipeline.
func (a *app) engine() (*pipeline.Engine, error) {
	collector, err := sources.FromConfig(a.cfg.Sources, a.logger)
	if err != nil {
		return nil, fmt.Errorf("sources: %w", err)
	}
	pcfg, err := a.cfg.LLM.Active()
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(pcfg)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return pipeline.New(collector, synthesis.New(provider, a.logger), a.store, pipeline.OptionsFromConfig(a.cfg.Pipeline), a.logger), nil
}

func (a *app) redis(ctx context.Context) (*redis.Client, error) {
	rc := a.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr(), Password: rc.Password, DB: rc.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", rc.Addr(), err)
	}
	return rdb, nil
}

func schemaRegistry() (*streams.SchemaRegistry, error) {
	reg := streams.NewSchemaRegistry()
	if err := streams.RegisterTaskSchemas(reg); err != nil {
		return nil, fmt.Errorf("register task schemas: %w", err)
	}
	return reg, nil
}

// registry builds the task registry. When redis is enabled the returned
// sink must be run and closed by the caller.
func (a *app) registry(ctx context.Context, runner task.Runner) (*task.Registry, *redisbus.Sink, func(), error) {
	opts := []task.Option{
		task.WithLogger(a.logger),
		task.WithMaxConcurrent(a.cfg.Pipeline.MaxConcurrentTasks),
		task.WithTaskTimeout(a.cfg.General.TaskTimeout),
	}
	cleanup := func() {}
	var sink *redisbus.Sink
	if a.cfg.Storage.Redis.Enabled {
		rdb, err := a.redis(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		schemas, err := schemaRegistry()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, nil, err
		}
		rc := a.cfg.Storage.Redis
		sink = redisbus.NewSink(streams.NewPublisher(rdb, schemas), rdb, redisbus.Config{
			Stream:    rc.Stream,
			MaxLen:    rc.StreamMaxLen,
			ResultTTL: rc.ResultTTL,
		}, a.logger)
		opts = append(opts, task.WithListener(sink))
		cleanup = func() { _ = rdb.Close() }
	}
	return task.NewRegistry(runner, opts...), sink, cleanup, nil
}

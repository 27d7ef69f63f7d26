package main

import (
	"context"
	"fmt"
	"time"

	"newsdesk/api"
	"newsdesk/common"
	"newsdesk/config"
	"newsdesk/connectors"
	"newsdesk/deduplication"
	"newsdesk/drafting"
	"newsdesk/editorial"
	"newsdesk/evaluator"
	"newsdesk/intake"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/monitor"
	"newsdesk/orchestrator"
	"newsdesk/providers"
	"newsdesk/publisher"
	"newsdesk/shared/kafka"
	"newsdesk/store"
	"newsdesk/verification"
	"newsdesk/worker"
)

// app holds every long-lived component of the server.
type app struct {
	log       *logger.Logger
	store     *store.Store
	bloom     *deduplication.RedisBloom
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	runner    *orchestrator.Runner
	scheduler *orchestrator.Scheduler
	server    *api.Server
}

func newApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*app, error) {
	a := &app{log: log}

	s, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.store = s

	policy := providers.PolicyFromConfig(cfg.Providers)
	search := providers.NewHTTPSearch(cfg.Providers.Search.Endpoint, cfg.Providers.Search.APIKey)
	if cfg.Providers.Search.Endpoint == "" {
		log.Warn("no search endpoint configured; verification and monitoring searches will fail")
	}
	notifier := newNotifier(cfg.Providers.Mail, log)
	writer := newWriter(cfg.Providers, policy, log)

	// intake
	var seen deduplication.SeenFilter
	if bc := deduplication.BloomConfigFrom(cfg.Redis); bc != nil {
		bloom, err := deduplication.NewRedisBloomWithLogger(*bc, log)
		if err != nil {
			log.Warn("redis bloom unavailable, falling back to store lookups", "error", err)
		} else {
			a.bloom = bloom
			seen = bloom
		}
	}
	dedup := deduplication.NewWithFilter(cfg.Pipeline.DedupThreshold, seen)
	manual := connectors.NewManualQueue()
	in := intake.New(s, dedup, newConnectors(cfg, manual, log), cfg.Pipeline.DedupWindow, log)

	// scoring, verification and drafting
	l := ledger.New(s, cfg.Pipeline.LedgerHalfLife, log)
	verifyPool := worker.NewPool(config.StageVerify, cfg.Pipeline.Workers, log)
	draftPool := worker.NewPool(config.StageDraft, cfg.Pipeline.Workers, log)
	eval := evaluator.New(s, evaluator.NewHeuristicScorer(cfg.Coverage), l, worker.Cancellers{verifyPool, draftPool}, cfg.Pipeline, log)
	verifier := verification.New(s, search, l, verifyPool, policy, cfg.Pipeline, log)
	machine := editorial.New(s, notifier, cfg.Pipeline, cfg.Providers.Mail.Editors, log)
	drafter := drafting.New(s, machine, writer, draftPool, cfg.Pipeline, cfg.Coverage, log)

	// publication and monitoring
	var (
		archive publisher.Archiver
		events  publisher.Emitter
	)
	if cfg.Archive.Bucket != "" {
		s3, err := common.NewS3(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		archive = common.NewArticleArchive(s3, cfg.Archive)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, log)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.producer = p
		events = p
	}
	pub := publisher.New(s, machine, archive, events, cfg.Pipeline, log)
	mon := monitor.New(s, search, notifier, archive, events, policy, cfg.Pipeline, cfg.Providers.Mail.Editors, log)

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.CommandsTopic != "" {
		c, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CommandsTopic,
			GroupID: cfg.Kafka.GroupID,
			Handler: machine.CommandHandler(log),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		a.consumer = c
	}

	// stages
	state := orchestrator.NewManager()
	a.runner = orchestrator.NewRunner(state, log)
	sched := func(stage string) string { return cfg.Schedules[stage] }

	a.runner.Register(config.StageIntake, sched(config.StageIntake), func(ctx context.Context, last time.Time) (any, error) {
		since := time.Now().Add(-cfg.Pipeline.DedupWindow)
		if last.After(since) {
			since = last
		}
		return in.Run(ctx, since)
	})
	a.runner.Register(config.StageEvaluate, sched(config.StageEvaluate), func(ctx context.Context, _ time.Time) (any, error) {
		return eval.Run(ctx)
	})
	a.runner.Register(config.StageVerify, sched(config.StageVerify), func(ctx context.Context, _ time.Time) (any, error) {
		return verifier.Run(ctx)
	})
	a.runner.Register(config.StageDraft, sched(config.StageDraft), func(ctx context.Context, _ time.Time) (any, error) {
		return drafter.Run(ctx)
	})
	a.runner.Register(config.StageReplies, sched(config.StageReplies), func(ctx context.Context, _ time.Time) (any, error) {
		n, err := machine.ExpireReplies(ctx)
		return map[string]int{"expired": n}, err
	})
	a.runner.Register(config.StagePublish, sched(config.StagePublish), func(ctx context.Context, _ time.Time) (any, error) {
		return pub.Run(ctx)
	})
	a.runner.Register(config.StageMonitor, sched(config.StageMonitor), func(ctx context.Context, _ time.Time) (any, error) {
		return mon.Run(ctx)
	})
	a.scheduler = orchestrator.NewScheduler(a.runner)

	a.server = api.NewServer(api.Deps{
		Review:      machine,
		Flags:       mon,
		Topics:      eval,
		Credibility: l,
		Stages:      a.runner,
		Manual:      manual,
		Counts:      s,
		Log:         log,
	}, cfg.Server.Port)
	return a, nil
}

func (a *app) start(ctx context.Context) error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer did not start; commands are accepted over http only", "error", err)
		}
	}
	a.server.Start()
	return nil
}

// shutdown stops intake of new work first, then waits for running stages.
func (a *app) shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("api shutdown", "error", err)
	}
	select {
	case <-a.scheduler.Stop().Done():
	case <-ctx.Done():
	}
	a.runner.Close()
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.log.Error("kafka consumer close", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Error("kafka producer close", "error", err)
		}
	}
	if a.bloom != nil {
		_ = a.bloom.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("store close", "error", err)
	}
}

func newNotifier(cfg config.MailConfig, log *logger.Logger) providers.Notifier {
	if cfg.Endpoint == "" {
		log.Warn("no mail endpoint configured; notifications are logged only")
		return providers.NewLogNotifier(log)
	}
	return providers.NewMailNotifier(cfg.Endpoint, cfg.APIKey, cfg.From, log)
}

func newWriter(cfg config.ProvidersConfig, policy providers.RetryPolicy, log *logger.Logger) drafting.Writer {
	if cfg.Cohere.APIKey == "" {
		log.Warn("no cohere api key; drafts use the template writer")
		return drafting.TemplateWriter{}
	}
	return drafting.NewLLMWriter(providers.NewCohereGenerator(cfg.Cohere.APIKey, cfg.Cohere.Model), policy)
}

func newConnectors(cfg config.Config, manual *connectors.ManualQueue, log *logger.Logger) []connectors.Connector {
	extractor := connectors.NewExtractor(cfg.Pipeline.Workers, log)
	conns := []connectors.Connector{manual}
	for _, feed := range cfg.Feeds {
		conns = append(conns, connectors.NewRSSConnector(feed, extractor))
	}
	if cfg.Providers.Social.Endpoint != "" {
		conns = append(conns, connectors.NewSocialConnector("social", cfg.Providers.Social.Endpoint))
	}
	return conns
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soonlist/soonlist-backend/config"
	"github.com/soonlist/soonlist-backend/database"
	"github.com/soonlist/soonlist-backend/internal/ai"
	"github.com/soonlist/soonlist-backend/internal/analytics"
	"github.com/soonlist/soonlist-backend/internal/auditlog"
	"github.com/soonlist/soonlist-backend/internal/background"
	"github.com/soonlist/soonlist-backend/internal/event"
	"github.com/soonlist/soonlist-backend/internal/notification"
	"github.com/soonlist/soonlist-backend/internal/pipeline"
	"github.com/soonlist/soonlist-backend/internal/publisher"
	"github.com/soonlist/soonlist-backend/internal/readability"
	"github.com/soonlist/soonlist-backend/internal/tracing"
	"github.com/soonlist/soonlist-backend/internal/upload"
	"github.com/soonlist/soonlist-backend/utils"
)

const serviceName = "soonlist-backend"

var errUploadsDisabled = errors.New("image uploads are not configured")

type disabledUploader struct{}

func (disabledUploader) UploadBase64(context.Context, string, string) (string, error) {
	return "", errUploadsDisabled
}

// app owns every long lived client so serve can close them in order.
type app struct {
	cfg   *config.Config
	sqlDB *sql.DB
	db    *gorm.DB
	rdb   *redis.Client

	traces    *tracing.Provider
	pool      *background.Pool
	publisher publisher.Publisher
	tracker   analytics.Tracker

	auditSvc auditlog.Service
	events   *event.Service
	tokens   notification.Repository
	pipeline *pipeline.Service
}

// newGeneration builds the pieces shared by serve and extract: the model
// client behind the tracer, the prompt catalogue and the page reader.
func newGeneration(ctx context.Context, cfg *config.Config) (*ai.Generator, *ai.PromptProvider, *readability.Client, *tracing.Provider, error) {
	var tracer tracing.Tracer = tracing.Noop{}
	var traces *tracing.Provider
	if cfg.LangfusePublicKey != "" && cfg.LangfuseSecretKey != "" {
		p, err := tracing.NewProvider(ctx, tracing.Config{
			Endpoint:    cfg.LangfuseHost,
			PublicKey:   cfg.LangfusePublicKey,
			SecretKey:   cfg.LangfuseSecretKey,
			ServiceName: serviceName,
			Environment: cfg.Env,
		})
		if err != nil {
			log.WithError(err).Warn("⚠️ tracing disabled")
		} else {
			traces = p
			tracer = p.Tracer()
		}
	}

	client := ai.NewClient(ai.ClientConfig{
		APIKey:         cfg.OpenRouterAPIKey,
		BaseURL:        cfg.OpenRouterBaseURL,
		Model:          cfg.Model,
		FallbackModels: cfg.FallbackModels,
		Timeout:        cfg.ModelTimeout,
	})
	prompts, err := ai.NewPromptProvider(time.Now)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return ai.NewGenerator(client, tracer), prompts, readability.New(cfg.ReadabilityURL, 20*time.Second), traces, nil
}

func newApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	a := &app{cfg: cfg}

	sqlDB, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	a.sqlDB = sqlDB
	if migrate {
		if err := database.Migrate(sqlDB, cfg.DBName); err != nil {
			return nil, err
		}
	}
	if a.db, err = database.Connect(sqlDB, !cfg.IsProduction()); err != nil {
		return nil, err
	}

	if a.rdb, err = utils.InitRedis(ctx, cfg); err != nil {
		log.WithError(err).Warn("⚠️ Redis unavailable, capture counts come from the database")
	}

	fb, err := utils.InitFirebase(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("⚠️ continuing without Firebase (push notifications and uploads disabled)")
	}

	gen, prompts, reader, traces, err := newGeneration(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.traces = traces

	a.publisher = publisher.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = publisher.NewKafkaPublisher(publisher.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaTopic)
		log.WithField("brokers", cfg.KafkaBrokers).Info("✅ Kafka publisher ready")
	}

	a.tracker = analytics.Noop{}
	if cfg.PostHogAPIKey != "" {
		client, err := analytics.NewPostHogClient(cfg.PostHogAPIKey, cfg.PostHogEndpoint)
		if err != nil {
			log.WithError(err).Warn("⚠️ analytics disabled")
		} else {
			a.tracker = analytics.NewPostHogTracker(client)
		}
	}

	a.auditSvc = auditlog.NewService(auditlog.NewRepository(a.db))
	a.events = event.NewService(event.NewRepository(a.db), a.auditSvc)
	a.tokens = notification.NewRepository(a.db)
	a.pool = background.NewPool(cfg.BackgroundTimeout)

	deps := pipeline.Deps{
		Generator: gen,
		Prompts:   prompts,
		Fetcher:   reader,
		Uploader:  disabledUploader{},
		Events:    a.events,
		Publisher: a.publisher,
		Tracker:   a.tracker,
		Runner:    a.pool,
	}
	if fb.StorageEnabled() {
		deps.Uploader = upload.NewUploader(upload.NewBucketStore(fb.Bucket, cfg.StorageBucket, cfg.ImageCDNURL))
	}
	deps.Counter = notification.NewDBCounter(a.events.CountCapturedSince, time.Now)
	if a.rdb != nil {
		deps.Counter = notification.FallbackCounter{
			Primary:   notification.NewRedisCounter(a.rdb, time.Now),
			Secondary: deps.Counter,
		}
	}
	if fb.FCMEnabled() {
		deps.Notifier = notification.NewDispatcher(a.tokens, notification.NewFCMSender(fb.Messaging), cfg.AppURL)
	}
	a.pipeline = pipeline.NewService(deps)
	return a, nil
}

// Close drains background work first so queued publishes and captures still
// have their clients.
func (a *app) Close(ctx context.Context) {
	if a.pool != nil {
		if err := a.pool.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("background tasks cancelled at shutdown")
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.WithError(err).Warn("kafka writer close failed")
		}
	}
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			log.WithError(err).Warn("analytics close failed")
		}
	}
	if a.traces != nil {
		a.traces.Shutdown(ctx)
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
}

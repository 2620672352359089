// Package bootstrap wires the conversion pipeline from configuration. The
// API server and the reconcile worker share it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"toonify/internal/adapter/repo"
	"toonify/internal/adapter/sqlite"
	"toonify/internal/domain"
	"toonify/internal/events"
	"toonify/internal/infra"
	"toonify/internal/infra/credentials"
	"toonify/internal/pipeline"
	"toonify/internal/providers/qwen"
	"toonify/internal/providers/replicate"
	"toonify/internal/providers/wan"
	"toonify/internal/storage"
)

// Runtime holds the wired pipeline and the resources behind it.
type Runtime struct {
	Service *pipeline.Service
	Stale   domain.StaleLister
	// Served is non-nil when objects live on local disk and must be served
	// by the API under /objects.
	Served http.Handler
	// Ping reports whether the backing database answers.
	Ping func(ctx context.Context) error

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *Runtime) onClose(fn func()) {
	r.closers = append(r.closers, fn)
}

// Build opens storage and provider clients for cfg. Callers must Close the
// runtime, including when Build returns an error alongside it.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Runtime, error) {
	rt := &Runtime{}

	var (
		credits domain.CreditLedger
		history domain.TransformRepository
		keys    *credentials.Store
	)
	if cfg.UsesSQLite() {
		store, err := sqlite.Open(cfg.SQLitePath(), *logger)
		if err != nil {
			return rt, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.onClose(func() { _ = store.Close() })
		credits, history, rt.Stale = store, store, store
		rt.Ping = store.Ping
	} else {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return rt, fmt.Errorf("connect database: %w", err)
		}
		rt.onClose(pool.Close)
		rt.Ping = pool.Ping
		runner := infra.NewSQLRunner(pool, *logger)
		transforms := repo.NewTransformRepository(runner)
		credits = repo.NewCreditLedger(runner)
		history, rt.Stale = transforms, transforms
		keys = credentials.NewStore(runner)
	}

	replicateToken, err := keys.Resolve(ctx, credentials.ProviderReplicate, cfg.ReplicateAPIToken)
	if err != nil {
		return rt, fmt.Errorf("resolve replicate token: %w", err)
	}
	dashscopeKey, err := keys.Resolve(ctx, credentials.ProviderDashScope, cfg.DashScopeAPIKey)
	if err != nil {
		return rt, fmt.Errorf("resolve dashscope key: %w", err)
	}
	if replicateToken == "" || dashscopeKey == "" {
		logger.Warn().
			Bool("replicate", replicateToken != "").
			Bool("dashscope", dashscopeKey != "").
			Msg("provider credentials missing; conversions will fail")
	}

	transfer, err := replicate.NewClient(replicate.Options{
		APIToken: replicateToken,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   logger,
	})
	if err != nil {
		return rt, fmt.Errorf("init replicate client: %w", err)
	}
	prompts, err := qwen.NewClient(qwen.Options{
		APIKey: dashscopeKey,
		Region: cfg.DashScopeRegion,
		Model:  cfg.QwenVLModel,
		Logger: logger,
	})
	if err != nil {
		return rt, fmt.Errorf("init qwen client: %w", err)
	}
	video, err := wan.NewClient(wan.Options{
		APIKey:      dashscopeKey,
		Region:      cfg.DashScopeRegion,
		Model:       cfg.WanModel,
		MaxAttempts: cfg.WanMaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		return rt, fmt.Errorf("init wan client: %w", err)
	}

	objects, err := openObjects(cfg, rt)
	if err != nil {
		return rt, err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		conn, err := events.Dial(ctx, cfg.AMQPURL, logger)
		if err != nil {
			return rt, fmt.Errorf("connect amqp: %w", err)
		}
		rt.onClose(func() { _ = conn.Close() })
		amqpPub, err := events.NewAMQPPublisher(conn, cfg.AMQPExchange, logger)
		if err != nil {
			return rt, fmt.Errorf("declare exchange: %w", err)
		}
		rt.onClose(func() { _ = amqpPub.Close() })
		publisher = amqpPub
	}

	rt.Service = pipeline.New(pipeline.Options{
		Credits:  credits,
		History:  history,
		Transfer: transfer,
		Prompts:  prompts,
		Video:    video,
		Relay:    storage.NewRelayer(objects, nil, logger),
		Uploads:  objects,
		Events:   publisher,
		Logger:   logger,
	})
	return rt, nil
}

func openObjects(cfg *infra.Config, rt *Runtime) (storage.ObjectStore, error) {
	if cfg.StorageDriver == "s3" {
		s3, err := storage.NewS3Store(storage.S3Options{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			UseSSL:        cfg.S3UseSSL,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return s3, nil
	}
	fs, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, []byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("init file storage: %w", err)
	}
	rt.Served = fs
	return fs, nil
}

// Package bootstrap wires the sampling engine, worker pool and batch service
// from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/video-sampler/internal/batch"
	"github.com/maauso/video-sampler/internal/config"
	"github.com/maauso/video-sampler/internal/media"
	"github.com/maauso/video-sampler/internal/sampler"
	"github.com/maauso/video-sampler/internal/storage"
	"github.com/maauso/video-sampler/internal/worker"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Queue     *worker.Queue
	Pool      *worker.Pool
	Batches   *batch.Service
	Publisher storage.Publisher

	logger   *slog.Logger
	consumed chan error
}

// Option customizes NewDependencies.
type Option func(*options)

type options struct {
	builder  media.Builder
	observer batch.Observer
}

// WithBuilder replaces the ffmpeg-backed pipeline builder.
func WithBuilder(b media.Builder) Option {
	return func(o *options) {
		o.builder = b
	}
}

// WithObserver is notified after every row update.
func WithObserver(fn batch.Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	publisher, err := initPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	builder := o.builder
	if builder == nil {
		builder = media.NewFFmpegBuilder(cfg.FFmpegPath,
			media.WithFFprobePath(cfg.FFprobePath),
			media.WithWaitTimeout(cfg.PipelineTimeout),
		)
	}
	executor := sampler.NewExecutor(builder, logger, sampler.WithPublisher(publisher))

	queue := worker.NewQueue()
	pool := worker.NewPool(queue, executor, logger,
		worker.WithSize(cfg.Workers),
		worker.WithSeed(cfg.RandomSeed),
	)

	var svcOpts []batch.ServiceOption
	if o.observer != nil {
		svcOpts = append(svcOpts, batch.WithObserver(o.observer))
	}
	svc := batch.NewService(batch.NewMemoryRepository(), queue, logger, svcOpts...)

	return &Dependencies{
		Queue:     queue,
		Pool:      pool,
		Batches:   svc,
		Publisher: publisher,
		logger:    logger,
		consumed:  make(chan error, 1),
	}, nil
}

// Start launches the workers and the progress consumer.
func (d *Dependencies) Start(ctx context.Context) {
	d.Pool.Start(ctx)
	go func() {
		d.consumed <- d.Batches.Consume(ctx, d.Pool.Events())
	}()
}

// Drain stops accepting tasks, lets the workers finish every queued task
// and waits until all progress has been applied or ctx is done.
func (d *Dependencies) Drain(ctx context.Context) error {
	d.Queue.Close()
	select {
	case err := <-d.consumed:
		return err
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}

// initPublisher mirrors samples to S3 when configured and otherwise only
// confirms the local file.
func initPublisher(cfg *config.Config, logger *slog.Logger) (storage.Publisher, error) {
	if cfg.S3Enabled() {
		pub, err := storage.NewS3Publisher(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 publisher: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return pub, nil
	}

	logger.Info("local publishing configured")
	return storage.NewLocalPublisher(), nil
}

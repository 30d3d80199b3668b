package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/video-sampler/internal/sampler"
	"github.com/maauso/video-sampler/internal/worker"
)

var (
	// ErrInvalidRequest is returned when a submission fails validation.
	ErrInvalidRequest = errors.New("invalid batch request")
	// ErrTargetNotDir is returned when the output target is not an existing directory.
	ErrTargetNotDir = errors.New("target is not a directory")
	// ErrNoSources is returned when a submission lists no source files.
	ErrNoSources = errors.New("no source files")
)

// failedMessage is stored on rows whose task failed. The cause is logged
// by the worker that ran it.
const failedMessage = "sampling failed"

// Request is one batch submission.
type Request struct {
	Prefix  string   `validate:"required,excludesall=/\\"`
	Height  int      `validate:"min=1,max=8192"`
	Samples int      `validate:"min=1,max=1000"`
	Target  string   `validate:"required"`
	Sources []string `validate:"min=1,dive,required"`
}

// Enqueuer accepts tasks for execution.
type Enqueuer interface {
	Push(task sampler.Task) error
}

// Observer is notified after every row update.
type Observer func(batchID string, row Row)

// Service submits batches as sampling tasks and applies the resulting
// progress events to their rows.
type Service struct {
	repo     Repository
	queue    Enqueuer
	logger   *slog.Logger
	validate *validator.Validate
	observer Observer

	mu      sync.Mutex
	nextRef int
	refs    map[int]string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithObserver registers fn to be called after every row update.
func WithObserver(fn Observer) ServiceOption {
	return func(s *Service) {
		s.observer = fn
	}
}

// NewService creates a new Service.
func NewService(repo Repository, queue Enqueuer, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:     repo,
		queue:    queue,
		logger:   logger,
		validate: validator.New(),
		refs:     make(map[int]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req, records one queued row per source and enqueues the
// tasks. Sources are ordered by base name; a row's Index is its position in
// that order and its RefIdx is unique across every batch of this service.
func (s *Service) Submit(ctx context.Context, req Request) (*Batch, error) {
	if len(req.Sources) == 0 {
		return nil, ErrNoSources
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	info, err := os.Stat(req.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTargetNotDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotDir, req.Target)
	}

	sources := slices.Clone(req.Sources)
	slices.SortStableFunc(sources, func(a, b string) int {
		return strings.Compare(filepath.Base(a), filepath.Base(b))
	})

	b := New(req.Prefix, req.Height, req.Samples, req.Target)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, src := range sources {
		ref := s.nextRef
		s.nextRef++
		s.refs[ref] = b.ID
		b.AddRow(ref, i, filepath.Base(src), src)
	}

	s.logger.Info("submitting batch",
		slog.String("batch_id", b.ID),
		slog.String("prefix", b.Prefix),
		slog.Int("height", b.Height),
		slog.Int("samples", b.Samples),
		slog.String("target", b.Target),
		slog.Int("sources", len(sources)),
	)

	if err := s.repo.Save(ctx, b); err != nil {
		s.forget(b)
		return nil, fmt.Errorf("save batch: %w", err)
	}

	for _, row := range b.Clone().Rows {
		task := sampler.Task{
			Prefix:  b.Prefix,
			Height:  b.Height,
			Samples: b.Samples,
			Target:  b.Target,
			Index:   row.Index,
			Source:  row.Source,
			RefIdx:  row.RefIdx,
		}
		if err := s.queue.Push(task); err != nil {
			s.abandon(ctx, b, row.Index)
			return nil, fmt.Errorf("enqueue %s: %w", row.Name, err)
		}
	}

	return b.Clone(), nil
}

// abandon fails every row from index on after an enqueue failure.
// Callers hold mu.
func (s *Service) abandon(ctx context.Context, b *Batch, from int) {
	for _, row := range b.Clone().Rows[from:] {
		if _, err := b.Fail(row.RefIdx, "not enqueued"); err != nil {
			continue
		}
		delete(s.refs, row.RefIdx)
	}
	if err := s.repo.Save(ctx, b); err != nil {
		s.logger.Error("failed to save abandoned batch",
			slog.String("batch_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}

// forget drops the refs of b. Callers hold mu.
func (s *Service) forget(b *Batch) {
	for _, row := range b.Rows {
		delete(s.refs, row.RefIdx)
	}
}

// GetBatch retrieves a batch by ID.
func (s *Service) GetBatch(ctx context.Context, id string) (*Batch, error) {
	return s.repo.FindByID(ctx, id)
}

// ListBatches returns every batch, oldest first.
func (s *Service) ListBatches(ctx context.Context) ([]*Batch, error) {
	return s.repo.List(ctx)
}

// Consume applies progress events to their rows until events is closed or
// ctx is done. It must be the only consumer of events.
func (s *Service) Consume(ctx context.Context, events <-chan worker.ProgressEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.apply(ctx, ev)
		}
	}
}

func (s *Service) apply(ctx context.Context, ev worker.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID, ok := s.refs[ev.RefIdx]
	if !ok {
		s.logger.Warn("dropping progress for unknown task",
			slog.Int("ref_idx", ev.RefIdx),
			slog.Float64("progress", ev.Progress),
			slog.Bool("failed", ev.Failed),
		)
		return
	}

	b, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		s.logger.Error("failed to load batch",
			slog.String("batch_id", batchID),
			slog.Int("ref_idx", ev.RefIdx),
			slog.String("error", err.Error()),
		)
		return
	}

	var row Row
	if ev.Failed {
		row, err = b.Fail(ev.RefIdx, failedMessage)
	} else {
		row, err = b.Advance(ev.RefIdx, ev.Progress)
	}
	if err != nil {
		s.logger.Warn("ignoring progress event",
			slog.String("batch_id", batchID),
			slog.Int("ref_idx", ev.RefIdx),
			slog.String("status", string(row.Status)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.repo.Save(ctx, b); err != nil {
		s.logger.Error("failed to save batch",
			slog.String("batch_id", batchID),
			slog.String("error", err.Error()),
		)
		return
	}
	if row.IsTerminal() {
		delete(s.refs, ev.RefIdx)
	}
	if s.observer != nil {
		s.observer(batchID, row)
	}
}

// Package main provides the video sampler command line tool.
//
// Usage:
//
//	sampler [-prefix P] [-height H] [-samples N] [-target DIR] FILE...
//
// Every FILE becomes one task; samples are written to DIR as
// P-<index>-<MM>-<SS>-<mmm>.png. The exit status is 1 if any task failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/maauso/video-sampler/internal/batch"
	"github.com/maauso/video-sampler/internal/bootstrap"
	"github.com/maauso/video-sampler/internal/config"
)

var (
	errPrefixRequired = errors.New("a non-empty -prefix is required")
	errNoFiles        = errors.New("at least one input file is required")
	errTasksFailed    = errors.New("one or more tasks failed")
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command line settings.
type options struct {
	Prefix  string
	Height  int
	Samples int
	Target  string
	Files   []string
}

// parseArgs parses args with defaults taken from cfg.
func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	opts := options{}
	fs := flag.NewFlagSet("sampler", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sampler [-prefix P] [-height H] [-samples N] [-target DIR] FILE...")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.Prefix, "prefix", cfg.DefaultPrefix, "Output file name prefix (required)")
	fs.IntVar(&opts.Height, "height", cfg.DefaultHeight, "Output height in pixels; width keeps the aspect ratio")
	fs.IntVar(&opts.Samples, "samples", cfg.DefaultSamples, "Number of frames sampled from each file")
	fs.StringVar(&opts.Target, "target", cfg.DefaultTargetDir, "Existing output directory")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.Files = fs.Args()

	if opts.Prefix == "" {
		return options{}, errPrefixRequired
	}
	if len(opts.Files) == 0 {
		return options{}, errNoFiles
	}
	return opts, nil
}

func run(args []string, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := parseArgs(args, cfg, stderr)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	bar := progressbar.NewOptions(opts.Samples*len(opts.Files),
		progressbar.OptionSetDescription("Sampling"),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
	tracker := newProgressTracker(opts.Samples, bar)

	deps, err := bootstrap.NewDependencies(cfg, logger, bootstrap.WithObserver(tracker.observe))
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	ctx := context.Background()
	deps.Start(ctx)

	b, err := deps.Batches.Submit(ctx, batch.Request{
		Prefix:  opts.Prefix,
		Height:  opts.Height,
		Samples: opts.Samples,
		Target:  opts.Target,
		Sources: opts.Files,
	})
	if err != nil {
		_ = deps.Drain(ctx)
		return fmt.Errorf("submit: %w", err)
	}
	if err := deps.Drain(ctx); err != nil {
		return err
	}
	_ = bar.Finish()
	fmt.Fprintln(stderr)

	done, err := deps.Batches.GetBatch(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	return report(stderr, done)
}

// report prints failed rows and returns errTasksFailed if there were any.
func report(w io.Writer, b *batch.Batch) error {
	failed := 0
	for _, row := range b.Rows {
		if row.Status != batch.StatusFailed {
			continue
		}
		failed++
		fmt.Fprintf(w, "failed: %s (%s)\n", row.Source, row.Error)
	}
	fmt.Fprintf(w, "%d of %d files sampled into %s\n", len(b.Rows)-failed, len(b.Rows), b.Target)
	if failed > 0 {
		return errTasksFailed
	}
	return nil
}

// progressBar is the subset of *progressbar.ProgressBar the tracker drives.
type progressBar interface {
	Add(n int) error
}

// progressTracker turns row updates into completed-sample increments.
type progressTracker struct {
	samples int
	bar     progressBar

	mu      sync.Mutex
	written map[int]int
}

func newProgressTracker(samples int, bar progressBar) *progressTracker {
	return &progressTracker{
		samples: samples,
		bar:     bar,
		written: make(map[int]int),
	}
}

func (t *progressTracker) observe(_ string, row batch.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := int(math.Round(row.Progress * float64(t.samples)))
	if delta := n - t.written[row.RefIdx]; delta > 0 {
		t.written[row.RefIdx] = n
		_ = t.bar.Add(delta)
	}
}

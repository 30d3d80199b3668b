package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/video-sampler/internal/media"
	"github.com/maauso/video-sampler/internal/sampler"
)

// fakeRunner reports one event per sample and fails tasks listed in failAt.
type fakeRunner struct {
	delay time.Duration
	// failAt maps RefIdx to the number of samples reported before failing.
	failAt map[int]int

	mu      sync.Mutex
	order   []int
	draws   map[int]uint64
	running atomic.Int32
	peak    atomic.Int32
}

func (r *fakeRunner) Run(_ context.Context, tc *sampler.TaskContext, task sampler.Task, report sampler.ProgressFunc) error {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	r.mu.Lock()
	r.order = append(r.order, task.RefIdx)
	if r.draws != nil {
		r.draws[task.RefIdx] = tc.Rand.Uint64()
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	for i := 0; i < task.Samples; i++ {
		if k, ok := r.failAt[task.RefIdx]; ok && i == k {
			return fmt.Errorf("sample %d: %w", i, media.ErrSeek)
		}
		report(float64(i+1) / float64(task.Samples))
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(100)}))
}

// runPool enqueues tasks, runs them on a pool, and returns every event.
func runPool(t *testing.T, runner Runner, tasks []sampler.Task, opts ...Option) []ProgressEvent {
	t.Helper()
	q := NewQueue()
	for _, task := range tasks {
		require.NoError(t, q.Push(task))
	}
	q.Close()

	pool := NewPool(q, runner, quietLogger(), opts...)
	pool.Start(context.Background())

	var events []ProgressEvent
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range pool.Events() {
			events = append(events, ev)
		}
	}()

	pool.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events channel was not closed after workers exited")
	}
	return events
}

func makeTasks(n, samples int) []sampler.Task {
	tasks := make([]sampler.Task, n)
	for i := range tasks {
		tasks[i] = sampler.Task{
			Prefix:  "p",
			Height:  180,
			Samples: samples,
			Target:  "/tmp",
			Index:   i,
			Source:  fmt.Sprintf("/videos/%02d.mp4", i),
			RefIdx:  100 + i,
		}
	}
	return tasks
}

func eventsFor(events []ProgressEvent, ref int) []ProgressEvent {
	var out []ProgressEvent
	for _, ev := range events {
		if ev.RefIdx == ref {
			out = append(out, ev)
		}
	}
	return out
}

func TestPool_BoundedConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	tasks := makeTasks(20, 2)

	events := runPool(t, runner, tasks, WithSize(8))

	assert.LessOrEqual(t, runner.peak.Load(), int32(8))
	assert.Greater(t, runner.peak.Load(), int32(1))
	assert.Len(t, runner.order, 20)
	assert.Len(t, events, 40)
	for _, task := range tasks {
		evs := eventsFor(events, task.RefIdx)
		require.Len(t, evs, 2)
		assert.Equal(t, 0.5, evs[0].Progress)
		assert.Equal(t, 1.0, evs[1].Progress)
	}
}

func TestPool_SingleWorkerDequeuesFIFO(t *testing.T) {
	runner := &fakeRunner{}
	tasks := makeTasks(6, 1)

	runPool(t, runner, tasks, WithSize(1))

	want := make([]int, len(tasks))
	for i, task := range tasks {
		want[i] = task.RefIdx
	}
	assert.Equal(t, want, runner.order)
}

func TestPool_ProgressSequence(t *testing.T) {
	runner := &fakeRunner{}
	tasks := makeTasks(1, 3)

	events := runPool(t, runner, tasks, WithSize(2))

	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, tasks[0].RefIdx, ev.RefIdx)
		assert.False(t, ev.Failed)
		assert.InDelta(t, float64(i+1)/3, ev.Progress, 1e-9)
	}
}

func TestPool_FailureEmitsExactlyOneFailedEvent(t *testing.T) {
	tasks := makeTasks(3, 4)
	runner := &fakeRunner{failAt: map[int]int{
		tasks[0].RefIdx: 0,
		tasks[1].RefIdx: 2,
	}}

	events := runPool(t, runner, tasks, WithSize(3))

	first := eventsFor(events, tasks[0].RefIdx)
	require.Len(t, first, 1)
	assert.True(t, first[0].Failed)
	assert.Zero(t, first[0].Progress)

	second := eventsFor(events, tasks[1].RefIdx)
	require.Len(t, second, 3)
	assert.False(t, second[0].Failed)
	assert.False(t, second[1].Failed)
	assert.True(t, second[2].Failed)
	assert.Equal(t, 0.5, second[2].Progress)

	third := eventsFor(events, tasks[2].RefIdx)
	require.Len(t, third, 4)
	for _, ev := range third {
		assert.False(t, ev.Failed)
	}
	assert.Equal(t, 1.0, third[3].Progress)
}

func TestPool_SeededWorkers(t *testing.T) {
	runner := &fakeRunner{draws: make(map[int]uint64)}
	tasks := makeTasks(1, 1)

	runPool(t, runner, tasks, WithSize(1), WithSeed(42))

	want := rand.New(rand.NewPCG(42, 0)).Uint64()
	assert.Equal(t, want, runner.draws[tasks[0].RefIdx])
}

func TestPool_EmptyQueue(t *testing.T) {
	events := runPool(t, &fakeRunner{}, nil, WithSize(4))
	assert.Empty(t, events)
}

func TestPool_CancelledContextDoesNotAbortTasks(t *testing.T) {
	q := NewQueue()
	runner := &ctxRunner{}
	require.NoError(t, q.Push(sampler.Task{RefIdx: 1, Samples: 1}))
	q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool(q, runner, quietLogger(), WithSize(1), WithEventBuffer(4))
	pool.Start(ctx)
	pool.Wait()

	assert.NoError(t, runner.seen)
}

// ctxRunner records the context error seen by the task.
type ctxRunner struct {
	seen error
}

func (r *ctxRunner) Run(ctx context.Context, _ *sampler.TaskContext, _ sampler.Task, _ sampler.ProgressFunc) error {
	r.seen = ctx.Err()
	return nil
}

func TestNewPool_Options(t *testing.T) {
	q := NewQueue()

	p := NewPool(q, &fakeRunner{}, nil)
	assert.Equal(t, PhysicalCores(), p.Size())
	assert.Equal(t, p.Size()*16, cap(p.events))

	p = NewPool(q, &fakeRunner{}, nil, WithSize(3), WithEventBuffer(0), WithSize(-1))
	assert.Equal(t, 3, p.Size())
	assert.Zero(t, cap(p.events))
}

func TestPhysicalCores(t *testing.T) {
	assert.Positive(t, PhysicalCores())
}

func TestPool_StartTwice(t *testing.T) {
	q := NewQueue()
	q.Close()
	pool := NewPool(q, &fakeRunner{}, quietLogger(), WithSize(2))
	pool.Start(context.Background())
	pool.Start(context.Background())
	pool.Wait()

	_, open := <-pool.Events()
	assert.False(t, open)
}

var _ Runner = (*sampler.Executor)(nil)

// Package runner executes stored program runs in the background and keeps
// track of the ones in flight so they can be cancelled.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lemonberrylabs/cfpl/pkg/cfpl"
	"github.com/lemonberrylabs/cfpl/pkg/runtime"
	"github.com/lemonberrylabs/cfpl/pkg/store"
)

// Options bounds every run started by a Runner. Zero values mean no limit.
type Options struct {
	Timeout   time.Duration
	MaxSteps  int
	MaxOutput int
}

// Runner executes runs against a store.
type Runner struct {
	store *store.Store
	opts  Options

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runner for the given store.
func New(s *store.Store, opts Options) *Runner {
	return &Runner{
		store:  s,
		opts:   opts,
		active: make(map[string]context.CancelFunc),
	}
}

// Start executes run asynchronously. The outcome is written back to the
// store when the program finishes.
func (r *Runner) Start(run *store.Run) {
	ctx, cancel := r.context(context.Background())

	r.mu.Lock()
	r.active[run.Name] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, run.Name)
			r.mu.Unlock()
			cancel()
		}()
		r.execute(ctx, run)
	}()
}

// Run executes source synchronously under the runner's limits and returns
// whatever the program wrote, even when it fails.
func (r *Runner) Run(ctx context.Context, source, stdin string) (string, error) {
	ctx, cancel := r.context(ctx)
	defer cancel()

	var out strings.Builder
	err := cfpl.Execute(ctx, source, r.engineOptions(stdin, &out))
	if errors.Is(err, context.DeadlineExceeded) {
		err = r.timeoutError()
	}
	return out.String(), err
}

// Cancel stops an active run and marks it CANCELLED.
func (r *Runner) Cancel(name string) error {
	if err := r.store.CancelRun(name); err != nil {
		return err
	}

	r.mu.Lock()
	cancel, ok := r.active[name]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Active returns the number of runs currently executing.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, run *store.Run) {
	var out strings.Builder
	err := cfpl.Execute(ctx, run.Source, r.engineOptions(run.Stdin, &out))

	switch {
	case err == nil:
		err = r.store.CompleteRun(run.Name, out.String())
	case errors.Is(err, context.Canceled):
		// Cancel has already updated the store.
		return
	case errors.Is(err, context.DeadlineExceeded):
		err = r.store.FailRun(run.Name, out.String(), r.timeoutError())
	default:
		err = r.store.FailRun(run.Name, out.String(), err)
	}

	if err != nil && !errors.Is(err, store.ErrFailedPrecondition) {
		log.Printf("Warning: could not record outcome of %s: %v", run.Name, err)
	}
}

func (r *Runner) context(parent context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout > 0 {
		return context.WithTimeout(parent, r.opts.Timeout)
	}
	return context.WithCancel(parent)
}

func (r *Runner) engineOptions(stdin string, out *strings.Builder) runtime.Options {
	return runtime.Options{
		Stdin:     strings.NewReader(stdin),
		Stdout:    out,
		MaxSteps:  r.opts.MaxSteps,
		MaxOutput: r.opts.MaxOutput,
	}
}

func (r *Runner) timeoutError() error {
	return fmt.Errorf("run exceeded timeout of %s", r.opts.Timeout)
}

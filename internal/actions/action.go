package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status tracks one in-flight run of an action. Start is called once;
// Finished is polled until it reports true; Finalise retrieves outputs after
// a successful finish.
type Status interface {
	Start(ctx context.Context) error
	Finished(ctx context.Context) (bool, error)
	Succeeded() bool
	Finalise(ctx context.Context) error
}

// Action executes a simulation against a populated run directory.
type Action interface {
	ActOnDir(dir string) (Status, error)
}

// Progress is a snapshot of a pool's counters. Ready counts runs not yet
// started, Active runs in flight.
type Progress struct {
	Ready    int
	Active   int
	Finished int
	Failed   int
}

func (p Progress) Done() bool { return p.Ready == 0 && p.Active == 0 }

// Pool applies an action to every run directory with a bounded number of
// concurrent runs, polling each run through to completion.
type Pool struct {
	action       Action
	dirs         []string
	batchSize    int
	pollInterval time.Duration

	mu       sync.Mutex
	progress Progress
	errs     []error

	started bool
	done    chan struct{}
}

const defaultPollInterval = 2 * time.Second

func NewPool(action Action, dirs []string, batchSize int) *Pool {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pool{
		action:       action,
		dirs:         dirs,
		batchSize:    batchSize,
		pollInterval: defaultPollInterval,
		progress:     Progress{Ready: len(dirs)},
		done:         make(chan struct{}),
	}
}

// SetPollInterval adjusts how often in-flight runs are polled. Must be called
// before Start.
func (p *Pool) SetPollInterval(interval time.Duration) { p.pollInterval = interval }

// Start launches the pool in the background.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("pool has already started")
	}
	p.started = true
	p.mu.Unlock()

	queue := make(chan string, len(p.dirs))
	for _, dir := range p.dirs {
		queue <- dir
	}
	close(queue)

	var wg sync.WaitGroup
	workers := min(p.batchSize, len(p.dirs))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for dir := range queue {
				p.runOne(ctx, dir)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(p.done)
	}()

	return nil
}

func (p *Pool) runOne(ctx context.Context, dir string) {
	p.mu.Lock()
	p.progress.Ready--
	p.progress.Active++
	p.mu.Unlock()

	err := p.executeOne(ctx, dir)

	p.mu.Lock()
	p.progress.Active--
	if err != nil {
		p.progress.Failed++
		p.errs = append(p.errs, fmt.Errorf("run %s: %w", dir, err))
		slog.Error("run failed", "dir", dir, "error", err)
	} else {
		p.progress.Finished++
	}
	p.mu.Unlock()
}

func (p *Pool) executeOne(ctx context.Context, dir string) error {
	status, err := p.action.ActOnDir(dir)
	if err != nil {
		return err
	}
	if err := status.Start(ctx); err != nil {
		return err
	}

	for {
		finished, err := status.Finished(ctx)
		if err != nil {
			return err
		}
		if finished {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}

	if !status.Succeeded() {
		return fmt.Errorf("action did not succeed")
	}
	return status.Finalise(ctx)
}

// Progress returns a snapshot of the pool's counters.
func (p *Pool) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Wait blocks until every run has finished or the context is cancelled, and
// returns the first run error, if any.
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) > 0 {
		return fmt.Errorf("%d of %d runs failed: %w", len(p.errs), len(p.dirs), p.errs[0])
	}
	return nil
}

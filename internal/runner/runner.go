// Package runner schedules background tasks on a cron clock.
package runner

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a unit of scheduled background work.
type Task interface {
	Name() string
	// Schedule is a cron expression with optional seconds, or a descriptor
	// such as "@every 30s".
	Schedule() string
	Timeout() time.Duration
	Run(ctx context.Context) error
}

// Parser accepts both five and six field expressions plus descriptors.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Runner struct {
	mu     sync.Mutex
	cron   *cron.Cron
	tasks  map[string]Task
	logger *log.Logger
	ctx    context.Context
}

func New() *Runner {
	logger := log.New(log.Writer(), "[RUNNER] ", log.LstdFlags)
	return &Runner{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger)), cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		tasks:  make(map[string]Task),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Register adds a task. Names must be unique.
func (r *Runner) Register(t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.Name()]; exists {
		return fmt.Errorf("runner: task %q already registered", t.Name())
	}
	if _, err := r.cron.AddFunc(t.Schedule(), func() { r.execute(r.baseContext(), t) }); err != nil {
		return fmt.Errorf("runner: invalid schedule %q for %s: %w", t.Schedule(), t.Name(), err)
	}
	r.tasks[t.Name()] = t
	r.logger.Printf("Registered task %s (%s)", t.Name(), t.Schedule())
	return nil
}

// Tasks lists registered task names in order.
func (r *Runner) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start runs the schedule until ctx is cancelled and waits for running tasks.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	r.cron.Start()
	r.logger.Printf("Runner started with %d tasks", len(r.Tasks()))

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Println("Runner stopped")
	return nil
}

// RunOnce executes the named task immediately.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	r.mu.Lock()
	t, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("runner: unknown task %q", name)
	}
	return r.execute(ctx, t)
}

func (r *Runner) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

func (r *Runner) execute(parent context.Context, t Task) error {
	ctx := parent
	if timeout := t.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	start := time.Now()
	err := t.Run(ctx)
	if err != nil {
		r.logger.Printf("Task %s failed after %v: %v", t.Name(), time.Since(start).Round(time.Millisecond), err)
		return err
	}
	if time.Since(start) > time.Second {
		r.logger.Printf("Task %s finished in %v", t.Name(), time.Since(start).Round(time.Millisecond))
	}
	return nil
}

package engine

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/errors"
	"github.com/matzehuels/aurgrab/pkg/observability"
)

// DefaultMaxThreads is the worker ceiling when none is configured.
const DefaultMaxThreads = 10

// Client is the remote capability a worker uses. *aurweb.Client implements
// it.
type Client interface {
	Search(ctx context.Context, by, term string) ([]*aur.Package, error)
	MSearch(ctx context.Context, maintainer string) ([]*aur.Package, error)
	Info(ctx context.Context, names ...string) ([]*aur.Package, error)
	Recipe(ctx context.Context, pkgbase string) (string, error)
	Snapshot(ctx context.Context, urlPath string) (io.ReadCloser, error)
}

// LocalDB is the local package database capability. *localdb.DB implements
// it.
type LocalDB interface {
	// Installed returns the installed version of name.
	Installed(name string) (string, bool)
	// Provider returns the sync repository that already provides name.
	Provider(name string) (string, bool)
	// Satisfied reports whether name is installed or repo-provided.
	Satisfied(name string) bool
}

// Task is one kind of job the pool can run per target.
type Task interface {
	// Name identifies the task in logs and hooks.
	Name() string
	// Run processes one target and returns the records it produced, sorted
	// by name. An empty result with a nil error means "nothing found".
	Run(ctx context.Context, w *Worker, target string) ([]*aur.Package, error)
}

// Worker is the per-goroutine context handed to a [Task].
type Worker struct {
	ID     int
	Client Client
	Logger *log.Logger
	List   *Worklist
}

// Options configures a [Pool].
type Options struct {
	// MaxThreads caps the number of workers (default: 10).
	MaxThreads int
	// NewClient builds one client per worker. Required.
	NewClient func() Client
	// Logger receives run and job logs (default: discard).
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxThreads <= 0 {
		opts.MaxThreads = DefaultMaxThreads
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// Result is the outcome of a run.
type Result struct {
	RunID string
	// Packages is the aggregate, sorted by name and free of duplicates.
	Packages []*aur.Package
	// Failed lists targets whose job returned an error, sorted.
	Failed []string
	// Empty lists targets whose job succeeded without producing records,
	// sorted.
	Empty []string
}

// Pool runs tasks over targets with a bounded set of workers.
type Pool struct {
	opts Options
}

// NewPool creates a Pool.
func NewPool(opts Options) *Pool {
	return &Pool{opts: opts.WithDefaults()}
}

// partial is one worker's private share of the result.
type partial struct {
	pkgs   []*aur.Package
	failed []string
	empty  []string
}

// Run processes targets with task and returns the merged result.
//
// The pool starts min(len(targets), MaxThreads) workers. Per-target failures
// are logged and reported in [Result.Failed]; the returned error is only set
// when the run itself was aborted, by ctx or by an internal error.
func (p *Pool) Run(ctx context.Context, task Task, targets []string) (*Result, error) {
	if p.opts.NewClient == nil {
		return nil, errors.New(errors.ErrCodeInternal, "engine: no client factory configured")
	}

	runID := uuid.NewString()
	list := NewWorklist(targets...)
	n := min(list.Len(), p.opts.MaxThreads)
	res := &Result{RunID: runID}
	if n == 0 {
		return res, nil
	}

	logger := p.opts.Logger.With("run", runID[:8])
	hooks := observability.Engine()
	start := time.Now()
	hooks.OnRunStart(ctx, runID, task.Name(), list.Len(), n)
	logger.Debug("starting run", "task", task.Name(), "targets", list.Len(), "workers", n)

	partials := make([]partial, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		w := &Worker{
			ID:     i,
			Client: p.opts.NewClient(),
			Logger: logger.With("worker", i),
			List:   list,
		}
		g.Go(func() error {
			return p.work(gctx, task, w, &partials[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Workers are joined; the aggregate is built here without locks.
	for _, part := range partials {
		res.Packages = aur.Merge(res.Packages, part.pkgs)
		res.Failed = append(res.Failed, part.failed...)
		res.Empty = append(res.Empty, part.empty...)
	}
	slices.Sort(res.Failed)
	slices.Sort(res.Empty)

	hooks.OnRunComplete(ctx, runID, task.Name(), len(res.Packages), len(res.Failed), time.Since(start))
	logger.Debug("run complete", "results", len(res.Packages), "failed", len(res.Failed), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (p *Pool) work(ctx context.Context, task Task, w *Worker, part *partial) error {
	hooks := observability.Engine()
	for {
		target, ok := w.List.Pop(ctx)
		if !ok {
			return nil
		}

		start := time.Now()
		hooks.OnJobStart(ctx, task.Name(), target)
		pkgs, err := task.Run(ctx, w, target)
		w.List.Done()
		hooks.OnJobComplete(ctx, task.Name(), target, len(pkgs), time.Since(start), err)

		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil && !errors.JobFatal(err):
			return err
		case err != nil:
			w.Logger.Warn(errors.UserMessage(err), "target", target)
			part.failed = append(part.failed, target)
		case len(pkgs) == 0:
			part.empty = append(part.empty, target)
		default:
			part.pkgs = aur.Merge(part.pkgs, pkgs)
		}
	}
}

package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/l7mp/dverify/pkg/mtl"
	"github.com/l7mp/dverify/pkg/trace"
)

// Job is one independent stream of a batch: a graph and the trace it monitors.
type Job struct {
	Name  string
	Graph *mtl.Graph
	// Open returns the trace. It is called from the goroutine that runs the job.
	Open func(ctx context.Context) (trace.Reader, error)
}

// RunAll runs jobs concurrently, each on its own monitor and arena. Verdicts of all jobs go to
// the shared sink. The first failing job cancels the rest; the summaries are returned in job
// order either way.
func RunAll(ctx context.Context, jobs []Job, config Config, opts Options) ([]Summary, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if opts.Sink != nil {
		opts.Sink = Synchronized(opts.Sink)
	}

	sums := make([]Summary, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if config.Workers > 0 {
		g.SetLimit(config.Workers)
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			jopts := opts
			jopts.Name = job.Name
			r, err := New(job.Graph, config, jopts)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			src, err := job.Open(gctx)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			if c, ok := src.(interface{ Close() error }); ok {
				defer c.Close()
			}
			sums[i], err = r.Run(gctx, src)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return sums, err
}

// Package runner drives MTL monitors over traces and reports per-step verdicts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"

	"github.com/l7mp/dverify/pkg/interval"
	"github.com/l7mp/dverify/pkg/mtl"
	"github.com/l7mp/dverify/pkg/trace"
)

// Options are the collaborators of a runner.
type Options struct {
	// Name labels verdicts, metrics and logs. Defaults to "monitor".
	Name string
	// Sink receives the verdicts. Defaults to a DiscardSink.
	Sink Sink
	// Metrics is optional.
	Metrics *Metrics
	Logger  logr.Logger
}

// Summary aggregates a run.
type Summary struct {
	Name string
	Mode Mode
	// Steps is the number of evaluated steps.
	Steps uint64
	// Violations is the number of steps where the root did not hold.
	Violations uint64
	// FirstViolation is the time of the first violated step, valid when Violations > 0.
	FirstViolation int64
	// Covered is the evaluated time in dense mode and the number of steps in discrete mode.
	Covered int64
	// Satisfied is the part of Covered where the root held.
	Satisfied int64
	// HighWater is the arena high water mark in transitions.
	HighWater int
	// Elapsed is the wall clock time of the run.
	Elapsed time.Duration
}

// Holds reports whether the formula held at every step.
func (s Summary) Holds() bool { return s.Violations == 0 }

func (s Summary) String() string {
	ret := fmt.Sprintf("%s: %d %s steps, %d violations, satisfied %d/%d, arena high water %d, elapsed %s",
		s.Name, s.Steps, s.Mode, s.Violations, s.Satisfied, s.Covered, s.HighWater, s.Elapsed)
	if s.Violations > 0 {
		ret += fmt.Sprintf(", first violation at %d", s.FirstViolation)
	}
	return ret
}

// Runner drives a monitor over a trace.
type Runner struct {
	name    string
	graph   *mtl.Graph
	config  Config
	sink    Sink
	metrics *Metrics
	log     logr.Logger
}

// New creates a runner for a graph.
func New(g *mtl.Graph, config Config, opts Options) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "monitor"
	}
	if opts.Sink == nil {
		opts.Sink = DiscardSink{}
	}
	if config.ViolationsOnly {
		opts.Sink = ViolationFilter{Sink: opts.Sink}
	}
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	return &Runner{
		name:    opts.Name,
		graph:   g,
		config:  config,
		sink:    opts.Sink,
		metrics: opts.Metrics,
		log:     logger.WithName("runner").WithValues("monitor", opts.Name),
	}, nil
}

// Run evaluates the trace until it is exhausted or ctx is canceled. The summary covers the steps
// evaluated so far even when an error is returned.
func (r *Runner) Run(ctx context.Context, src trace.Reader) (Summary, error) {
	sum := Summary{Name: r.name, Mode: r.config.Mode}
	start := time.Now()

	src, err := r.columns(src)
	if errors.Is(err, io.EOF) {
		sum.Elapsed = time.Since(start)
		return sum, nil
	}
	if err != nil {
		return sum, err
	}

	r.log.V(1).Info("starting run", "mode", r.config.Mode, "formula", r.graph.String(),
		"propositions", r.graph.Propositions())

	mopts := mtl.Options{Capacity: r.config.Capacity, MaxCapacity: r.config.MaxCapacity, Logger: r.log}
	switch r.config.Mode {
	case ModeDense:
		err = r.runDense(ctx, src, mtl.NewDenseMonitor(r.graph, mopts), &sum)
	default:
		err = r.runDiscrete(ctx, src, mtl.NewDiscreteMonitor(r.graph, mopts), &sum)
	}

	if ferr := r.sink.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	sum.Elapsed = time.Since(start)
	r.log.V(1).Info("run finished", "steps", sum.Steps, "violations", sum.Violations,
		"elapsed", sum.Elapsed.String())
	return sum, err
}

// columns maps the trace columns onto the proposition order of the graph.
func (r *Runner) columns(src trace.Reader) (trace.Reader, error) {
	if src.Propositions() == nil {
		peeked, _, err := trace.Peek(src)
		if err != nil {
			return nil, err
		}
		src = peeked
	}
	return trace.Select(src, r.graph.Propositions())
}

func (r *Runner) runDense(ctx context.Context, src trace.Reader, m *mtl.DenseMonitor, sum *Summary) error {
	defer m.Close()

	var prev, cur trace.Record
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := src.Next(&cur); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading trace: %w", err)
		}
		if first {
			prev = cur.Clone()
			first = false
			continue
		}

		t := time.Now()
		root, err := m.Step(prev.Time, cur.Time, prev.Props)
		if err != nil {
			return err
		}
		ivs, err := m.Intervals(root)
		if err != nil {
			return err
		}
		window := interval.Interval{Start: prev.Time, End: cur.Time}
		v := Verdict{
			Monitor:   r.name,
			Mode:      ModeDense,
			Step:      m.Steps(),
			Time:      prev.Time,
			End:       cur.Time,
			Satisfied: len(ivs) == 1 && ivs[0] == window,
			Intervals: ivs,
		}
		if err := r.record(sum, v, time.Since(t), m.ArenaStats()); err != nil {
			return err
		}

		prev.Time = cur.Time
		prev.Props = append(prev.Props[:0], cur.Props...)
	}
}

func (r *Runner) runDiscrete(ctx context.Context, src trace.Reader, m *mtl.DiscreteMonitor, sum *Summary) error {
	defer m.Close()

	var cur trace.Record
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := src.Next(&cur); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading trace: %w", err)
		}

		t := time.Now()
		ok, err := m.Step(cur.Time, cur.Props)
		if err != nil {
			return err
		}
		v := Verdict{
			Monitor:   r.name,
			Mode:      ModeDiscrete,
			Step:      m.Steps(),
			Time:      cur.Time,
			Satisfied: ok,
		}
		if err := r.record(sum, v, time.Since(t), m.ArenaStats()); err != nil {
			return err
		}
	}
}

func (r *Runner) record(sum *Summary, v Verdict, elapsed time.Duration, arena mtl.ArenaStats) error {
	sum.Steps++
	sum.Covered += v.Duration()
	sum.Satisfied += v.SatisfiedDuration()
	if !v.Satisfied {
		if sum.Violations == 0 {
			sum.FirstViolation = v.Time
			r.log.V(1).Info("first violation", "time", v.Time, "step", v.Step)
		}
		sum.Violations++
	}
	if arena.HighWater > sum.HighWater {
		sum.HighWater = arena.HighWater
	}
	r.metrics.observe(r.name, v, elapsed.Seconds(), arena)

	if r.config.LogEvery > 0 && sum.Steps%uint64(r.config.LogEvery) == 0 {
		r.log.Info("progress", "steps", sum.Steps, "time", v.Time, "violations", sum.Violations,
			"arena-high-water", arena.HighWater)
	}

	if err := r.sink.Emit(v); err != nil {
		return fmt.Errorf("emitting verdict: %w", err)
	}
	return nil
}

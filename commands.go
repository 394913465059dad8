/*
Copyright 2022 The l7mp/stunner team.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/l7mp/dverify/internal/buildinfo"
	"github.com/l7mp/dverify/pkg/mtl"
	"github.com/l7mp/dverify/pkg/patterns"
	"github.com/l7mp/dverify/pkg/runner"
	"github.com/l7mp/dverify/pkg/trace"
	"github.com/l7mp/dverify/pkg/util"
	"github.com/l7mp/dverify/pkg/visualize"
)

// errViolation makes the process exit with status 2 when a monitored formula was violated.
var errViolation = errors.New("formula violated")

// cli holds the flag values shared by the commands.
type cli struct {
	zapOpts *zap.Options
	log     logr.Logger

	configFile      string
	mode            string
	format          string
	capacity        int
	maxCapacity     int
	violationsOnly  bool
	logEvery        int
	workers         int
	failOnViolation bool
	metricsAddr     string

	formula string
	spec    string

	inputFormat    string
	columns        []string
	timeField      string
	missingAsFalse bool
	follow         bool
}

func newRootCommand(zapOpts *zap.Options, info buildinfo.BuildInfo) *cobra.Command {
	c := &cli{zapOpts: zapOpts, log: logr.Discard()}

	root := &cobra.Command{
		Use:   "dverify",
		Short: "Online runtime verification of past-time MTL formulas over traces",
		Long: `dverify evaluates past-time metric temporal logic formulas over timestamped traces of
boolean propositions, in the discrete or the dense time model.

Formulas come from the built-in pattern catalogue (--formula AbsentAQ:10) or from a YAML/JSON
node graph (--spec graph.yaml). Traces are binary row files or JSON lines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.log = zap.New(zap.UseFlagOptions(c.zapOpts)).WithName("dverify")
			c.log.V(2).Info("starting", "build", info.String(), "command", cmd.Name())
		},
	}

	root.AddCommand(
		c.runCommand(),
		c.batchCommand(),
		c.graphCommand(),
		c.convertCommand(),
		c.patternsCommand(),
		versionCommand(info),
	)
	return root
}

func (c *cli) addRunFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&c.configFile, "config", "", "Run configuration file (YAML or JSON)")
	fs.StringVar(&c.mode, "mode", string(runner.ModeDiscrete), "Time model: dense or discrete")
	fs.StringVarP(&c.format, "output", "o", string(runner.FormatText), "Verdict format: text, json or none")
	fs.IntVar(&c.capacity, "capacity", 0, "Initial arena capacity in transitions")
	fs.IntVar(&c.maxCapacity, "max-capacity", 0, "Hard arena limit in transitions, 0 for unbounded")
	fs.BoolVar(&c.violationsOnly, "violations-only", false, "Only print violated steps")
	fs.IntVar(&c.logEvery, "log-every", 0, "Log progress every n steps")
	fs.BoolVar(&c.failOnViolation, "fail-on-violation", false, "Exit with status 2 if the formula is violated")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g., :9090")
}

func (c *cli) addGraphFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&c.formula, "formula", "f", "", "Pattern reference, e.g., AbsentAQ:10 or RespondGLB:3:10")
	fs.StringVarP(&c.spec, "spec", "s", "", "Node graph file (YAML or JSON)")
	cmd.MarkFlagsMutuallyExclusive("formula", "spec")
	cmd.MarkFlagsOneRequired("formula", "spec")
}

func (c *cli) addTraceFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&c.inputFormat, "input-format", "", "Trace format: binary or jsonl (default: by file extension)")
	fs.StringSliceVar(&c.columns, "columns", nil,
		"Proposition columns of the trace in order (binary default: p,q,r,s; JSONL default: inferred)")
	fs.StringVar(&c.timeField, "time-field", trace.DefaultTimeField, "JSONL key or JSONPath of the timestamp")
	fs.BoolVar(&c.missingAsFalse, "missing-as-false", false, "Read absent JSONL propositions as false")
}

// runConfig merges the configuration file with the flags set on the command line.
func (c *cli) runConfig(cmd *cobra.Command) (runner.Config, error) {
	config := runner.DefaultConfig()
	if c.configFile != "" {
		var err error
		if config, err = runner.LoadConfig(c.configFile); err != nil {
			return config, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("mode") {
		config.Mode = runner.Mode(c.mode)
	}
	if fs.Changed("output") {
		config.Format = runner.Format(c.format)
	}
	if fs.Changed("capacity") {
		config.Capacity = c.capacity
	}
	if fs.Changed("max-capacity") {
		config.MaxCapacity = c.maxCapacity
	}
	if fs.Changed("violations-only") {
		config.ViolationsOnly = c.violationsOnly
	}
	if fs.Changed("log-every") {
		config.LogEvery = c.logEvery
	}
	if fs.Changed("workers") {
		config.Workers = c.workers
	}
	return config, config.Validate()
}

// serveMetrics starts the metrics endpoint if requested. The server stops with ctx.
func (c *cli) serveMetrics(ctx context.Context) *runner.Metrics {
	if c.metricsAddr == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := runner.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: c.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := c.log.WithName("metrics")

	go func() {
		log.Info("serving metrics", "address", c.metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	return metrics
}

// graph resolves --formula or --spec.
func (c *cli) graph() (*mtl.Graph, string, error) {
	if c.spec != "" {
		g, err := mtl.LoadSpec(c.spec)
		return g, strings.TrimSuffix(filepath.Base(c.spec), filepath.Ext(c.spec)), err
	}
	g, err := patterns.Parse(c.formula)
	return g, c.formula, err
}

// resolveGraph reads a graph reference that is either a spec file or a pattern reference.
func resolveGraph(ref string) (*mtl.Graph, error) {
	if _, err := os.Stat(ref); err == nil {
		return mtl.LoadSpec(ref)
	}
	return patterns.Parse(ref)
}

type closingReader struct {
	trace.Reader
	io.Closer
}

// openTrace opens a trace file. The returned reader must be closed.
func (c *cli) openTrace(ctx context.Context, path string) (*closingReader, error) {
	format := c.inputFormat
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".json", ".ndjson":
			format = "jsonl"
		default:
			format = "binary"
		}
		if path == "-" {
			format = "jsonl"
		}
	}

	jopts := trace.JSONLOptions{
		Propositions:   c.columns,
		TimeField:      c.timeField,
		MissingAsFalse: c.missingAsFalse,
	}

	switch format {
	case "jsonl":
		if c.follow {
			tr, err := trace.NewTailReader(ctx, path, jopts, c.log)
			if err != nil {
				return nil, err
			}
			return &closingReader{Reader: tr, Closer: tr}, nil
		}
		var f io.ReadCloser = os.Stdin
		if path != "-" {
			var err error
			if f, err = os.Open(path); err != nil {
				return nil, err
			}
		}
		r, err := trace.NewJSONLReader(f, jopts)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &closingReader{Reader: r, Closer: f}, nil

	case "binary":
		if c.follow {
			return nil, errors.New("follow mode needs a JSONL trace")
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, err := trace.NewBinaryReader(f, c.columns)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &closingReader{Reader: r, Closer: f}, nil

	default:
		return nil, fmt.Errorf("unknown trace format %q", format)
	}
}

func (c *cli) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run TRACE",
		Short: "Monitor a formula over a trace",
		Long: `Monitor a formula over a trace and print one verdict per step followed by a summary.

Examples:
  dverify run --formula AbsentAQ:10 traces/absent.bin
  dverify run --spec graph.yaml --mode dense -o json trace.jsonl
  dverify run --formula RecurGLB:100 --follow --violations-only live.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := c.runConfig(cmd)
			if err != nil {
				return err
			}
			g, name, err := c.graph()
			if err != nil {
				return err
			}
			sink, err := runner.NewSink(config.Format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			src, err := c.openTrace(ctx, args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			r, err := runner.New(g, config, runner.Options{
				Name:    name,
				Sink:    sink,
				Metrics: c.serveMetrics(ctx),
				Logger:  c.log,
			})
			if err != nil {
				return err
			}

			sum, err := r.Run(ctx, src)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), sum.String())
			if c.failOnViolation && !sum.Holds() {
				return errViolation
			}
			return nil
		},
	}

	c.addRunFlags(cmd)
	c.addGraphFlags(cmd)
	c.addTraceFlags(cmd)
	cmd.Flags().BoolVar(&c.follow, "follow", false, "Keep reading a JSONL trace as it grows")
	return cmd
}

// parseJob splits a batch argument of the form GRAPH=TRACE.
func parseJob(arg string) (string, string, error) {
	ref, path, ok := strings.Cut(arg, "=")
	if !ok || ref == "" || path == "" {
		return "", "", fmt.Errorf("invalid job %q: want GRAPH=TRACE", arg)
	}
	return ref, path, nil
}

func (c *cli) batchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch GRAPH=TRACE...",
		Short: "Monitor several independent streams concurrently",
		Long: `Monitor several (formula, trace) pairs concurrently, one monitor per pair. GRAPH is a
pattern reference or a node graph file.

Examples:
  dverify batch AbsentAQ:10=a.bin AbsentAQ:100=a.bin RecurGLB:10=b.bin
  dverify batch --workers 4 -o none graph.yaml=trace.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := c.runConfig(cmd)
			if err != nil {
				return err
			}
			sink, err := runner.NewSink(config.Format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			jobs := make([]runner.Job, 0, len(args))
			for _, arg := range args {
				ref, path, err := parseJob(arg)
				if err != nil {
					return err
				}
				g, err := resolveGraph(ref)
				if err != nil {
					return fmt.Errorf("%s: %w", ref, err)
				}
				jobs = append(jobs, runner.Job{
					Name:  arg,
					Graph: g,
					Open: func(ctx context.Context) (trace.Reader, error) {
						src, err := c.openTrace(ctx, path)
						if err != nil {
							return nil, err
						}
						return src, nil
					},
				})
			}

			ctx := cmd.Context()
			sums, err := runner.RunAll(ctx, jobs, config, runner.Options{
				Sink:    sink,
				Metrics: c.serveMetrics(ctx),
				Logger:  c.log,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			holds := true
			for _, sum := range sums {
				fmt.Fprintln(cmd.ErrOrStderr(), sum.String())
				holds = holds && sum.Holds()
			}
			if c.failOnViolation && !holds {
				return errViolation
			}
			return nil
		},
	}

	c.addRunFlags(cmd)
	c.addTraceFlags(cmd)
	cmd.Flags().IntVar(&c.workers, "workers", 0, "Maximum number of concurrent jobs, 0 for one per job")
	return cmd
}

func (c *cli) graphCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the node graph of a formula",
		Long: `Print the node graph of a formula as text, YAML, Graphviz DOT or a Mermaid flowchart.

Examples:
  dverify graph --formula RespondBQR:3:10
  dverify graph --formula AbsentAQ:10 -o dot | dot -Tsvg > absent.svg
  dverify graph --spec graph.yaml -o mermaid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, name, err := c.graph()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch output {
			case "text":
				fmt.Fprintln(out, g.String())
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tLABEL\tNODE")
				for i, n := range g.Nodes() {
					fmt.Fprintf(w, "%d\t%s\t%s\n", i, g.Label(i), n.String())
				}
				return w.Flush()
			case "yaml":
				data, err := mtl.SpecFromGraph(g).Marshal()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			default:
				gen, err := visualize.NewGenerator(output)
				if err != nil {
					return err
				}
				fmt.Fprint(out, gen.Generate(visualize.BuildGraph(g, name)))
				return nil
			}
		},
	}

	c.addGraphFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, yaml, dot or mermaid")
	return cmd
}

func (c *cli) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert a trace between the JSONL and the binary format",
		Long: `Convert a trace between the JSONL and the binary format. The output format follows the
extension of OUTPUT: .jsonl, .json and .ndjson write JSON lines, anything else the binary format.

Examples:
  dverify convert --columns p,q,r,s trace.jsonl trace.bin
  dverify convert trace.bin trace.jsonl`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := c.openTrace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			recs, err := trace.ReadAll(src)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			names := src.Propositions()

			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(args[1])) {
			case ".jsonl", ".json", ".ndjson":
				err = trace.WriteJSONL(f, names, recs)
			default:
				err = trace.WriteBinary(f, recs, len(names))
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			c.log.Info("converted trace", "records", len(recs), "columns", names)
			return nil
		},
	}

	c.addTraceFlags(cmd)
	return cmd
}

func (c *cli) patternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the built-in formula patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARAMS\tDEFAULTS\tFORMULA")
			for _, p := range patterns.All() {
				defaults := util.Map(func(d []int64) string {
					return strings.Join(util.Map(func(a int64) string { return fmt.Sprint(a) }, d), ":")
				}, p.Defaults)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, strings.Join(p.Params, ","),
					strings.Join(defaults, " "), p.Formula)
			}
			return w.Flush()
		},
	}
}

func versionCommand(info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dverify %s\n", info.String())
		},
	}
}

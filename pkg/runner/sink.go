package runner

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/l7mp/dverify/pkg/interval"
	"github.com/l7mp/dverify/pkg/util"
)

// Verdict is the outcome of one monitor step.
type Verdict struct {
	// Monitor names the run that produced the verdict.
	Monitor string
	// Mode is the time model of the step.
	Mode Mode
	// Step is the 1-based step index.
	Step uint64
	// Time is the evaluated instant in discrete mode and the window start in dense mode.
	Time int64
	// End is the exclusive end of the dense window.
	End int64
	// Satisfied is the root value in discrete mode, and whether the root holds over the whole
	// window in dense mode.
	Satisfied bool
	// Intervals lists the sub-intervals of the dense window where the root holds.
	Intervals []interval.Interval
}

// Duration is the length of the evaluated window, one for a discrete step.
func (v Verdict) Duration() int64 {
	if v.Mode == ModeDense {
		return v.End - v.Time
	}
	return 1
}

// SatisfiedDuration is the time within the window where the root holds.
func (v Verdict) SatisfiedDuration() int64 {
	if v.Mode != ModeDense {
		if v.Satisfied {
			return 1
		}
		return 0
	}
	var d int64
	for _, iv := range v.Intervals {
		d += iv.End - iv.Start
	}
	return d
}

func (v Verdict) String() string {
	status := "satisfied"
	if !v.Satisfied {
		status = "violated"
	}
	var b strings.Builder
	if v.Monitor != "" {
		fmt.Fprintf(&b, "%s: ", v.Monitor)
	}
	if v.Mode == ModeDense {
		fmt.Fprintf(&b, "step %d %s %s", v.Step, interval.Interval{Start: v.Time, End: v.End}, status)
		if !v.Satisfied && len(v.Intervals) > 0 {
			fmt.Fprintf(&b, " holds on %s", strings.Join(util.Map(interval.Interval.String, v.Intervals), " "))
		}
		return b.String()
	}
	fmt.Fprintf(&b, "step %d t=%d %s", v.Step, v.Time, status)
	return b.String()
}

// Sink consumes verdicts.
type Sink interface {
	Emit(v Verdict) error
	Flush() error
}

// NewSink creates the sink for an output format.
func NewSink(format Format, w io.Writer) (Sink, error) {
	switch format {
	case FormatText:
		return NewTextSink(w), nil
	case FormatJSON:
		return NewJSONSink(w), nil
	case FormatNone:
		return DiscardSink{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, format)
	}
}

// DiscardSink drops all verdicts.
type DiscardSink struct{}

func (DiscardSink) Emit(Verdict) error { return nil }
func (DiscardSink) Flush() error       { return nil }

// TextSink writes one human readable line per verdict.
type TextSink struct {
	w *bufio.Writer
}

func NewTextSink(w io.Writer) *TextSink { return &TextSink{w: bufio.NewWriter(w)} }

func (s *TextSink) Emit(v Verdict) error {
	_, err := fmt.Fprintln(s.w, v.String())
	return err
}

func (s *TextSink) Flush() error { return s.w.Flush() }

// JSONSink writes one JSON object per verdict.
type JSONSink struct {
	w *bufio.Writer
}

func NewJSONSink(w io.Writer) *JSONSink { return &JSONSink{w: bufio.NewWriter(w)} }

func (s *JSONSink) Emit(v Verdict) error {
	obj := map[string]any{
		"step":      int64(v.Step), //nolint:gosec
		"time":      v.Time,
		"satisfied": v.Satisfied,
	}
	if v.Monitor != "" {
		obj["monitor"] = v.Monitor
	}
	if v.Mode == ModeDense {
		obj["end"] = v.End
		ivs := make([]any, len(v.Intervals))
		for i, iv := range v.Intervals {
			ivs[i] = []any{iv.Start, iv.End}
		}
		obj["intervals"] = ivs
	}
	if _, err := s.w.WriteString(util.Stringify(obj)); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *JSONSink) Flush() error { return s.w.Flush() }

// ViolationFilter forwards only violated verdicts.
type ViolationFilter struct {
	Sink
}

func (f ViolationFilter) Emit(v Verdict) error {
	if v.Satisfied {
		return nil
	}
	return f.Sink.Emit(v)
}

// MemorySink collects verdicts in memory.
type MemorySink struct {
	Verdicts []Verdict
}

func (m *MemorySink) Emit(v Verdict) error {
	v.Intervals = append([]interval.Interval(nil), v.Intervals...)
	m.Verdicts = append(m.Verdicts, v)
	return nil
}

func (m *MemorySink) Flush() error { return nil }

// lockedSink serializes access to a sink shared by concurrent runs.
type lockedSink struct {
	mu   sync.Mutex
	sink Sink
}

// Synchronized wraps a sink so that it can be shared between goroutines.
func Synchronized(s Sink) Sink { return &lockedSink{sink: s} }

func (l *lockedSink) Emit(v Verdict) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Emit(v)
}

func (l *lockedSink) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Flush()
}

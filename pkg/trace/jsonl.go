package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/l7mp/dverify/pkg/util"
)

// DefaultTimeField is the key holding the timestamp of a JSONL record.
const DefaultTimeField = "time"

// JSONLOptions configures how records are extracted from JSON lines.
type JSONLOptions struct {
	// Propositions lists the proposition columns in vector order. When empty the columns are
	// inferred from the first record: every top-level key except the time field, sorted.
	Propositions []string
	// TimeField is the key or JSONPath of the timestamp. Defaults to DefaultTimeField.
	TimeField string
	// Paths maps a proposition name to a key or a JSONPath expression starting with "$".
	// Unmapped propositions are read from the top-level key of the same name.
	Paths map[string]string
	// MissingAsFalse reads absent propositions as false instead of failing.
	MissingAsFalse bool
}

// lineDecoder turns one JSON line into a record.
type lineDecoder struct {
	opts  JSONLOptions
	names []string
	time  jp.Expr
	props []jp.Expr
}

func newLineDecoder(opts JSONLOptions) (*lineDecoder, error) {
	if opts.TimeField == "" {
		opts.TimeField = DefaultTimeField
	}
	d := &lineDecoder{opts: opts}
	t, err := compilePath(opts.TimeField)
	if err != nil {
		return nil, err
	}
	d.time = t
	if len(opts.Propositions) > 0 {
		if err := d.setColumns(opts.Propositions); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// compilePath accepts either a bare key or a JSONPath expression.
func compilePath(path string) (jp.Expr, error) {
	if strings.HasPrefix(path, "$") {
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
		}
		return x, nil
	}
	return jp.Expr{jp.Child(path)}, nil
}

func (d *lineDecoder) setColumns(names []string) error {
	d.names = names
	d.props = make([]jp.Expr, len(names))
	for i, n := range names {
		path := n
		if p, ok := d.opts.Paths[n]; ok {
			path = p
		}
		x, err := compilePath(path)
		if err != nil {
			return err
		}
		d.props[i] = x
	}
	return nil
}

// infer derives the column names from the first record.
func (d *lineDecoder) infer(doc any) error {
	obj, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: record is %T, want an object", ErrFieldType, doc)
	}
	names := []string{}
	for k := range obj {
		if k != d.opts.TimeField {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return d.setColumns(names)
}

func (d *lineDecoder) decode(line []byte, rec *Record) error {
	doc, err := oj.Parse(line)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFieldType, err.Error())
	}
	if d.props == nil {
		if err := d.infer(doc); err != nil {
			return err
		}
	}

	t, err := d.timestamp(doc)
	if err != nil {
		return err
	}
	rec.Time = t

	rec.Props = rec.Props[:0]
	for i, x := range d.props {
		vs := x.Get(doc)
		if len(vs) == 0 {
			if d.opts.MissingAsFalse {
				rec.Props = append(rec.Props, false)
				continue
			}
			return fmt.Errorf("%w: proposition %q at time %d", ErrMissingField, d.names[i], t)
		}
		b, ok := vs[0].(bool)
		if !ok {
			return fmt.Errorf("%w: proposition %q at time %d is %T, want bool", ErrFieldType,
				d.names[i], t, vs[0])
		}
		rec.Props = append(rec.Props, b)
	}
	return nil
}

func (d *lineDecoder) timestamp(doc any) (int64, error) {
	vs := d.time.Get(doc)
	if len(vs) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMissingField, d.opts.TimeField)
	}
	switch v := vs[0].(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: time %v is not an integer", ErrFieldType, v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: time is %T, want an integer", ErrFieldType, v)
	}
}

// JSONLReader reads one JSON object per line. Blank lines are skipped.
type JSONLReader struct {
	r    *bufio.Reader
	dec  *lineDecoder
	line int
}

// NewJSONLReader creates a reader over a JSON lines stream.
func NewJSONLReader(r io.Reader, opts JSONLOptions) (*JSONLReader, error) {
	dec, err := newLineDecoder(opts)
	if err != nil {
		return nil, err
	}
	return &JSONLReader{r: bufio.NewReader(r), dec: dec}, nil
}

// Propositions returns the column names. With inferred columns this is nil until the first
// record is read.
func (j *JSONLReader) Propositions() []string { return j.dec.names }

func (j *JSONLReader) Next(rec *Record) error {
	for {
		line, err := j.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if len(line) == 0 && err != nil {
			return io.EOF
		}
		j.line++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if derr := j.dec.decode(line, rec); derr != nil {
			return fmt.Errorf("line %d: %w", j.line, derr)
		}
		return nil
	}
}

// WriteJSONL encodes records as JSON lines with the given column names.
func WriteJSONL(w io.Writer, names []string, recs []Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range recs {
		if len(rec.Props) != len(names) {
			return fmt.Errorf("%w: record at time %d has %d propositions, want %d",
				ErrMissingField, rec.Time, len(rec.Props), len(names))
		}
		obj := map[string]any{DefaultTimeField: rec.Time}
		for i, n := range names {
			obj[n] = rec.Props[i]
		}
		if _, err := bw.WriteString(util.Stringify(obj)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

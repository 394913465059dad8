// Package trace reads and writes observation traces: sequences of timestamped proposition
// vectors.
package trace

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrTruncated is returned when a binary trace ends in the middle of a record or before the
	// announced record count.
	ErrTruncated = errors.New("truncated trace")
	// ErrMissingField is returned when a record lacks the time or a proposition.
	ErrMissingField = errors.New("missing field")
	// ErrFieldType is returned when a field has the wrong type.
	ErrFieldType = errors.New("invalid field type")
	// ErrRange is returned when a value does not fit the target encoding.
	ErrRange = errors.New("value out of range")
)

// Record is one observation: the proposition values sampled at Time.
type Record struct {
	Time  int64
	Props []bool
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{Time: r.Time, Props: append([]bool(nil), r.Props...)}
}

// Reader is a source of records. Next fills rec and returns io.EOF after the last record.
// Implementations may reuse rec.Props between calls.
type Reader interface {
	Next(rec *Record) error
	// Propositions returns the names of the columns of the proposition vector.
	Propositions() []string
}

// ReadAll drains a reader into memory.
func ReadAll(r Reader) ([]Record, error) {
	ret := []Record{}
	var rec Record
	for {
		err := r.Next(&rec)
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, rec.Clone())
	}
}

// SliceReader serves records from memory.
type SliceReader struct {
	names []string
	recs  []Record
	pos   int
}

// NewSliceReader creates a reader over in-memory records.
func NewSliceReader(names []string, recs []Record) *SliceReader {
	return &SliceReader{names: names, recs: recs}
}

func (s *SliceReader) Next(rec *Record) error {
	if s.pos >= len(s.recs) {
		return io.EOF
	}
	r := s.recs[s.pos]
	s.pos++
	rec.Time = r.Time
	rec.Props = append(rec.Props[:0], r.Props...)
	return nil
}

func (s *SliceReader) Propositions() []string { return s.names }

// selectReader projects the columns of a reader onto a different proposition order.
type selectReader struct {
	Reader
	names   []string
	columns []int
	buf     Record
}

// Select returns a reader that yields the named propositions in the given order. Every name must
// be a column of the underlying reader.
func Select(r Reader, names []string) (Reader, error) {
	have := r.Propositions()
	index := make(map[string]int, len(have))
	for i, n := range have {
		index[n] = i
	}

	identity := len(names) == len(have)
	columns := make([]int, len(names))
	for i, n := range names {
		c, ok := index[n]
		if !ok {
			return nil, fmt.Errorf("%w: proposition %q not in trace columns %v", ErrMissingField, n, have)
		}
		columns[i] = c
		identity = identity && c == i
	}
	if identity {
		return r, nil
	}
	return &selectReader{Reader: r, names: names, columns: columns}, nil
}

func (s *selectReader) Next(rec *Record) error {
	if err := s.Reader.Next(&s.buf); err != nil {
		return err
	}
	rec.Time = s.buf.Time
	rec.Props = rec.Props[:0]
	for _, c := range s.columns {
		if c >= len(s.buf.Props) {
			return fmt.Errorf("%w: record at time %d has %d columns", ErrMissingField, s.buf.Time,
				len(s.buf.Props))
		}
		rec.Props = append(rec.Props, s.buf.Props[c])
	}
	return nil
}

func (s *selectReader) Propositions() []string { return s.names }

// Peek reads ahead far enough to settle inferred columns without consuming a record. It returns
// the first record, or io.EOF for an empty stream.
func Peek(r Reader) (Reader, *Record, error) {
	var rec Record
	if err := r.Next(&rec); err != nil {
		return r, nil, err
	}
	first := rec.Clone()
	return &peekReader{Reader: r, first: &first}, &first, nil
}

type peekReader struct {
	Reader
	first *Record
}

func (p *peekReader) Next(rec *Record) error {
	if p.first != nil {
		rec.Time = p.first.Time
		rec.Props = append(rec.Props[:0], p.first.Props...)
		p.first = nil
		return nil
	}
	return p.Reader.Next(rec)
}

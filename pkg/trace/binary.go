package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// DefaultBinaryColumns is the column order of the benchmark traces: one byte per proposition
// after the 32 bit timestamp.
var DefaultBinaryColumns = []string{"p", "q", "r", "s"}

// BinaryReader decodes the packed benchmark format: a little endian uint32 record count
// followed by records of an int32 timestamp and one byte per proposition.
type BinaryReader struct {
	r       *bufio.Reader
	columns []string
	count   uint32
	read    uint32
	buf     []byte
}

// NewBinaryReader reads the header of a binary trace. A nil columns slice selects
// DefaultBinaryColumns.
func NewBinaryReader(r io.Reader, columns []string) (*BinaryReader, error) {
	if columns == nil {
		columns = DefaultBinaryColumns
	}
	br := bufio.NewReader(r)
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: missing record count", ErrTruncated)
		}
		return nil, err
	}
	return &BinaryReader{
		r:       br,
		columns: columns,
		count:   count,
		buf:     make([]byte, 4+len(columns)),
	}, nil
}

// Count returns the number of records announced in the header.
func (b *BinaryReader) Count() int { return int(b.count) }

func (b *BinaryReader) Propositions() []string { return b.columns }

func (b *BinaryReader) Next(rec *Record) error {
	if b.read >= b.count {
		return io.EOF
	}
	if _, err := io.ReadFull(b.r, b.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: record %d of %d", ErrTruncated, b.read, b.count)
		}
		return err
	}
	b.read++

	rec.Time = int64(int32(binary.LittleEndian.Uint32(b.buf[:4]))) //nolint:gosec
	rec.Props = rec.Props[:0]
	for _, v := range b.buf[4:] {
		rec.Props = append(rec.Props, v != 0)
	}
	return nil
}

// BinaryWriter encodes records in the packed benchmark format. The record count is part of the
// header so it must be known up front.
type BinaryWriter struct {
	w       *bufio.Writer
	width   int
	count   uint32
	written uint32
	buf     []byte
}

// NewBinaryWriter writes the header for count records of width propositions each.
func NewBinaryWriter(w io.Writer, count, width int) (*BinaryWriter, error) {
	if count < 0 || uint64(count) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: record count %d", ErrRange, count)
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(count)); err != nil {
		return nil, err
	}
	return &BinaryWriter{w: bw, width: width, count: uint32(count), buf: make([]byte, 4+width)}, nil
}

// Write appends a record.
func (b *BinaryWriter) Write(rec Record) error {
	if b.written >= b.count {
		return fmt.Errorf("%w: more than %d records", ErrRange, b.count)
	}
	if len(rec.Props) != b.width {
		return fmt.Errorf("%w: record at time %d has %d propositions, want %d", ErrMissingField,
			rec.Time, len(rec.Props), b.width)
	}
	if rec.Time < math.MinInt32 || rec.Time > math.MaxInt32 {
		return fmt.Errorf("%w: time %d does not fit 32 bits", ErrRange, rec.Time)
	}

	binary.LittleEndian.PutUint32(b.buf[:4], uint32(int32(rec.Time))) //nolint:gosec
	for i, v := range rec.Props {
		b.buf[4+i] = 0
		if v {
			b.buf[4+i] = 1
		}
	}
	if _, err := b.w.Write(b.buf); err != nil {
		return err
	}
	b.written++
	return nil
}

// Close flushes the output and checks that the announced number of records was written.
func (b *BinaryWriter) Close() error {
	if err := b.w.Flush(); err != nil {
		return err
	}
	if b.written != b.count {
		return fmt.Errorf("%w: wrote %d of %d records", ErrTruncated, b.written, b.count)
	}
	return nil
}

// WriteBinary encodes a complete trace.
func WriteBinary(w io.Writer, recs []Record, width int) error {
	bw, err := NewBinaryWriter(w, len(recs), width)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := bw.Write(rec); err != nil {
			return err
		}
	}
	return bw.Close()
}

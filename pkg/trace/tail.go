package trace

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// DefaultPollInterval bounds the wait for a write notification before the file is rechecked.
const DefaultPollInterval = 500 * time.Millisecond

// TailReader follows a growing JSONL file. At the end of the file it blocks until the file is
// written to, then continues with the new lines. The stream ends when the context is canceled or
// the file is removed or renamed.
type TailReader struct {
	ctx     context.Context
	file    *os.File
	r       *bufio.Reader
	dec     *lineDecoder
	watcher *fsnotify.Watcher
	partial []byte
	line    int
	poll    time.Duration
	log     logr.Logger
}

// NewTailReader opens path and starts watching it.
func NewTailReader(ctx context.Context, path string, opts JSONLOptions, log logr.Logger) (*TailReader, error) {
	dec, err := newLineDecoder(opts)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &TailReader{
		ctx:     ctx,
		file:    f,
		r:       bufio.NewReader(f),
		dec:     dec,
		watcher: watcher,
		poll:    DefaultPollInterval,
		log:     log.WithName("tail").WithValues("path", path),
	}, nil
}

func (t *TailReader) Propositions() []string { return t.dec.names }

func (t *TailReader) Next(rec *Record) error {
	for {
		chunk, err := t.r.ReadBytes('\n')
		t.partial = append(t.partial, chunk...)
		if err == nil {
			t.line++
			line := bytes.TrimSpace(t.partial)
			if len(line) == 0 {
				t.partial = t.partial[:0]
				continue
			}
			derr := t.dec.decode(line, rec)
			t.partial = t.partial[:0]
			if derr != nil {
				return fmt.Errorf("line %d: %w", t.line, derr)
			}
			return nil
		}
		if !errors.Is(err, io.EOF) {
			return err
		}

		if err := t.wait(); err != nil {
			return err
		}
	}
}

// wait blocks until the file may have grown. It returns io.EOF when following should stop.
func (t *TailReader) wait() error {
	timer := time.NewTimer(t.poll)
	defer timer.Stop()

	select {
	case <-t.ctx.Done():
		t.log.V(2).Info("follow canceled", "pending-bytes", len(t.partial))
		return io.EOF
	case event, ok := <-t.watcher.Events:
		if !ok {
			return io.EOF
		}
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			t.log.V(1).Info("trace file went away", "event", event.Op.String())
			return io.EOF
		}
		if event.Has(fsnotify.Write) {
			t.log.V(4).Info("trace file written")
		}
		return nil
	case err, ok := <-t.watcher.Errors:
		if !ok {
			return io.EOF
		}
		return fmt.Errorf("file watcher: %w", err)
	case <-timer.C:
		return nil
	}
}

// Close stops watching and closes the file.
func (t *TailReader) Close() error {
	werr := t.watcher.Close()
	ferr := t.file.Close()
	return errors.Join(werr, ferr)
}

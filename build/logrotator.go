package build

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the default number of rolled log files kept
	// next to the active one.
	DefaultMaxLogFiles = 3

	// DefaultMaxLogFileSize is the default size in MB at which the log
	// file is rolled.
	DefaultMaxLogFileSize = 10
)

// RotatorConfig describes the file output of the log backend.
type RotatorConfig struct {
	// File is the path of the active log file. Rolled files are created
	// in the same directory.
	File string

	// MaxFileSizeMB is the size at which the file is rolled.
	MaxFileSizeMB int

	// MaxFiles is the number of rolled files kept, zero keeps all.
	MaxFiles int

	// Compress gzips rolled files.
	Compress bool
}

// RotatingLogWriter feeds log lines into a file rotator. Lines written
// before the rotator is started are dropped, so the writer can be handed to
// the log backend at package init time.
type RotatingLogWriter struct {
	mu sync.Mutex

	pipe    *io.PipeWriter
	rotator *rotator.Rotator

	// done is closed once the rotator drained the pipe.
	done chan struct{}
}

// NewRotatingLogWriter creates a writer without file output. Call
// InitLogRotator to attach a log file.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator starts writing to cfg.File, creating its directory owner
// only. It must only be called once and the writer must be closed on
// shutdown so buffered lines reach the file.
func (r *RotatingLogWriter) InitLogRotator(cfg RotatorConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rotator != nil {
		return errors.New("log rotator already started")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator counts in KB. Its output is never teed to stdout,
	// which carries command output.
	rot, err := rotator.New(
		cfg.File, int64(cfg.MaxFileSizeMB)*1024, false, cfg.MaxFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	// Rolled files are gzipped by default.
	if !cfg.Compress {
		rot.SetCompressor(nil, "")
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)

		// A failing rotator, e.g. on a full disk, must not take the
		// vault down with it. Report it and keep draining the pipe so
		// writers never block.
		err := rot.Run(pr)
		if err != nil && !errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
			_, _ = io.Copy(io.Discard, pr)
		}
	}()

	r.rotator = rot
	r.pipe = pw
	r.done = done

	return nil
}

// Write writes b to the log file, if one is attached.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	r.mu.Lock()
	pipe := r.pipe
	r.mu.Unlock()

	if pipe == nil {
		return len(b), nil
	}

	return pipe.Write(b)
}

// Close flushes pending lines and closes the log file. Closing a writer
// that was never started is a no-op.
func (r *RotatingLogWriter) Close() error {
	r.mu.Lock()
	pipe, rot, done := r.pipe, r.rotator, r.done
	r.pipe, r.rotator, r.done = nil, nil, nil
	r.mu.Unlock()

	if pipe == nil {
		return nil
	}

	_ = pipe.Close()
	<-done

	return rot.Close()
}

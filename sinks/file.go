// Package sinks provides reference output-endpoint implementations of
// registry.Sink: a process-safe file sink, a NATS network sink, and an
// in-memory sink for tests.
package sinks

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/quillback/quillback/internal/buffer"
	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// DefaultFileBufferSize is the bufio.Writer size a FileSink opens with.
const DefaultFileBufferSize = 32 * 1024

// batchWriter is the subset of buffer.BatchWriter a FileSink writes
// through when batching is enabled.
type batchWriter interface {
	Write([]byte) (int, error)
	Flush() error
}

// linePool reuses the buffer each Write call assembles its output line
// into, avoiding an allocation per log line on the file sink's hot path.
var linePool = buffer.NewBufferPoolWithCapacity(256)

// FileSink writes formatted lines to a single file, guarded by an advisory
// flock so multiple processes sharing the same path don't interleave
// writes. By default every Write goes straight through a bufio.Writer;
// NewFileSinkBatched instead coalesces writes through a buffer.BatchWriter
// so a burst of small records costs one syscall instead of many.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	batch  *buffer.BatchWriter
	lock   *flock.Flock
	path   string
	size   int64

	minLevel wire.LogLevel
}

// NewFileSink opens (creating if necessary) path for appending.
func NewFileSink(path string, minLevel wire.LogLevel) (*FileSink, error) {
	return newFileSink(path, minLevel, false, 0, 0, 0)
}

// NewFileSinkBatched opens path the same way as NewFileSink, but routes
// writes through a buffer.BatchWriter that auto-flushes once maxBatchSize
// bytes or maxBatchCount records accumulate, or flushInterval elapses,
// whichever comes first.
func NewFileSinkBatched(path string, minLevel wire.LogLevel, maxBatchSize, maxBatchCount int, flushInterval time.Duration) (*FileSink, error) {
	return newFileSink(path, minLevel, true, maxBatchSize, maxBatchCount, flushInterval)
}

func newFileSink(path string, minLevel wire.LogLevel, batched bool, maxBatchSize, maxBatchCount int, flushInterval time.Duration) (*FileSink, error) {
	dir := filepath.Dir(path)
	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	cleanPath := filepath.Clean(path)
	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // #nosec G302 - log files need to be readable
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	s := &FileSink{
		file:     file,
		writer:   bufio.NewWriterSize(file, DefaultFileBufferSize),
		lock:     flock.New(cleanPath),
		path:     cleanPath,
		size:     info.Size(),
		minLevel: minLevel,
	}
	if batched {
		s.batch = buffer.NewBatchWriter(s.writer, maxBatchSize, maxBatchCount, flushInterval)
	}
	return s, nil
}

// ApplyFilters implements registry.Sink: the file sink's only filter is a
// minimum severity threshold.
func (s *FileSink) ApplyFilters(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string) bool {
	return level >= s.minLevel
}

// Write appends formattedMsg (plus a trailing newline) to the file under
// the advisory lock.
func (s *FileSink) Write(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string, namedArgs []transit.NamedArg) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := linePool.Get()
	defer linePool.Put(buf)
	buf.WriteString(formattedMsg)
	if len(formattedMsg) == 0 || formattedMsg[len(formattedMsg)-1] != '\n' {
		buf.WriteByte('\n')
	}

	n, err := s.sink().Write(buf.Bytes())
	if err != nil {
		return err
	}
	s.size += int64(n)
	return nil
}

// sink returns whichever writer Write/Flush/Close should use: the batch
// writer if batching is enabled, otherwise the plain bufio.Writer.
func (s *FileSink) sink() batchWriter {
	if s.batch != nil {
		return s.batch
	}
	return s.writer
}

// Flush implements registry.Sink.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	return s.sink().Flush()
}

// RunPeriodicTasks implements registry.Sink. The file sink has no periodic
// maintenance of its own; rotation policy lives outside this module's
// scope.
func (s *FileSink) RunPeriodicTasks() {}

// Close flushes and releases the underlying file, implementing
// registry.Closer so SinkRegistry.Sweep can release it once unreferenced.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.batch != nil {
		if err := s.batch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
	} else if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
	}
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Path returns the sink's target file path.
func (s *FileSink) Path() string { return s.path }

// Size returns the number of bytes written to the file so far.
func (s *FileSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

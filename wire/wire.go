// Package wire decodes the fixed-layout record header producers write into
// their byte queues. It implements only the FrontendQueueReader decode
// contract; the concrete queue implementations and the producer-side
// argument encoder remain external collaborators.
package wire

import (
	"encoding/binary"
	"fmt"
)

// LogLevel mirrors the severity ordering a Metadata descriptor carries.
// Dynamic means the level travels with the record instead of the metadata.
type LogLevel int8

const (
	TraceL3 LogLevel = iota
	TraceL2
	TraceL1
	Debug
	Info
	Warning
	Error
	Critical
	// Backtrace is not a severity: it tags a record that exists only to be
	// buffered into its logger's backtrace ring, never written live. A
	// producer emits it for a dedicated backtrace-log call site, distinct
	// from an ordinary Log record that merely has a low severity.
	Backtrace
	Dynamic
	None
)

func (l LogLevel) String() string {
	switch l {
	case TraceL3:
		return "TRACE_L3"
	case TraceL2:
		return "TRACE_L2"
	case TraceL1:
		return "TRACE_L1"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	case Backtrace:
		return "BACKTRACE"
	case Dynamic:
		return "DYNAMIC"
	default:
		return "NONE"
	}
}

// EventKind classifies what a record represents and therefore which tail
// shape follows the fixed header.
type EventKind uint8

const (
	Log EventKind = iota
	Flush
	InitBacktrace
	FlushBacktrace
)

// Metadata is the static descriptor of a log site. Producers register one
// instance per call site; the backend looks it up by MetadataID out of a
// caller-supplied registry rather than dereferencing a raw pointer, which is
// the idiomatic Go substitute for the source design's process-static
// pointer (object lifetime here is owned by Go's GC, not a manual registry).
type Metadata struct {
	MessageFormat  string
	SourceLocation string
	Level          LogLevel
	Kind           EventKind
	HasNamedArgs   bool
}

// headerSize is the byte length of the fixed-layout prefix common to every
// record: timestamp, metadata id, logger id, decoder id.
const headerSize = 8 * 4

// Header is the decoded fixed-layout prefix of a wire record. MetadataID,
// LoggerID, and DecoderID are handles into caller-owned registries — the Go
// stand-in for the source design's raw pointers into reference-counted
// objects guaranteed to outlive the record.
type Header struct {
	Timestamp  uint64
	MetadataID uint64
	LoggerID   uint64
	DecoderID  uint64
}

// ErrShortRecord is returned when a buffer doesn't contain a full header (or
// a full declared tail) yet; callers must treat the header as unread and
// retry once more bytes are available, exactly like the source design's
// "leave it logically unread" contract for a partial record.
var ErrShortRecord = fmt.Errorf("wire: short record")

// DecodeHeader parses the fixed prefix from buf and returns the remaining
// bytes (the record's tail: argument blob, flush-flag tail, or dynamic-level
// tail, depending on the Metadata's Kind/Level once resolved by the caller).
func DecodeHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < headerSize {
		return Header{}, nil, ErrShortRecord
	}
	h := Header{
		Timestamp:  binary.LittleEndian.Uint64(buf[0:8]),
		MetadataID: binary.LittleEndian.Uint64(buf[8:16]),
		LoggerID:   binary.LittleEndian.Uint64(buf[16:24]),
		DecoderID:  binary.LittleEndian.Uint64(buf[24:32]),
	}
	return h, buf[headerSize:], nil
}

// EncodeHeader writes h's fixed prefix into buf (which must be at least
// headerSize bytes), returning the number of bytes written. It exists
// primarily so tests and in-process reference producers can construct valid
// records without duplicating the layout.
func EncodeHeader(buf []byte, h Header) (int, error) {
	if len(buf) < headerSize {
		return 0, ErrShortRecord
	}
	binary.LittleEndian.PutUint64(buf[0:8], h.Timestamp)
	binary.LittleEndian.PutUint64(buf[8:16], h.MetadataID)
	binary.LittleEndian.PutUint64(buf[16:24], h.LoggerID)
	binary.LittleEndian.PutUint64(buf[24:32], h.DecoderID)
	return headerSize, nil
}

// HeaderSize reports the fixed prefix length in bytes.
func HeaderSize() int { return headerSize }

// flushTailSize is the width of a Flush record's tail: a handle to the
// shared flush flag.
const flushTailSize = 8

// DecodeFlushTail reads the flush-flag handle from a Flush record's tail.
func DecodeFlushTail(tail []byte) (flagID uint64, rest []byte, err error) {
	if len(tail) < flushTailSize {
		return 0, nil, ErrShortRecord
	}
	return binary.LittleEndian.Uint64(tail[0:8]), tail[flushTailSize:], nil
}

// EncodeFlushTail writes a flush-flag handle into buf.
func EncodeFlushTail(buf []byte, flagID uint64) (int, error) {
	if len(buf) < flushTailSize {
		return 0, ErrShortRecord
	}
	binary.LittleEndian.PutUint64(buf[0:8], flagID)
	return flushTailSize, nil
}

// DecodeDynamicLevelTail reads the trailing level byte a Dynamic-level
// record carries after its argument blob.
func DecodeDynamicLevelTail(tail []byte) (LogLevel, error) {
	if len(tail) < 1 {
		return 0, ErrShortRecord
	}
	return LogLevel(tail[0]), nil
}

// backtraceTailSize is the width of an InitBacktrace record's tail: the
// requested ring capacity, encoded as the "message" body per the original
// design (the producer writes the capacity as an ASCII/decimal-free raw
// integer rather than a formatted string, since there are no named or
// positional arguments to format for this event kind).
const backtraceTailSize = 4

// DecodeBacktraceCapacity reads the requested ring capacity from an
// InitBacktrace record's tail.
func DecodeBacktraceCapacity(tail []byte) (uint32, error) {
	if len(tail) < backtraceTailSize {
		return 0, ErrShortRecord
	}
	return binary.LittleEndian.Uint32(tail[0:4]), nil
}

// EncodeBacktraceCapacity writes a ring capacity into buf.
func EncodeBacktraceCapacity(buf []byte, capacity uint32) (int, error) {
	if len(buf) < backtraceTailSize {
		return 0, ErrShortRecord
	}
	binary.LittleEndian.PutUint32(buf[0:4], capacity)
	return backtraceTailSize, nil
}

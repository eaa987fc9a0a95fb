package sinks

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// NATSSink publishes formatted lines to a NATS subject, buffering and
// batch-publishing when configured for async operation.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	options []nats.Option

	async     bool
	batchSize int

	mu     sync.Mutex
	buffer [][]byte

	minLevel wire.LogLevel
}

// NewNATSSink parses a nats://host/subject URI, with optional async=, batch=,
// max_reconnect= and reconnect_wait= (seconds) query parameters, and connects
// when a host is given, mirroring the reference NATS backend plugin's URI
// conventions.
func NewNATSSink(uri string, minLevel wire.LogLevel) (*NATSSink, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}
	if parsed.Scheme != "nats" {
		return nil, fmt.Errorf("invalid scheme: %s (expected 'nats')", parsed.Scheme)
	}

	s := &NATSSink{
		subject:   strings.TrimPrefix(parsed.Path, "/"),
		async:     true,
		batchSize: 100,
		minLevel:  minLevel,
		buffer:    make([][]byte, 0),
	}

	query := parsed.Query()
	if asyncStr := query.Get("async"); asyncStr != "" {
		s.async, _ = strconv.ParseBool(asyncStr)
	}
	if batchStr := query.Get("batch"); batchStr != "" {
		if n, err := strconv.Atoi(batchStr); err == nil {
			s.batchSize = n
		}
	}

	s.options = []nats.Option{nats.Name("quillback-backend")}
	if maxReconnectStr := query.Get("max_reconnect"); maxReconnectStr != "" {
		if n, err := strconv.Atoi(maxReconnectStr); err == nil {
			s.options = append(s.options, nats.MaxReconnects(n))
		}
	}
	if waitStr := query.Get("reconnect_wait"); waitStr != "" {
		if n, err := strconv.Atoi(waitStr); err == nil {
			s.options = append(s.options, nats.ReconnectWait(time.Duration(n)*time.Second))
		}
	}
	if parsed.User != nil {
		username := parsed.User.Username()
		password, _ := parsed.User.Password()
		s.options = append(s.options, nats.UserInfo(username, password))
	}

	if parsed.Host != "" {
		conn, err := nats.Connect(fmt.Sprintf("nats://%s", parsed.Host), s.options...)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		s.conn = conn
	}

	return s, nil
}

// ApplyFilters implements registry.Sink.
func (s *NATSSink) ApplyFilters(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string) bool {
	return level >= s.minLevel
}

// Write implements registry.Sink, publishing directly or buffering for
// batch publication depending on the async/batch configuration.
func (s *NATSSink) Write(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string, namedArgs []transit.NamedArg) error {
	payload := []byte(formattedMsg)
	if s.async && s.batchSize > 0 {
		return s.bufferWrite(payload)
	}
	return s.directWrite(payload)
}

func (s *NATSSink) bufferWrite(entry []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryCopy := make([]byte, len(entry))
	copy(entryCopy, entry)
	s.buffer = append(s.buffer, entryCopy)
	if len(s.buffer) >= s.batchSize {
		return s.flushBufferLocked()
	}
	return nil
}

func (s *NATSSink) directWrite(entry []byte) error {
	if s.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}
	return s.conn.Publish(s.subject, entry)
}

// Flush implements registry.Sink.
func (s *NATSSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.async && len(s.buffer) > 0 {
		if err := s.flushBufferLocked(); err != nil {
			return err
		}
	}
	if s.conn != nil {
		return s.conn.Flush()
	}
	return nil
}

func (s *NATSSink) flushBufferLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}
	if s.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}
	for _, entry := range s.buffer {
		if err := s.conn.Publish(s.subject, entry); err != nil {
			return fmt.Errorf("publish buffered message: %w", err)
		}
	}
	s.buffer = s.buffer[:0]
	return s.conn.Flush()
}

// RunPeriodicTasks implements registry.Sink; NATS has no periodic
// maintenance beyond the flush path the backend already drives.
func (s *NATSSink) RunPeriodicTasks() {}

// Close drains and disconnects, implementing registry.Closer.
func (s *NATSSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

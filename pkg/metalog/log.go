package metalog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/vigil/internal/telemetry"
)

// Log manages the per-host append-only metadata log files under root/meta.
// Appends for a given hostname serialize through that hostname's own
// mutex, satisfying the single-appender-per-host rule; different hosts
// append concurrently without contention.
type Log struct {
	root string

	mu    sync.Mutex // guards the appenders map itself
	files map[string]*appender
}

type appender struct {
	mu   sync.Mutex
	file *os.File
}

// Open returns a Log rooted at root (files live under root/meta/<hostname>).
func Open(root string) (*Log, error) {
	metaDir := filepath.Join(root, "meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, fmt.Errorf("metalog: create meta dir: %w", err)
	}
	return &Log{root: root, files: make(map[string]*appender)}, nil
}

func (l *Log) appenderFor(hostname string) (*appender, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.files[hostname]; ok {
		return a, nil
	}

	path := filepath.Join(l.root, "meta", hostname)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("metalog: open log for host %s: %w", hostname, err)
	}
	a := &appender{file: f}
	l.files[hostname] = a
	return a, nil
}

// Append appends record to hostname's log, returning the byte offset the
// line was written at (usable as a badger-index pointer for fast
// re-reads).
func (l *Log) Append(ctx context.Context, hostname string, record Record) (int64, error) {
	_, span := telemetry.StartIngestSpan(ctx, "metalog_append", telemetry.Hostname(hostname), telemetry.Path(record.Path))
	defer span.End()

	a, err := l.appenderFor(hostname)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	offset, err := a.file.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, fmt.Errorf("metalog: seek end for host %s: %w", hostname, err)
	}

	line := EncodeLine(record)
	if _, err := a.file.WriteString(line); err != nil {
		return 0, fmt.Errorf("metalog: append for host %s: %w", hostname, err)
	}
	return offset, nil
}

// Close flushes and closes every open per-host file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for host, a := range l.files {
		if err := a.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("metalog: close log for host %s: %w", host, err)
		}
	}
	return firstErr
}

// Stream opens hostname's log for reading and invokes visit once per
// record, in file order, until EOF or visit returns an error.
func (l *Log) Stream(hostname string, visit func(Record) error) error {
	path := filepath.Join(l.root, "meta", hostname)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("metalog: open log for host %s: %w", hostname, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		record, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("metalog: parse line in host %s log: %w", hostname, err)
		}
		if err := visit(record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("metalog: scan host %s log: %w", hostname, err)
	}
	return nil
}

// ReadAt reads exactly one line starting at byte offset off in hostname's
// log, fetching a single record without a full scan.
func (l *Log) ReadAt(hostname string, off int64) (Record, error) {
	path := filepath.Join(l.root, "meta", hostname)
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: open log for host %s: %w", hostname, err)
	}
	defer f.Close()

	if _, err := f.Seek(off, os.SEEK_SET); err != nil {
		return Record{}, fmt.Errorf("metalog: seek host %s log: %w", hostname, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return Record{}, fmt.Errorf("metalog: no line at offset %d for host %s", off, hostname)
	}
	return ParseLine(scanner.Text())
}

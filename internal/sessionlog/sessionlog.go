// Package sessionlog implements the Session Log (C10): an append-only,
// best-effort audit trail of every invocation, written as newline-
// delimited JSON to a per-process file. It never records secrets, raw
// arguments, or raw output — only digests, sizes, and outcome kinds.
package sessionlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRotateThreshold is the default byte size at which the log file
// is rotated to a .1 suffix.
const DefaultRotateThreshold = 64 << 20 // 64 MiB

// Entry is one Session Log record, matching the data model exactly:
// never a secret or raw content, only sizes/kinds/durations/lineage.
type Entry struct {
	Timestamp     time.Time     `json:"timestamp"`
	InvocationID  string        `json:"invocation_id"`
	ToolName      string        `json:"tool_name"`
	ArgumentDigest string       `json:"argument_digest"`
	OutcomeKind   string        `json:"outcome_kind"`
	Duration      time.Duration `json:"duration"`
	BytesOut      int           `json:"bytes_out"`
	NextCursor    string        `json:"next_cursor,omitempty"`
	Phase         string        `json:"phase"` // "start" | "end"
}

// Log is the append-only writer. A write failure is surfaced once via
// the logger and then suppressed for the rest of the process lifetime,
// per §4.10's best-effort contract.
type Log struct {
	logger    zerolog.Logger
	path      string
	threshold int64

	mu       sync.Mutex
	f        *os.File
	size     int64
	degraded bool
}

// New opens (creating if needed) the Session Log file at
// <dir>/<serverPID>.jsonl.
func New(dir string, serverPID int, logger zerolog.Logger) (*Log, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, itoa(serverPID)+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	info, _ := f.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}
	return &Log{logger: logger, path: path, threshold: DefaultRotateThreshold, f: f, size: size}, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Append writes one Session Log entry. Failures are logged at most once.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.degraded {
		return
	}

	e.Timestamp = time.Now().UTC()
	line, err := json.Marshal(e)
	if err != nil {
		l.fail(err)
		return
	}
	line = append(line, '\n')

	if l.size >= l.threshold {
		if err := l.rotateLocked(); err != nil {
			l.fail(err)
			return
		}
	}

	n, err := l.f.Write(line)
	if err != nil {
		l.fail(err)
		return
	}
	l.size += int64(n)
}

func (l *Log) rotateLocked() error {
	if err := l.f.Close(); err != nil {
		return err
	}
	rotated := l.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(l.path, rotated); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	l.f = f
	l.size = 0
	return nil
}

func (l *Log) fail(err error) {
	l.degraded = true
	l.logger.Error().Err(err).Msg("session log write failed, suppressing further writes")
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

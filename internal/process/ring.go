package process

import (
	"io"
	"os"
	"sync"
)

// DefaultRingSize is the default number of trailing bytes kept in memory
// per stream (stdout or stderr) of a process session.
const DefaultRingSize = 1 << 20 // 1 MiB

// ring is a bounded in-memory buffer for the most recent bytes of a
// stream, backed by an append-only spill file holding the full history.
// Writes come from a single collector goroutine; reads may come from
// many concurrent log-fetch invocations, so access is guarded by a
// reader-writer lock even though there is only ever one writer.
type ring struct {
	mu   sync.RWMutex
	buf  []byte // fixed-capacity circular buffer of the tail
	size int    // logical length written so far (monotonic)
	cap  int

	spill     *os.File
	spillPath string
}

func newRing(cap int, spillPath string) (*ring, error) {
	if cap <= 0 {
		cap = DefaultRingSize
	}
	f, err := os.OpenFile(spillPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	return &ring{cap: cap, spill: f, spillPath: spillPath}, nil
}

// Write appends p to the ring's tail buffer and to the spill file. It
// implements io.Writer so it can sit behind an io.MultiWriter alongside
// stdout/stderr piping.
func (r *ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.spill.Write(p); err != nil {
		return 0, err
	}

	r.buf = append(r.buf, p...)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
	r.size += len(p)
	return len(p), nil
}

// Len returns the total logical number of bytes written so far.
func (r *ring) Len() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(r.size)
}

// ReadFrom returns the bytes written from byte offset from onward, up to
// the current end. Reading is idempotent and does not consume the
// buffer: a subsequent call with the same offset returns the same bytes
// (assuming no further writes). It transparently falls back to the
// spill file when the requested offset predates what the in-memory tail
// still holds.
func (r *ring) ReadFrom(from int64) ([]byte, error) {
	r.mu.RLock()
	total := int64(r.size)
	tailStart := total - int64(len(r.buf))
	defer r.mu.RUnlock()

	if from < 0 {
		from = 0
	}
	if from >= total {
		return nil, nil
	}

	if from >= tailStart {
		return append([]byte(nil), r.buf[from-tailStart:]...), nil
	}

	// Fall back to the spill file for history evicted from the tail.
	data := make([]byte, total-from)
	n, err := r.spill.ReadAt(data, from)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}

// Close closes the spill file handle. The spill file itself is left on
// disk; callers that need it removed call os.Remove(spillPath)
// explicitly (Reap does not).
func (r *ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spill.Close()
}

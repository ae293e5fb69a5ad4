// Package transport implements the Transport Adapter (C1): the stdio
// newline-delimited-JSON loop and the SSE/HTTP surface, both driving the
// same Dispatcher so the wire format is the only thing that varies
// between them.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hanzoai/mcpcore/internal/dispatch"
)

// Stdio serves one JSON-RPC session over newline-delimited JSON on the
// given reader/writer pair. Writes are serialized: nothing but the
// wire's JSON-RPC messages may ever reach w, since in this mode the
// client treats stdout as the entire protocol channel.
type Stdio struct {
	d      *dispatch.Dispatcher
	logger zerolog.Logger

	writeMu sync.Mutex
}

// NewStdio builds a Stdio transport around d.
func NewStdio(d *dispatch.Dispatcher, logger zerolog.Logger) *Stdio {
	return &Stdio{d: d, logger: logger}
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// newline-delimited responses to w until r is exhausted or a read fails,
// then waits for in-flight requests. ctx is passed to every dispatched
// request; cancelling it does not stop the read loop. Each request is
// dispatched in its own goroutine so a
// long-running tool invocation never blocks reading the next request
// (the protocol allows concurrent in-flight calls, arbitrated by id).
func (s *Stdio) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.d.Handle(ctx, line)
			if resp == nil {
				return
			}
			s.write(w, resp)
		}()
	}
	return scanner.Err()
}

func (s *Stdio) write(w io.Writer, resp *dispatch.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal response")
		return
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := w.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to write response")
	}
}

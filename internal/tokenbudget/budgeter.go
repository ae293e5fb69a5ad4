// Package tokenbudget implements the Token Budgeter: it counts tokens in
// candidate response payloads against a deterministic byte-pair-encoding
// vocabulary and truncates or paginates oversize results to the
// server-wide response_token_cap, per the contract in §4.3.
package tokenbudget

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
)

// VocabularyName identifies the bundled BPE vocabulary. It is versioned
// alongside the binary; a cursor minted under one vocabulary is invalid
// against another (see Cursor Store), so this string is never changed
// without also bumping the cursor kind.
const VocabularyName = "cl100k_base"

// FramingReserve is subtracted from the cap before a list payload is
// packed, leaving headroom for the envelope (content-type wrapper,
// next_cursor field, JSON-RPC result wrapper) that surrounds the
// payload on the wire.
const FramingReserve = 500

// Budgeter counts tokens against a fixed cap using a process-wide
// tokenizer instance (tiktoken's BPE tables are expensive to build and
// safe to share read-only across goroutines).
type Budgeter struct {
	cap  int
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// New creates a Budgeter with the given response_token_cap.
func New(cap int) *Budgeter {
	return &Budgeter{cap: cap}
}

// Cap returns the configured response_token_cap.
func (b *Budgeter) Cap() int {
	return b.cap
}

func (b *Budgeter) encoder() (*tiktoken.Tiktoken, error) {
	b.once.Do(func() {
		b.enc, b.err = tiktoken.GetEncoding(VocabularyName)
	})
	return b.enc, b.err
}

// Count returns the deterministic token count of s.
func (b *Budgeter) Count(s string) (int, error) {
	enc, err := b.encoder()
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.Internal, err, "tokenizer unavailable", "")
	}
	return len(enc.Encode(s, nil, nil)), nil
}

// Fits reports whether s's token count is within the cap.
func (b *Budgeter) Fits(s string) (bool, int, error) {
	n, err := b.Count(s)
	if err != nil {
		return false, 0, err
	}
	return n <= b.cap, n, nil
}

// PackList takes a slice of pre-serialized item strings and the
// rendering function used to serialize the whole candidate list, and
// returns the largest prefix count whose serialisation fits under
// cap-FramingReserve. It implements step 2 of §4.3's contract.
func (b *Budgeter) PackList(items []string, render func([]string) string) (fit int, truncated bool, err error) {
	budget := b.cap - FramingReserve
	if budget <= 0 {
		return 0, true, coreerrors.New(coreerrors.OutputTooLarge, "response_token_cap too small for framing reserve", "")
	}

	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		n, cerr := b.Count(render(items[:mid]))
		if cerr != nil {
			return 0, false, cerr
		}
		if n <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, lo < len(items), nil
}

// TruncateBlob truncates a single large text blob to fit within the cap,
// appending a visible marker naming the original byte size. It
// implements step 3 of §4.3's contract.
func (b *Budgeter) TruncateBlob(s string) (string, bool, error) {
	fits, _, err := b.Fits(s)
	if err != nil {
		return "", false, err
	}
	if fits {
		return s, false, nil
	}

	enc, err := b.encoder()
	if err != nil {
		return "", false, coreerrors.Wrap(coreerrors.Internal, err, "tokenizer unavailable", "")
	}

	marker := fmt.Sprintf("\n[... truncated, original size %d bytes]", len(s))
	markerTokens := len(enc.Encode(marker, nil, nil))
	budget := b.cap - markerTokens
	if budget <= 0 {
		return "", false, coreerrors.New(coreerrors.OutputTooLarge, "no truncation-safe representation exists", "")
	}

	tokens := enc.Encode(s, nil, nil)
	if budget >= len(tokens) {
		budget = len(tokens)
	}
	head := enc.Decode(tokens[:budget])
	return head + marker, true, nil
}

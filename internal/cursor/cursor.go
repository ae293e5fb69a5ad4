// Package cursor implements the Cursor Store: minting and redeeming
// opaque continuation cursors for paginated lists, streamed process
// logs, and batched search results. Cursors are signed JWTs so they are
// tamper-evident and self-expiring without the server needing to keep
// every minted cursor in memory forever; the in-memory index still
// tracks source lineage so a cursor can be invalidated early when its
// source (a process session, a directory snapshot) is destroyed.
package cursor

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeebo/xxh3"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/tokenbudget"
)

// Kind distinguishes the three cursor shapes named in the data model.
type Kind string

const (
	KindPaginatedList Kind = "paginated_list"
	KindStreamedLog   Kind = "streamed_log"
	KindBatchedSearch Kind = "batched_search"
)

// DefaultIdleTimeout is the default cursor lifetime before it expires
// even if its source remains live.
const DefaultIdleTimeout = 15 * time.Minute

// claims is the JWT payload embedded in every minted cursor.
type claims struct {
	jwt.RegisteredClaims
	Kind     Kind   `json:"kind"`
	SourceID string `json:"sid"`
	Offset   int64  `json:"off"`
	Checksum string `json:"chk"`
	Vocab    string `json:"vocab"`
}

// Store mints and redeems cursors. Signing key is process-lifetime
// random; cursors do not need to survive a restart.
type Store struct {
	key         []byte
	idleTimeout time.Duration

	mu      sync.Mutex
	sources map[string]bool // sourceID -> still valid
}

// New creates a Store with a fresh random signing key.
func New(idleTimeout time.Duration) *Store {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &Store{key: key, idleTimeout: idleTimeout, sources: map[string]bool{}}
}

// Digest computes the deterministic argument digest used both for
// Session Log entries and for binding a cursor to its originating call.
func Digest(argsJSON []byte) string {
	return hex64(xxh3.Hash(argsJSON))
}

func hex64(h uint64) string {
	const hexits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexits[h&0xF]
		h >>= 4
	}
	return string(buf)
}

// RegisterSource marks sourceID as live, so cursors over it remain
// redeemable until InvalidateSource is called.
func (s *Store) RegisterSource(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[sourceID] = true
}

// InvalidateSource marks sourceID as gone; any cursor referencing it
// will fail redemption with Gone from then on.
func (s *Store) InvalidateSource(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, sourceID)
}

func (s *Store) sourceLive(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[sourceID]
}

// Mint creates an opaque cursor string for the given kind/source/offset,
// binding it to argsJSON's digest.
func (s *Store) Mint(kind Kind, sourceID string, offset int64, argsJSON []byte) (string, error) {
	s.RegisterSource(sourceID)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.idleTimeout)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Kind:     kind,
		SourceID: sourceID,
		Offset:   offset,
		Checksum: Digest(argsJSON),
		Vocab:    tokenbudget.VocabularyName,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.Internal, err, "failed to mint cursor", "")
	}
	return signed, nil
}

// Redemption is the decoded, verified contents of a cursor presented
// back to the server.
type Redemption struct {
	Kind     Kind
	SourceID string
	Offset   int64
}

// Redeem verifies cursorStr's signature and expiry, checks that its
// source is still live, and that its checksum matches argsJSON's digest.
// A structurally invalid or expired cursor yields NotFound; a live
// cursor whose source was invalidated yields Gone; a checksum mismatch
// yields CursorMismatch — a stale cursor never silently resets to a
// fresh start.
func (s *Store) Redeem(cursorStr string, argsJSON []byte) (*Redemption, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(cursorStr, &c, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil || !tok.Valid {
		return nil, coreerrors.Wrap(coreerrors.NotFound, err, "cursor is invalid or expired", "")
	}

	if c.Vocab != tokenbudget.VocabularyName {
		return nil, coreerrors.New(coreerrors.CursorMismatch, "cursor was minted under a different tokenizer vocabulary", c.Vocab)
	}

	if !s.sourceLive(c.SourceID) {
		return nil, coreerrors.New(coreerrors.Gone, "cursor source no longer exists", c.SourceID)
	}

	if c.Checksum != Digest(argsJSON) {
		return nil, coreerrors.New(coreerrors.CursorMismatch, "cursor redeemed against different arguments than it was minted for", c.SourceID)
	}

	return &Redemption{Kind: c.Kind, SourceID: c.SourceID, Offset: c.Offset}, nil
}

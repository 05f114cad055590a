// Package session holds the single-threaded-per-session state the analyzer
// needs across one compile: scratch-path naming and the configuration the
// rest of the compiler consults (§5 Concurrency & Resource Model). No
// process-wide state is kept here — every field lives on a *Session value
// the caller owns and threads through one Compile call.
package session

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/hiveql-compiler/internal/config"
	"github.com/dshills/hiveql-compiler/internal/log"
)

// Session is the per-compilation resource owner. A Session is not safe for
// concurrent use by more than one analysis at a time — it is "single
// threaded cooperative", matching the compiler it backs. Distinct Sessions
// never collide on scratch paths, since each carries its own uuid.
type Session struct {
	id      string
	scratch string
	cfg     *config.Config
	log     log.Logger

	counter atomic.Int64
}

// New creates a Session with a fresh random id, rooted at cfg.ScratchDir.
func New(cfg *config.Config, logger log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	id := uuid.New().String()
	return &Session{
		id:      id,
		scratch: cfg.ScratchDir,
		cfg:     cfg,
		log:     logger.With("session", id),
	}
}

// ID returns the session's random identifier.
func (s *Session) ID() string { return s.id }

// Config returns the configuration this session was created with.
func (s *Session) Config() *config.Config { return s.cfg }

// Log returns the session's logger.
func (s *Session) Log() log.Logger { return s.log }

// NextScratchPath allocates the next scratch destination path for destName
// (a table name, "_dir", or similar label), per the destination layout
// rule in §6: "<scratchDir>/<sessionId>.<counter>.<destName>". The counter
// is monotonic for the lifetime of the session, so repeated calls for the
// same destName still get distinct paths (multi-insert, §4 supplement).
func (s *Session) NextScratchPath(destName string) string {
	n := s.counter.Add(1)
	name := fmt.Sprintf("%s.%d.%s", s.id, n, destName)
	return filepath.Join(s.scratch, name)
}

// Reset clears the per-query counter, as required between independent
// analyses sharing one Session (§5's reset() contract). Configuration and
// the session id are unaffected — only destination-path allocation state.
func (s *Session) Reset() {
	s.counter.Store(0)
}

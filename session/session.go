// Package session implements the per-document serialization point (C3):
// the document session that assigns operation ids, transforms incoming
// operations against concurrent history, applies them to in-memory content,
// and hands off persistence and broadcast once the lock is released.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/ot"
)

// defaultRecentBufferCap is the recent-operations buffer depth a Manager
// starts with, and the one a session falls back to when given a
// non-positive cap.
const defaultRecentBufferCap = 100

// documentSession holds the ephemeral per-document state. The zero-value
// lock serializes every mutation. Change-log writes, content writes and
// broadcasts never run under it; the one storage call made while it is held
// is maybeResync's document read, which happens only while recent is empty.
type documentSession struct {
	mu           sync.Mutex
	documentID   string
	content      string
	version      int64
	recent       []ot.Operation
	recentCap    int
	lastActivity time.Time

	// persistMu/persistCond/nextPersist form a ticket turnstile: Ingest
	// assigns each applied operation a ticket (sess.version, minted while
	// sess.mu is still held, so tickets are handed out in apply order), then
	// waits its turn here before running persist+broadcast. This keeps
	// persistence and broadcast outside the document lock while still
	// guaranteeing every caller's goroutine reaches the network in the same
	// order its operation was applied — unlock-then-broadcast from each
	// goroutine independently cannot give that guarantee, since the OS
	// scheduler is free to run them out of order once sess.mu is released.
	persistMu   sync.Mutex
	persistCond *sync.Cond
	nextPersist int64
}

func newDocumentSession(documentID, content string, recentCap int) *documentSession {
	if recentCap <= 0 {
		recentCap = defaultRecentBufferCap
	}
	sess := &documentSession{
		documentID:   documentID,
		content:      content,
		recentCap:    recentCap,
		lastActivity: time.Now(),
		nextPersist:  1,
	}
	sess.persistCond = sync.NewCond(&sess.persistMu)
	return sess
}

// awaitPersistTurn blocks until ticket is the next one allowed to persist.
// The caller must call releasePersistTurn() exactly once afterward,
// once its own persist+broadcast work is done.
func (s *documentSession) awaitPersistTurn(ticket int64) {
	s.persistMu.Lock()
	for s.nextPersist != ticket {
		s.persistCond.Wait()
	}
}

func (s *documentSession) releasePersistTurn() {
	s.nextPersist++
	s.persistCond.Broadcast()
	s.persistMu.Unlock()
}

// concurrentSince selects the slice of recent operations concurrent with op:
// every already-applied entry op's submitter had not yet seen, i.e. entries
// whose operationId is greater than op.BaseVersion (the last operationId the
// client had observed when it issued op), sorted ascending by operationId.
// This must never compare against op.OperationID itself — by the time
// Ingest calls this, op has already been minted the next id in sequence, so
// every entry in recent necessarily has a smaller one, and a comparison
// against it would always come back empty.
func (s *documentSession) concurrentSince(op ot.Operation) []ot.Operation {
	var result []ot.Operation
	for _, h := range s.recent {
		if h.OperationID > op.BaseVersion {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OperationID < result[j].OperationID })
	return result
}

func (s *documentSession) appendRecent(op ot.Operation) {
	s.recent = append(s.recent, op)
	if len(s.recent) > s.recentCap {
		s.recent = s.recent[len(s.recent)-s.recentCap:]
	}
}

func (s *documentSession) idleSince() time.Duration {
	return time.Since(s.lastActivity)
}

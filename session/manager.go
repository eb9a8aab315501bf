package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/apperr"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/metrics"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/ot"
	"github.com/redis/go-redis/v9"
)

// Broadcast is the outward-facing event a session publishes once an
// operation has been applied and the lock released. Defined here, not in
// the transport package, so session has no dependency on room/wsapi — the
// transport layer implements Broadcaster and is injected at construction.
type Broadcast struct {
	Operation  ot.Operation
	DocumentID string
	UserID     string
	Timestamp  time.Time
}

type Broadcaster interface {
	Broadcast(b Broadcast)
}

// MembershipChecker reports whether a document still has active room
// subscribers, consulted by the idle-eviction sweep so a session is never
// evicted out from under a connected client.
type MembershipChecker interface {
	HasSubscribers(documentID string) bool
}

// Manager owns the concurrent map of document sessions. Entries are created
// lazily by compare-and-set and mutated only under the entry's own lock —
// never a global lock.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*documentSession

	store       docstore.Store
	changes     changelog.Store
	redis       *redis.Client
	broadcaster Broadcaster
	membership  MembershipChecker

	nextID      int64
	idleTimeout time.Duration
	recentCap   int

	stopSweep chan struct{}
}

func NewManager(store docstore.Store, changes changelog.Store, redisClient *redis.Client, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*documentSession),
		store:       store,
		changes:     changes,
		redis:       redisClient,
		idleTimeout: idleTimeout,
		recentCap:   defaultRecentBufferCap,
		stopSweep:   make(chan struct{}),
	}
}

// SetRecentBufferCap overrides the default recent-operations buffer depth
// (RECENT_OPERATIONS_CAP) for sessions created from this point on; existing
// sessions keep whatever cap they were created with.
func (m *Manager) SetRecentBufferCap(n int) {
	if n > 0 {
		m.recentCap = n
	}
}

// SetBroadcaster wires the transport layer after construction, avoiding an
// import cycle between session and its consumer.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

func (m *Manager) SetMembershipChecker(c MembershipChecker) {
	m.membership = c
}

func (m *Manager) sessionFor(ctx context.Context, documentID string) (*documentSession, error) {
	m.mu.RLock()
	sess, ok := m.sessions[documentID]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[documentID]; ok {
		return sess, nil
	}

	doc, err := m.store.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	sess = newDocumentSession(documentID, doc.Content, m.recentCap)
	m.sessions[documentID] = sess
	return sess, nil
}

// Evict drops the in-memory session for documentID. The next operation
// re-initializes it from persisted content. Used on revert and external
// content replacement (the reset hook docstore.Store.ResetSession calls
// into).
func (m *Manager) Evict(documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, documentID)
}

// Ingest runs the full ingest protocol for a client operation. applied is
// false when the transformed operation was dropped (RETAIN, or a DELETE
// transformed to zero length) — the caller must not persist or broadcast in
// that case; Ingest already skipped both.
func (m *Manager) Ingest(ctx context.Context, op ot.Operation) (transformed ot.Operation, applied bool, err error) {
	if !op.Valid() {
		metrics.OperationsIngested.WithLabelValues("invalid").Inc()
		return ot.Operation{}, false, fmt.Errorf("operation failed validation: %w", apperr.ErrInvalidOperation)
	}

	sess, err := m.sessionFor(ctx, op.DocumentID)
	if err != nil {
		metrics.OperationsIngested.WithLabelValues("error").Inc()
		return ot.Operation{}, false, fmt.Errorf("session init: %w", err)
	}
	m.RetryPending(ctx, op.DocumentID)

	start := time.Now()

	sess.mu.Lock()
	op.OperationID = atomic.AddInt64(&m.nextID, 1)
	concurrent := sess.concurrentSince(op)
	m.maybeResync(ctx, sess)

	result := ot.TransformAgainst(op, concurrent)
	if result.Type == ot.Retain || (result.Type == ot.Delete && result.Length <= 0) {
		sess.mu.Unlock()
		metrics.OperationsIngested.WithLabelValues("dropped").Inc()
		return ot.Operation{}, false, nil
	}

	changedText := changedContent(sess.content, result)
	sess.content = ot.Apply(sess.content, result)
	sess.appendRecent(result)
	sess.version++
	ticket := sess.version
	sess.lastActivity = time.Now()
	newContent := sess.content
	sess.mu.Unlock()

	metrics.TransformLatency.Observe(time.Since(start).Seconds())
	metrics.OperationsIngested.WithLabelValues("applied").Inc()

	// ticket was minted while sess.mu was still held, in apply order;
	// waiting for it here (outside that lock) before persisting and
	// broadcasting is what keeps /operations delivery in that same order
	// even though the lock has already been released.
	sess.awaitPersistTurn(ticket)
	m.persist(ctx, op.DocumentID, op.UserID, result, changedText, newContent)
	sess.releasePersistTurn()

	return result, true, nil
}

// changedContent returns the text the change-log entry should record: the
// inserted content for INSERT, or the text actually removed for DELETE —
// read from the pre-apply document since the operation itself only carries
// a length, not the characters it removes.
func changedContent(before string, op ot.Operation) string {
	if op.Type == ot.Insert {
		return op.Content
	}
	runes := []rune(before)
	start := op.Position
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := start + op.Length
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}

// maybeResync implements the optional resync step of the ingest protocol.
// It only overwrites in-memory content when recent is empty, i.e. there are
// no pending unacknowledged operations the in-memory state reflects that
// persistence hasn't seen yet.
func (m *Manager) maybeResync(ctx context.Context, sess *documentSession) {
	if len(sess.recent) > 0 {
		return
	}
	doc, err := m.store.GetByID(ctx, sess.documentID)
	if err != nil || doc == nil {
		return
	}
	if doc.Content != sess.content {
		sess.content = doc.Content
		sess.recent = sess.recent[:0]
	}
}

// persist runs outside the session lock, guarded by the caller holding that
// document's persist ticket turnstile (see Ingest) so calls for a given
// document never run concurrently or out of order: change-log append,
// document content flush, then broadcast — in that order, broadcasting
// regardless of whether persistence succeeded, per the
// TRANSIENT_PERSISTENCE_FAILURE policy (in-memory and broadcast state always
// agree; storage may lag).
func (m *Manager) persist(ctx context.Context, documentID, userID string, op ot.Operation, changedText, content string) {
	entry := changelog.Entry{
		DocumentID: documentID,
		UserID:     userID,
		ChangeType: changeType(op),
		Content:    changedText,
		Position:   op.Position,
	}
	if _, err := m.changes.Append(ctx, entry); err != nil {
		log.Printf("session: change log append failed for %s: %v", documentID, err)
		m.markPending(documentID)
		metrics.PersistenceFailures.Inc()
	}

	if err := m.store.UpdateContent(ctx, documentID, content); err != nil {
		log.Printf("session: content persist failed for %s: %v", documentID, err)
		m.markPending(documentID)
		metrics.PersistenceFailures.Inc()
	} else {
		m.clearPending(documentID)
	}

	if m.broadcaster != nil {
		m.broadcaster.Broadcast(Broadcast{
			Operation:  op,
			DocumentID: documentID,
			UserID:     userID,
			Timestamp:  time.Now(),
		})
	}
}

func changeType(op ot.Operation) changelog.ChangeType {
	if op.Type == ot.Insert {
		return changelog.Insert
	}
	return changelog.Delete
}

func pendingKey(documentID string) string {
	return fmt.Sprintf("doc:%s:persist_pending", documentID)
}

func (m *Manager) markPending(documentID string) {
	if m.redis == nil {
		return
	}
	m.redis.Set(context.Background(), pendingKey(documentID), "true", time.Hour)
}

func (m *Manager) clearPending(documentID string) {
	if m.redis == nil {
		return
	}
	m.redis.Del(context.Background(), pendingKey(documentID))
}

func (m *Manager) hasPending(documentID string) bool {
	if m.redis == nil {
		return false
	}
	v, _ := m.redis.Get(context.Background(), pendingKey(documentID)).Result()
	return v == "true"
}

// RetryPending opportunistically flushes a document's in-memory content if
// the last persistence attempt failed. Called on the next ingested
// operation for that document, per the retry policy.
func (m *Manager) RetryPending(ctx context.Context, documentID string) {
	if !m.hasPending(documentID) {
		return
	}
	m.mu.RLock()
	sess, ok := m.sessions[documentID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	sess.mu.Lock()
	content := sess.content
	sess.mu.Unlock()

	if err := m.store.UpdateContent(ctx, documentID, content); err != nil {
		log.Printf("session: retry pending persist failed for %s: %v", documentID, err)
		return
	}
	m.clearPending(documentID)
}

// StartIdleSweep runs a background ticker, grounded on the teacher's hourly
// SessionRecovery.StartCleanupRoutine pattern, but on the much shorter
// quiescence period that governs per-document session eviction. A session
// is only evicted when idle AND it has no room subscribers, per spec.
func (m *Manager) StartIdleSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweepIdle()
			case <-m.stopSweep:
				return
			}
		}
	}()
}

func (m *Manager) StopIdleSweep() {
	close(m.stopSweep)
}

func (m *Manager) sweepIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for documentID, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.idleSince() > m.idleTimeout
		sess.mu.Unlock()

		if !idle {
			continue
		}
		if m.membership != nil && m.membership.HasSubscribers(documentID) {
			continue
		}
		delete(m.sessions, documentID)
		log.Printf("session: evicted idle document session %s", documentID)
	}
}

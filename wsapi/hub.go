package wsapi

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/metrics"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/room"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/session"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/userstore"
	"github.com/redis/go-redis/v9"
)

const (
	pathOperations = "/operations"
	pathCursors    = "/cursors"
	pathUsers      = "/users"
	pathLegacy     = ""
)

// Hub is the WebSocket-facing glue between package room (authorization and
// membership) and package session (OT ingest). It owns the client registry
// and is the concrete implementation of session.Broadcaster and
// session.MembershipChecker injected into package session at wiring time.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool // documentID -> clients connected to that document

	register   chan *client
	unregister chan *client

	rm       *room.Manager
	sessions *session.Manager
	changes  changelog.Store
	users    userstore.Store
	redis    *redis.Client
}

func NewHub(rm *room.Manager, sessions *session.Manager, changes changelog.Store, users userstore.Store, redisClient *redis.Client) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		rm:         rm,
		sessions:   sessions,
		changes:    changes,
		users:      users,
		redis:      redisClient,
	}
}

// Run processes registration churn. Message delivery itself goes straight
// to client.send from dispatch/broadcast paths, matching the teacher's
// hub.broadcast channel pattern but scoped per document instead of one
// global channel, since a connection here may span several documents.
func (h *Hub) Run() {
	for {
		select {
		case <-h.register:
			// Connections are added to a room's client set lazily on
			// their first subscribe/edit/cursor message, once their
			// documentID is known.

		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(documentID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[documentID] == nil {
		h.rooms[documentID] = make(map[*client]bool)
	}
	h.rooms[documentID][c] = true
}

func (h *Hub) removeClient(c *client) {
	if c.documentID == "" {
		return
	}
	h.mu.Lock()
	registered := false
	for documentID, clients := range h.rooms {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			registered = true
			if len(clients) == 0 {
				delete(h.rooms, documentID)
			}
		}
	}
	if registered {
		close(c.send)
	}
	h.mu.Unlock()

	if c.userID != "" {
		left := h.rm.Disconnect(c.userID)
		for _, documentID := range left {
			h.publishPresence(documentID, presenceEnvelope{
				Type:       "user_left",
				DocumentID: documentID,
				UserID:     c.userID,
				UserName:   c.userName,
				UserCount:  h.rm.MemberCount(documentID),
			})
		}
	}
}

// Broadcast implements session.Broadcaster: a transformed operation, ready
// to fan out to every subscriber of /<docId>/operations (and the legacy
// root path) across every process sharing this Redis instance.
func (h *Hub) Broadcast(b session.Broadcast) {
	payload, err := json.Marshal(operationEnvelope{
		Operation:  b.Operation,
		DocumentID: b.DocumentID,
		UserID:     b.UserID,
		Timestamp:  b.Timestamp,
	})
	if err != nil {
		log.Printf("wsapi: marshal broadcast: %v", err)
		return
	}
	h.publish(b.DocumentID, "operation", payload)
}

// HasSubscribers implements session.MembershipChecker via the room manager.
func (h *Hub) HasSubscribers(documentID string) bool {
	return h.rm.HasSubscribers(documentID)
}

func (h *Hub) publishPresence(documentID string, env presenceEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.publish(documentID, "presence", payload)
}

func (h *Hub) publishCursor(documentID string, env cursorEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.publish(documentID, "cursor", payload)
}

// publish round-trips through Redis when a client is configured, whether or
// not another process is listening — the same path serves both same-process
// and cross-process delivery, mirroring the teacher's subscribeToRoom/Publish
// pattern. With no Redis client, or when the publish fails, it delivers to
// this process's clients directly.
func (h *Hub) publish(documentID, kind string, payload []byte) {
	if h.redis == nil {
		h.deliverLocal(documentID, kind, payload)
		return
	}

	data, err := json.Marshal(pubsubEnvelope{Kind: kind, DocumentID: documentID, Payload: payload})
	if err != nil {
		log.Printf("wsapi: marshal pubsub envelope: %v", err)
		return
	}
	if err := h.redis.Publish(context.Background(), pubsubChannel(documentID), data).Err(); err != nil {
		log.Printf("wsapi: redis publish failed for %s: %v", documentID, err)
		h.deliverLocal(documentID, kind, payload)
	}
}

func pubsubChannel(documentID string) string {
	return "doc:" + documentID
}

func (h *Hub) deliverLocal(documentID, kind string, payload []byte) {
	path := pathForKind(kind)

	h.mu.RLock()
	clients := h.rooms[documentID]
	recipients := make([]*client, 0, len(clients))
	for c := range clients {
		if c.subscribedTo(path) || c.subscribedTo(pathLegacy) {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	metrics.BroadcastFanout.Observe(float64(len(recipients)))

	for _, c := range recipients {
		select {
		case c.send <- payload:
		default:
			log.Printf("wsapi: dropping slow consumer %s in %s", c.userID, documentID)
		}
	}
}

func pathForKind(kind string) string {
	switch kind {
	case "operation":
		return pathOperations
	case "cursor":
		return pathCursors
	case "presence":
		return pathUsers
	default:
		return pathLegacy
	}
}

// StartRedisSubscriber relays messages published by any process (including
// this one) to locally-connected clients. It must run before any Broadcast
// call or early messages are lost, matching at-most-once delivery.
func (h *Hub) StartRedisSubscriber(ctx context.Context) {
	if h.redis == nil {
		return
	}
	go func() {
		pubsub := h.redis.PSubscribe(ctx, "doc:*")
		defer pubsub.Close()

		ch := pubsub.Channel()
		for msg := range ch {
			var envelope pubsubEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				log.Printf("wsapi: malformed pubsub envelope: %v", err)
				continue
			}
			h.deliverLocal(envelope.DocumentID, envelope.Kind, envelope.Payload)
		}
	}()
}

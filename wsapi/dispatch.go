package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/apperr"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/ot"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/room"
)

const recoveryBufferCap = 100

func (h *Hub) dispatch(c *client, msgType string, raw []byte) {
	switch msgType {
	case "subscribe":
		h.handleSubscribe(c, raw)
	case "edit":
		h.handleEdit(c, raw)
	case "cursor":
		h.handleCursor(c, raw)
	case "recover":
		h.handleRecovery(c, raw)
	default:
		log.Printf("wsapi: unknown message type: %s", msgType)
	}
}

// handleSubscribe gates every path on canEdit. Joining the room is
// triggered by the first non-cursor subscription; a cursors-only
// subscription does not by itself create membership — cursor messages
// admit on first use instead.
func (h *Hub) handleSubscribe(c *client, raw []byte) {
	var msg subscribeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, apperr.ErrInvalidOperation, "malformed subscribe message")
		return
	}

	ctx := context.Background()
	known, err := h.users.Exists(ctx, msg.UserID)
	if err != nil {
		h.sendError(c, apperr.ErrInternal, "user lookup failed")
		return
	}
	if !known {
		h.sendError(c, apperr.ErrUnauthorized, "unknown user")
		return
	}

	ok, err := h.rm.CanEdit(ctx, msg.DocumentID, msg.UserID)
	if err != nil {
		h.sendError(c, apperr.ErrInternal, "authorization check failed")
		return
	}
	if !ok {
		h.sendError(c, apperr.ErrUnauthorized, "not authorized for this document")
		return
	}

	c.documentID = msg.DocumentID
	c.userID = msg.UserID
	c.userName = msg.UserName
	c.subscribe(msg.Path)
	h.addClient(msg.DocumentID, c)

	if msg.Path != pathCursors && !h.rm.IsMember(msg.DocumentID, msg.UserID) {
		h.join(ctx, c)
	}
}

func (h *Hub) join(ctx context.Context, c *client) {
	if _, err := h.rm.Join(ctx, c.documentID, c.userID, c.userName); err != nil {
		h.sendError(c, apperr.ErrUnauthorized, "join denied")
		return
	}
	h.publishPresence(c.documentID, presenceEnvelope{
		Type:       "user_joined",
		DocumentID: c.documentID,
		UserID:     c.userID,
		UserName:   c.userName,
		UserCount:  h.rm.MemberCount(c.documentID),
	})
}

func (h *Hub) handleEdit(c *client, raw []byte) {
	var msg editMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, apperr.ErrInvalidOperation, "malformed edit message")
		return
	}

	ctx := context.Background()
	ok, err := h.rm.CanEdit(ctx, msg.DocumentID, msg.UserID)
	if err != nil {
		h.sendError(c, apperr.ErrInternal, "authorization check failed")
		return
	}
	if !ok {
		h.sendError(c, apperr.ErrUnauthorized, "edit rejected")
		return
	}

	op, err := toOperation(msg)
	if err != nil {
		h.sendError(c, apperr.ErrInvalidOperation, err.Error())
		return
	}

	_, applied, err := h.sessions.Ingest(ctx, op)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidOperation):
			h.sendError(c, apperr.ErrInvalidOperation, "operation failed validation")
		default:
			log.Printf("wsapi: ingest failed for %s: %v", msg.DocumentID, err)
			h.sendError(c, apperr.ErrInternal, "edit could not be processed")
		}
		return
	}
	_ = applied // dropped (no-op) operations are silently absorbed, per protocol
}

func toOperation(msg editMessage) (ot.Operation, error) {
	switch msg.Operation.Type {
	case string(ot.Insert):
		content := ""
		if msg.Operation.Content != nil {
			content = *msg.Operation.Content
		}
		return ot.NewInsert(msg.DocumentID, msg.UserID, msg.Operation.Position, content), nil
	case string(ot.Delete):
		length := 0
		if msg.Operation.Length != nil {
			length = *msg.Operation.Length
		}
		return ot.NewDelete(msg.DocumentID, msg.UserID, msg.Operation.Position, length), nil
	default:
		return ot.Operation{}, errors.New("unknown operation type")
	}
}

func (h *Hub) handleCursor(c *client, raw []byte) {
	var msg cursorMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, apperr.ErrInvalidOperation, "malformed cursor message")
		return
	}

	ctx := context.Background()
	if !h.rm.IsMember(msg.DocumentID, msg.UserID) {
		ok, err := h.rm.CanEdit(ctx, msg.DocumentID, msg.UserID)
		if err != nil || !ok {
			h.sendError(c, apperr.ErrUnauthorized, "cursor update rejected")
			return
		}
		c.documentID = msg.DocumentID
		c.userID = msg.UserID
		c.userName = msg.UserName
		c.subscribe(pathCursors)
		h.addClient(msg.DocumentID, c)
		h.join(ctx, c)
	}

	h.publishCursor(msg.DocumentID, cursorEnvelope{
		UserID:     msg.UserID,
		DocumentID: msg.DocumentID,
		Position:   msg.Position,
		UserName:   msg.UserName,
		Color:      room.CursorColor(msg.UserID),
	})
}

// handleRecovery answers "what did I miss while disconnected": every
// change-log entry after lastOperationId for the document, capped at the
// recent buffer's depth. Beyond that the client is told to refetch content
// wholesale instead.
func (h *Hub) handleRecovery(c *client, raw []byte) {
	var msg recoveryMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, apperr.ErrInvalidOperation, "malformed recovery message")
		return
	}

	ctx := context.Background()
	entries, err := h.changes.ListByDocument(ctx, msg.DocumentID, "")
	if err != nil {
		h.sendError(c, apperr.ErrInternal, "recovery failed")
		return
	}

	var missed []operationEnvelope
	for _, e := range entries {
		if e.ID <= msg.LastOperationID {
			continue
		}
		op := ot.Operation{
			Type:        ot.Type(e.ChangeType),
			Content:     e.Content,
			Position:    e.Position,
			DocumentID:  e.DocumentID,
			UserID:      e.UserID,
			OperationID: e.ID,
		}
		if op.Type == ot.Delete {
			// The change log records the removed text; a DELETE carries
			// its length instead.
			op.Length = len([]rune(e.Content))
			op.Content = ""
		}
		missed = append(missed, operationEnvelope{
			Operation:  op,
			DocumentID: e.DocumentID,
			UserID:     e.UserID,
			Timestamp:  e.Timestamp,
		})
	}

	refetch := len(missed) > recoveryBufferCap
	env := recoveryEnvelope{
		Type:             "recovery",
		DocumentID:       msg.DocumentID,
		MissedOperations: missed,
		UpToDate:         len(missed) == 0,
		RefetchRequired:  refetch,
	}
	if refetch {
		env.MissedOperations = nil
	}
	h.send(c, env)
}

func (h *Hub) sendError(c *client, err error, message string) {
	h.send(c, errorEnvelope{Type: "error", Error: err.Error(), Message: message})
}

func (h *Hub) send(c *client, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	case <-time.After(writeWait):
		log.Printf("wsapi: timed out sending to client %s", c.userID)
	}
}

package wsapi

import (
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/ot"
)

// inboundEnvelope is the outer shape of every client->server message.
type inboundEnvelope struct {
	Type string `json:"type"`
}

type subscribeMessage struct {
	Type       string `json:"type"`
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Path       string `json:"path"`
}

type operationInput struct {
	Type        string  `json:"type"`
	Content     *string `json:"content,omitempty"`
	Length      *int    `json:"length,omitempty"`
	Position    int     `json:"position"`
	BaseVersion *int64  `json:"baseVersion,omitempty"`
}

type editMessage struct {
	Type       string         `json:"type"`
	DocumentID string         `json:"documentId"`
	UserID     string         `json:"userId"`
	UserName   string         `json:"userName,omitempty"`
	Operation  operationInput `json:"operation"`
}

type cursorMessage struct {
	Type       string `json:"type"`
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	Position   *int   `json:"position,omitempty"`
	UserName   string `json:"userName,omitempty"`
}

type recoveryMessage struct {
	Type            string `json:"type"`
	DocumentID      string `json:"documentId"`
	UserID          string `json:"userId"`
	LastOperationID int64  `json:"lastOperationId"`
}

// Outbound wire shapes, per the external interfaces contract.

type operationEnvelope struct {
	Operation  ot.Operation `json:"operation"`
	DocumentID string       `json:"documentId"`
	UserID     string       `json:"userId"`
	Timestamp  time.Time    `json:"timestamp"`
}

type cursorEnvelope struct {
	UserID     string `json:"userId"`
	DocumentID string `json:"documentId"`
	Position   *int   `json:"position,omitempty"`
	UserName   string `json:"userName"`
	Color      string `json:"color"`
}

type presenceUser struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	JoinedAt time.Time `json:"joinedAt"`
}

type presenceEnvelope struct {
	Type       string         `json:"type"`
	DocumentID string         `json:"documentId"`
	UserID     string         `json:"userId,omitempty"`
	UserName   string         `json:"userName,omitempty"`
	UserCount  int            `json:"userCount,omitempty"`
	Users      []presenceUser `json:"users,omitempty"`
}

type errorEnvelope struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type recoveryEnvelope struct {
	Type             string              `json:"type"`
	DocumentID       string              `json:"documentId"`
	MissedOperations []operationEnvelope `json:"missedOperations"`
	UpToDate         bool                `json:"upToDate"`
	RefetchRequired  bool                `json:"refetchRequired"`
}

// pubsubEnvelope is the cross-process fanout wrapper published on the
// "doc:<documentId>" Redis channel.
type pubsubEnvelope struct {
	Kind       string `json:"kind"` // "operation", "cursor", "presence"
	DocumentID string `json:"documentId"`
	Payload    []byte `json:"payload"`
}

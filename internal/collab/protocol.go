package collab

import (
	"encoding/json"

	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/session"
)

type Message struct {
	Type      string          `json:"type"`
	DrawingID string          `json:"drawingId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

// CursorPos is in drawing coordinates.
type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID   string `json:"userId"`
	ClientID string `json:"clientId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	ServerSeq int64  `json:"serverSeq"`
}

type DocSyncPayload struct {
	Document  json.RawMessage `json:"document"`
	History   session.History `json:"history"`
	ServerSeq int64           `json:"serverSeq"`
}

// InvalidatePayload tells clients to repaint Area.
type InvalidatePayload struct {
	Area geom.Rect `json:"area"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync; a client sends it to request a full resync.
	TypeDocSync = "doc.sync"

	TypeAreaInvalidated = "area.invalidated"

	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// Operation types.
const (
	OpAdd         = "figure.add"
	OpDelete      = "figure.delete"
	OpAttributes  = "figure.attributes"
	OpBringFront  = "figure.front"
	OpSendBack    = "figure.back"
	OpMove        = "figure.move"
	OpTransform   = "figure.transform"
	OpDuplicate   = "figure.duplicate"
	OpSetDefaults = "editor.defaults"
	OpUndo        = "history.undo"
	OpRedo        = "history.redo"
)

// Operation is one edit submitted by a client.
type Operation struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Timestamp int64    `json:"timestamp"`
	ClientSeq int64    `json:"clientSeq"`
	FigureIDs []string `json:"figureIds,omitempty"`

	// For figure.add, and filled in with the clones for figure.duplicate.
	Figures []document.ObjectNode `json:"figures,omitempty"`

	// For figure.attributes and editor.defaults
	Attributes figure.AttributeSet `json:"attributes,omitempty"`

	// For figure.move and figure.duplicate
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	// For figure.transform, as [a, b, c, d, e, f]
	Matrix []float64 `json:"matrix,omitempty"`
}

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OperationAckPayload is the payload for op.ack messages
type OperationAckPayload struct {
	OperationID     string          `json:"operationId"`
	ServerSeq       int64           `json:"serverSeq"`
	ServerTimestamp int64           `json:"serverTimestamp"`
	History         session.History `json:"history"`
	// FigureIDs lists the figures the operation created.
	FigureIDs []string `json:"figureIds,omitempty"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}

func newMessage(typ string, payload any) *Message {
	data, _ := json.Marshal(payload)
	return &Message{Type: typ, Payload: data}
}

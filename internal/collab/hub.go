// Package collab fans drawing edits out to the websocket clients editing
// the same drawing.
package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/session"
	"github.com/inamate/drawcore/internal/typeid"
)

// Room is the set of clients editing one drawing session.
type Room struct {
	hub         *Hub
	drawingID   string
	session     *session.Session
	clients     map[string]*Client // clientID -> client
	presence    *PresenceManager
	unsubscribe func()
	seq         atomic.Int64

	mu      sync.Mutex
	pending geom.Extent
}

func newRoom(h *Hub, sess *session.Session) *Room {
	return &Room{
		hub:       h,
		drawingID: sess.DrawingID,
		session:   sess,
		clients:   make(map[string]*Client),
		presence:  NewPresenceManager(),
	}
}

// invalidate collects repaint areas from drawing events. It runs under the
// session monitor, so the broadcast is deferred to the session's queue.
func (r *Room) invalidate(e figure.Event) {
	area, ok := e.Area, e.Area != (geom.Rect{})
	if !ok && e.Figure != nil {
		area, ok = e.Figure.DrawingArea(), true
	}
	if !ok {
		return
	}

	r.mu.Lock()
	first := r.pending.Empty()
	r.pending.Add(area)
	r.mu.Unlock()

	if first {
		if err := r.session.Submit(r.flush); err != nil {
			slog.Debug("invalidation dropped", "drawing", r.drawingID, "error", err)
		}
	}
}

func (r *Room) flush(context.Context) {
	r.mu.Lock()
	pending := r.pending
	r.pending.Reset()
	r.mu.Unlock()
	if pending.Empty() {
		return
	}
	area := pending.Rect()
	msg := newMessage(TypeAreaInvalidated, InvalidatePayload{Area: area})
	msg.DrawingID = r.drawingID
	r.hub.broadcastToRoom(r.drawingID, msg, "")
}

func (r *Room) apply(op *Operation) error {
	switch op.Type {
	case OpUndo:
		return r.session.Undo()
	case OpRedo:
		return r.session.Redo()
	}
	return r.session.Do(func(d *drawing.Drawing, ed *action.Editor) error {
		return applyOperation(d, ed, op)
	})
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // drawingID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register adds client to its drawing's room. A client registered after
// the hub stopped is closed.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Rooms returns the number of drawings with connected clients.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) room(drawingID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[drawingID]
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DrawingID]
	if !ok {
		room = newRoom(h, client.session)
		h.rooms[client.DrawingID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	if !ok {
		room.unsubscribe = room.session.Subscribe(room.invalidate)
	}

	client.Send(newMessage(TypeWelcome, WelcomePayload{ClientID: client.ClientID, ServerSeq: room.seq.Load()}))
	h.sendDocSync(client, room)

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		UserID:      client.UserID,
		ClientID:    client.ClientID,
		DisplayName: client.DisplayName,
	})
	joinMsg.UserID = client.UserID
	h.broadcastToRoom(client.DrawingID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "drawing", client.DrawingID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DrawingID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		client.close()
		return
	}

	delete(room.clients, client.ClientID)
	room.presence.Remove(client.ClientID)
	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.DrawingID)
	}
	h.mu.Unlock()
	client.close()

	slog.Info("client left", "user", client.UserID, "drawing", client.DrawingID)

	if empty {
		room.unsubscribe()
		return
	}

	leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{
		UserID:   client.UserID,
		ClientID: client.ClientID,
	})
	leaveMsg.UserID = client.UserID
	h.broadcastToRoom(client.DrawingID, leaveMsg, "")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, room := range rooms {
		room.unsubscribe()
		for _, c := range room.clients {
			c.close()
		}
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOperation(sender, msg)
	case TypeDocSync:
		if room := h.room(sender.DrawingID); room != nil {
			h.sendDocSync(sender, room)
		}
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(newMessage(TypeError, ErrorPayload{Message: "unknown message type: " + msg.Type}))
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room := h.room(sender.DrawingID)
	if room == nil {
		return
	}

	room.presence.Update(sender.ClientID, &presence)
	h.broadcastPresence(room, sender.UserID, sender.ClientID, &presence, sender.ClientID)
}

func (h *Hub) broadcastPresence(room *Room, userID, clientID string, p *PresencePayload, excludeClientID string) {
	outMsg := newMessage(TypePresenceUpdate, p)
	outMsg.UserID = userID
	outMsg.ClientID = clientID
	h.broadcastToRoom(room.drawingID, outMsg, excludeClientID)
}

func (h *Hub) handleOperation(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		sender.Send(newMessage(TypeOpNack, OperationNackPayload{Reason: "invalid operation: " + err.Error()}))
		return
	}

	room := h.room(sender.DrawingID)
	if room == nil {
		return
	}

	op := submit.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}
	if err := room.apply(&op); err != nil {
		slog.Debug("operation rejected", "op", op.Type, "user", sender.UserID, "error", err)
		sender.Send(newMessage(TypeOpNack, OperationNackPayload{OperationID: op.ID, Reason: err.Error()}))
		return
	}

	seq := room.seq.Add(1)
	now := time.Now().UnixMilli()
	op.Timestamp = now

	ack := newMessage(TypeOpAck, OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       seq,
		ServerTimestamp: now,
		History:         room.session.History(),
		FigureIDs:       figureIDs(op.Figures),
	})
	ack.Seq = seq
	sender.Send(ack)

	bc := newMessage(TypeOpBroadcast, OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: seq,
	})
	bc.Seq = seq
	bc.UserID = sender.UserID
	bc.ClientID = sender.ClientID
	h.broadcastToRoom(sender.DrawingID, bc, sender.ClientID)

	if op.Type == OpDelete {
		for _, clientID := range room.presence.Forget(op.FigureIDs) {
			if p, ok := room.presence.Get(clientID); ok {
				h.broadcastPresence(room, "", clientID, p, "")
			}
		}
	}
}

func (h *Hub) sendDocSync(client *Client, room *Room) {
	var data []byte
	err := room.session.Do(func(d *drawing.Drawing, _ *action.Editor) error {
		var err error
		data, err = document.Marshal(d)
		return err
	})
	if err != nil {
		slog.Error("doc sync", "drawing", room.drawingID, "error", err)
		client.Send(newMessage(TypeError, ErrorPayload{Message: "document unavailable"}))
		return
	}
	client.Send(newMessage(TypeDocSync, DocSyncPayload{
		Document:  data,
		History:   room.session.History(),
		ServerSeq: room.seq.Load(),
	}))
}

func (h *Hub) broadcastToRoom(drawingID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[drawingID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrHubClosed = errors.New("hub is not running")
	ErrBusy      = errors.New("too many pending store requests")
)

// Inbound is a decoded frame together with the connection it arrived on.
type Inbound struct {
	Client Client
	Frame  models.InboundFrame
}

// emission is an outbound frame addressed either to a room or to one connection.
type emission struct {
	room   string
	connID string
	frame  models.OutboundFrame
}

// ManagerService is the gateway dispatcher. Clients, Registry and Rooms are mutated
// only from the Run goroutine; store round-trips happen elsewhere and come back
// through emitCh.
type ManagerService struct {
	Clients map[string]Client

	Registry *Registry
	Rooms    *RoomTracker
	Presence *PresenceEngine
	Relay    *MessageRelay

	Storage  storage.Storage
	Identity auth.Resolver

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound

	emitCh    chan emission
	presenceQ *jobQueue
	store     *storePool
	done      chan struct{}

	log *zap.Logger
}

func NewManagerService(s storage.Storage, identity auth.Resolver, log *zap.Logger) *ManagerService {
	m := &ManagerService{
		Clients:      make(map[string]Client),
		Registry:     NewRegistry(),
		Rooms:        NewRoomTracker(),
		Storage:      s,
		Identity:     identity,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan Inbound),
		emitCh:       make(chan emission, config.SendBufferSize),
		presenceQ:    newJobQueue(),
		store:        newStorePool(config.StoreWorkers, config.StoreQueueSize),
		done:         make(chan struct{}),
		log:          log,
	}
	m.Presence = NewPresenceEngine(s, m, log)
	m.Relay = NewMessageRelay(s, m, log)
	return m
}

// Connect resolves the credential on the caller's goroutine and hands the client to
// the run-loop. A failed resolution is logged and the client stays anonymous.
// The client's pumps are started by the run-loop once registration is processed.
func (m *ManagerService) Connect(ctx context.Context, c Client, token string) error {
	userID, err := m.Identity.Verify(ctx, token)
	switch {
	case err == nil:
		c.SetUserID(userID)
	case errors.Is(err, auth.ErrMissingCredential):
		m.log.Debug("anonymous connection", zap.String("conn_id", c.GetID()))
	default:
		m.log.Warn("credential rejected, continuing anonymous", zap.String("conn_id", c.GetID()), zap.Error(err))
	}

	select {
	case m.RegisterCh <- c:
		return nil
	case <-m.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister queues c for cleanup. Safe to call more than once.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Submit queues an inbound frame. It returns false once the hub has stopped.
func (m *ManagerService) Submit(c Client, frame models.InboundFrame) bool {
	select {
	case m.IncomingCh <- Inbound{Client: c, Frame: frame}:
		return true
	case <-m.done:
		return false
	}
}

// EmitToRoom implements Emitter for the presence engine and the relay.
func (m *ManagerService) EmitToRoom(room, event string, data any) {
	m.emit(emission{room: room, frame: models.OutboundFrame{Event: event, Data: data}})
}

func (m *ManagerService) emitToConn(connID string, frame models.OutboundFrame) {
	m.emit(emission{connID: connID, frame: frame})
}

func (m *ManagerService) emit(e emission) {
	select {
	case m.emitCh <- e:
	case <-m.done:
	}
}

// Run is the single event loop of the gateway. It returns when ctx is cancelled,
// closing every registered client.
func (m *ManagerService) Run(ctx context.Context) {
	m.log.Info("gateway started")
	go m.runPresence(ctx)
	m.store.start(ctx)
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.RegisterCh:
			m.handleRegister(c)
		case c := <-m.UnregisterCh:
			m.handleUnregister(c)
		case in := <-m.IncomingCh:
			m.handleIncoming(in)
		case e := <-m.emitCh:
			m.deliver(e)
		}
	}
}

func (m *ManagerService) shutdown() {
	close(m.done)
	for id, c := range m.Clients {
		m.Rooms.Release(id)
		m.Registry.Detach(id)
		c.Close()
		delete(m.Clients, id)
	}
	m.log.Info("gateway stopped")
}

func (m *ManagerService) runPresence(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.presenceQ.signal:
			for _, job := range m.presenceQ.drain() {
				// Apply logs its own failures.
				_ = m.Presence.Apply(ctx, job.userID, job.status)
			}
		}
	}
}

func (m *ManagerService) handleRegister(c Client) {
	connID := c.GetID()
	if _, exists := m.Clients[connID]; exists {
		return
	}
	m.Clients[connID] = c

	if userID := c.GetUserID(); userID != "" {
		count := m.Registry.Attach(connID, userID)
		m.Rooms.JoinUserRoom(connID, userID)
		if count == 1 {
			m.presenceQ.push(presenceJob{userID: userID, status: models.StatusOnline})
		}
		m.log.Info("client registered",
			zap.String("conn_id", connID), zap.String("user_id", userID), zap.Int("connections", count))
	} else {
		m.log.Info("anonymous client registered", zap.String("conn_id", connID))
	}

	c.Run()
}

func (m *ManagerService) handleUnregister(c Client) {
	connID := c.GetID()
	if _, ok := m.Clients[connID]; !ok {
		return
	}
	delete(m.Clients, connID)
	m.Rooms.Release(connID)

	if d, ok := m.Registry.Detach(connID); ok {
		if d.Remaining == 0 {
			m.presenceQ.push(presenceJob{userID: d.UserID, status: models.StatusOffline})
		}
		m.log.Info("client unregistered",
			zap.String("conn_id", connID), zap.String("user_id", d.UserID), zap.Int("connections", d.Remaining))
	}

	c.Close()
}

func (m *ManagerService) handleIncoming(in Inbound) {
	c := in.Client
	if _, ok := m.Clients[c.GetID()]; !ok {
		return
	}

	switch in.Frame.Event {
	case models.EventJoinChannel:
		m.ack(c, in.Frame, m.joinChannel(c, in.Frame.Data))
	case models.EventLeaveChannel:
		m.ack(c, in.Frame, m.Rooms.LeaveChannel(c.GetID(), channelIDFrom(in.Frame.Data)))
	case models.EventMessage:
		m.handleMessage(c, in.Frame.Data)
	case models.EventHistory:
		m.handleHistory(c, in.Frame)
	default:
		m.log.Warn("unknown event", zap.String("conn_id", c.GetID()), zap.String("event", in.Frame.Event))
		m.ack(c, in.Frame, false)
	}
}

func (m *ManagerService) joinChannel(c Client, data json.RawMessage) bool {
	if c.GetUserID() == "" {
		m.log.Warn("anonymous connection tried to join a channel", zap.String("conn_id", c.GetID()))
		return false
	}
	return m.Rooms.JoinChannel(c.GetID(), channelIDFrom(data))
}

func (m *ManagerService) handleMessage(c Client, data json.RawMessage) {
	var payload models.MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		m.log.Warn("dropping undecodable message", zap.String("conn_id", c.GetID()), zap.Error(err))
		return
	}

	connID := c.GetID()
	if userID := c.GetUserID(); userID != "" {
		if payload.SenderID == "" {
			payload.SenderID = userID
		} else if payload.SenderID != userID {
			m.log.Warn("dropping message with foreign senderId",
				zap.String("conn_id", connID), zap.String("user_id", userID), zap.String("sender_id", payload.SenderID))
			m.rejectOnLoop(c, payload.AckID, ErrSenderMismatch)
			return
		}
	}

	queued := m.store.submit(func(ctx context.Context) {
		if _, err := m.Relay.Relay(ctx, payload); err != nil {
			m.rejectMessage(connID, payload.AckID, err)
		}
	})
	if !queued {
		m.log.Warn("store queue full, dropping message", zap.String("conn_id", connID))
		m.rejectOnLoop(c, payload.AckID, ErrBusy)
	}
}

// rejectMessage tells the sender about a failed relay, but only if it asked for it.
// It is called from store workers and re-enters the loop through emitCh.
func (m *ManagerService) rejectMessage(connID, ackID string, err error) {
	if ackID == "" {
		return
	}
	m.emitToConn(connID, messageError(ackID, err))
}

// rejectOnLoop is rejectMessage for callers already on the run-loop.
func (m *ManagerService) rejectOnLoop(c Client, ackID string, err error) {
	if ackID == "" {
		return
	}
	m.send(c, messageError(ackID, err))
}

func messageError(ackID string, err error) models.OutboundFrame {
	return models.OutboundFrame{
		Event: models.EventMessageError,
		Data:  models.MessageErrorEvent{AckID: ackID, Error: publicError(err)},
	}
}

func publicError(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "malformed message"
	case errors.Is(err, ErrSenderMismatch):
		return "sender mismatch"
	case errors.Is(err, storage.ErrNotAMember):
		return "not a member"
	case errors.Is(err, storage.ErrChannelNotFound):
		return "channel not found"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal error"
	}
}

// handleHistory serves the bounded backlog of the channel the connection is in, to
// members of that channel's server only.
func (m *ManagerService) handleHistory(c Client, frame models.InboundFrame) {
	var req models.HistoryRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		req.ChannelID = channelIDFrom(frame.Data)
	}

	current, ok := m.Rooms.ChannelOf(c.GetID())
	if !ok || req.ChannelID == "" || req.ChannelID != current {
		m.ack(c, frame, false)
		return
	}
	if frame.Ack == nil {
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = config.DefaultHistoryLimit
	}
	if limit > config.MaxHistoryLimit {
		limit = config.MaxHistoryLimit
	}

	connID, userID, ackID := c.GetID(), c.GetUserID(), frame.Ack
	queued := m.store.submit(func(ctx context.Context) {
		msgs, err := m.Storage.ListRecentMessages(ctx, userID, req.ChannelID, limit)
		if err != nil {
			if errors.Is(err, storage.ErrNotAMember) || errors.Is(err, storage.ErrChannelNotFound) {
				m.log.Warn("history refused",
					zap.String("user_id", userID), zap.String("channel_id", req.ChannelID), zap.Error(err))
			} else {
				m.log.Error("failed to load history", zap.String("channel_id", req.ChannelID), zap.Error(err))
			}
			m.emitToConn(connID, models.OutboundFrame{Event: models.EventAck, Ack: ackID, Data: false})
			return
		}
		events := make([]models.MessageEvent, 0, len(msgs))
		for _, msg := range msgs {
			events = append(events, msg.Event())
		}
		m.emitToConn(connID, models.OutboundFrame{Event: models.EventAck, Ack: ackID, Data: events})
	})
	if !queued {
		m.log.Warn("store queue full, refusing history", zap.String("conn_id", connID))
		m.ack(c, frame, false)
	}
}

func (m *ManagerService) ack(c Client, frame models.InboundFrame, ok bool) {
	if frame.Ack == nil {
		return
	}
	m.send(c, models.OutboundFrame{Event: models.EventAck, Ack: frame.Ack, Data: ok})
}

func (m *ManagerService) deliver(e emission) {
	if e.connID != "" {
		if c, ok := m.Clients[e.connID]; ok {
			m.send(c, e.frame)
		}
		return
	}
	for _, connID := range m.Rooms.Members(e.room) {
		if c, ok := m.Clients[connID]; ok {
			m.send(c, e.frame)
		}
	}
}

// send never blocks: a full buffer drops the frame for that connection only.
func (m *ManagerService) send(c Client, frame models.OutboundFrame) {
	select {
	case c.GetSendChannel() <- frame:
	default:
		m.log.Warn("send buffer full, dropping frame",
			zap.String("conn_id", c.GetID()), zap.String("event", frame.Event))
	}
}

// channelIDFrom accepts either a bare JSON string or {"channelId": "..."}.
func channelIDFrom(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ChannelID string `json:"channelId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.ChannelID)
	}
	return ""
}

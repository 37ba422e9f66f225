package signalling

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/api"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/sockets"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/utils"
)

// session is the per-connection protocol state machine:
// unauthenticated until a successful join, joined afterwards, closed on
// disconnect. Frames are read in arrival order on the connection
// goroutine; everything that touches room state executes on the room's
// worker.
type session struct {
	server *Server
	socket sockets.Socket

	peer   *domain.Peer
	room   *domain.Room
	worker *roomWorker

	pinger utils.IntervalTimer
	closed atomic.Bool
}

func (s *Server) handleSocket(c *websocket.Conn) {
	sess := &session{
		server: s,
		socket: sockets.NewSocket(c),
	}

	metrics.ActiveConnections.Inc()
	metrics.ConnectionsTotal.Inc()
	defer metrics.ActiveConnections.Dec()

	sess.startPinger(s.cfgManager.Get().Server.PingInterval())
	defer sess.cleanup()

	var msg api.ClientMessage
	for {
		msg = api.ClientMessage{}
		if err := sess.socket.ReadJSON(&msg); err != nil {
			slog.Debug("client disconnected", "error", err)
			return
		}
		sess.dispatch(msg)
	}
}

func (s *session) dispatch(msg api.ClientMessage) {
	switch msg.Type {
	case api.ClientMessageTypeJoin:
		s.handleJoin(msg.Join)
		return
	case api.ClientMessageTypePing:
		s.handlePing(msg.Ping)
		return
	case api.ClientMessageTypePong:
		s.handlePong(msg.Pong)
		return
	}

	if s.peer == nil {
		slog.Debug("dropping frame from unauthenticated connection", "type", msg.Type)
		return
	}

	switch msg.Type {
	case api.ClientMessageTypeConnectSendTransport:
		s.worker.DoWait(func() { s.handleConnectTransport(domain.TransportSend, msg.ConnectTransport) })
	case api.ClientMessageTypeConnectRecvTransport:
		s.worker.DoWait(func() { s.handleConnectTransport(domain.TransportRecv, msg.ConnectTransport) })
	case api.ClientMessageTypeProduce:
		s.worker.DoWait(func() { s.handleProduce(msg.Produce) })
	case api.ClientMessageTypeConsume:
		s.worker.DoWait(func() { s.handleConsume(msg.Consume) })
	case api.ClientMessageTypeSpeakingStart:
		s.worker.DoWait(func() { s.handleSpeaking(true) })
	case api.ClientMessageTypeSpeakingStop:
		s.worker.DoWait(func() { s.handleSpeaking(false) })
	case api.ClientMessageTypeCallStarted:
		s.worker.DoWait(func() { s.handleCallLifecycle(true) })
	case api.ClientMessageTypeCallStopped:
		s.worker.DoWait(func() { s.handleCallLifecycle(false) })
	default:
		slog.Debug("ignoring unknown frame", "type", msg.Type)
	}
}

func (s *session) handleJoin(payload *api.JoinPayload) {
	if payload == nil {
		return
	}
	if s.peer != nil {
		// re-authenticating an authenticated connection is a no-op
		return
	}

	identity, err := s.server.verifier.Verify(payload.Token)
	if err != nil {
		slog.Warn("authentication failed", "error", err)
		_ = s.socket.WriteJSON(api.ServerMessage{
			Type:  api.ServerMessageTypeAuthFailed,
			Error: &api.ErrorPayload{Message: "invalid credential"},
		})
		return
	}

	roomID := payload.RoomID
	if roomID == "" {
		if identity.Role != domain.RoleHost {
			_ = s.socket.WriteJSON(api.ServerMessage{
				Type:  api.ServerMessageTypeJoinError,
				Error: &api.ErrorPayload{Message: "room id required"},
			})
			return
		}
		// a host's own call is keyed by its id
		roomID = identity.ID
	}

	room, err := s.server.rooms.EnsureMediaRoom(context.Background(), roomID, identity.HostID)
	if err != nil {
		slog.Error("failed to prepare media room", "roomID", roomID, "error", err)
		_ = s.socket.WriteJSON(api.ServerMessage{
			Type:  api.ServerMessageTypeJoinError,
			Error: &api.ErrorPayload{Message: "call unavailable"},
		})
		return
	}

	worker := s.server.workerFor(roomID)
	worker.DoWait(func() { s.join(worker, room, identity) })
}

func (s *session) join(worker *roomWorker, room *domain.Room, identity domain.Identity) {
	peer := &domain.Peer{
		ID:          identity.ID,
		Role:        identity.Role,
		HostID:      identity.HostID,
		ConnectedAt: time.Now(),
	}

	// last writer wins: a concurrent login under the same id evicts the
	// previous connection
	if evicted := s.server.peers.Save(peer); evicted != nil {
		s.server.RevokeSession(evicted.ID, "signed in from another connection")
	}
	s.server.pool.Add(peer.ID, s.socket)

	ctx := context.Background()
	sendTransport, err := s.server.relay.CreateTransport(ctx, room.ID, peer.ID, domain.TransportSend)
	if err == nil {
		var recvTransport domain.TransportInfo
		recvTransport, err = s.server.relay.CreateTransport(ctx, room.ID, peer.ID, domain.TransportRecv)
		peer.SendTransportID = sendTransport.ID
		peer.RecvTransportID = recvTransport.ID

		if err == nil && !s.stale(peer) {
			s.peer = peer
			s.room = room
			s.worker = worker
			room.AddPeer(peer)

			s.sendJoined(room, sendTransport, recvTransport)
			s.notifyJoined(room, peer)
			slog.Info("peer joined", "peerID", peer.ID, "role", peer.Role, "roomID", room.ID)
			return
		}
	}

	// transport setup failed or the connection is already gone
	s.server.peers.Delete(peer)
	s.server.pool.Remove(peer.ID, s.socket)
	if err != nil {
		slog.Error("transport setup failed", "peerID", peer.ID, "error", err)
		_ = s.socket.WriteJSON(api.ServerMessage{
			Type:  api.ServerMessageTypeJoinError,
			Error: &api.ErrorPayload{Message: "transport setup failed"},
		})
	}
}

func (s *session) sendJoined(room *domain.Room, sendTransport, recvTransport domain.TransportInfo) {
	_ = s.socket.WriteJSON(api.ServerMessage{
		Type: api.ServerMessageTypeJoined,
		Joined: &api.JoinedPayload{
			RoomID:            room.ID,
			MediaCapabilities: room.MediaCapabilities,
			SendTransport:     toTransportPayload(sendTransport),
			RecvTransport:     toTransportPayload(recvTransport),
			ICEServers:        s.server.cfgManager.Get().WebRTC.ICEServers,
		},
	})

	// a user joining an ongoing call learns the host's stream right away
	if s.peer.Role == domain.RoleUser && room.HostProducerID != "" {
		_ = s.socket.WriteJSON(api.ServerMessage{
			Type: api.ServerMessageTypeHostProducer,
			Producer: &api.ProducerPayload{
				ProducerID: room.HostProducerID,
				PeerID:     room.ProducerOwner[room.HostProducerID],
			},
		})
	}
}

func (s *session) notifyJoined(room *domain.Room, peer *domain.Peer) {
	s.server.notifier.NotifyRoom(room, func(p *domain.Peer) bool {
		return p.ID != peer.ID
	}, api.ServerMessage{
		Type:     api.ServerMessageTypeUserJoined,
		Presence: &api.PresencePayload{PeerID: peer.ID, Role: string(peer.Role)},
	})
}

func (s *session) handleConnectTransport(dir domain.TransportDirection, payload *api.ConnectTransportPayload) {
	if payload == nil {
		return
	}
	transportID := s.peer.SendTransportID
	if dir == domain.TransportRecv {
		transportID = s.peer.RecvTransportID
	}
	if transportID == "" {
		slog.Warn("connect requested before transport exists", "peerID", s.peer.ID, "direction", dir)
		return
	}
	if err := s.server.relay.ConnectTransport(context.Background(), s.room.ID, transportID, payload.DTLSParameters); err != nil {
		slog.Error("connect-transport failed", "peerID", s.peer.ID, "direction", dir, "error", err)
	}
}

func (s *session) handleProduce(payload *api.ProducePayload) {
	if payload == nil {
		return
	}
	peer, room := s.peer, s.room
	if peer.SendTransportID == "" {
		slog.Warn("produce rejected", "peerID", peer.ID, "error", domain.ErrNoTransport)
		s.sendError(api.ServerMessageTypeProduceError, "no send transport")
		return
	}

	producerID, err := s.server.relay.Produce(context.Background(), room.ID, peer.SendTransportID, payload.Kind, payload.RTPParameters)
	if err != nil {
		slog.Error("produce failed", "peerID", peer.ID, "error", err)
		s.sendError(api.ServerMessageTypeProduceError, "produce failed")
		return
	}
	if s.stale(peer) {
		slog.Debug("discarding produce result for departed peer", "peerID", peer.ID, "producerID", producerID)
		return
	}

	room.SetProducer(peer, producerID)
	_ = s.socket.WriteJSON(api.ServerMessage{
		Type:     api.ServerMessageTypeProduced,
		Produced: &api.ProducedPayload{ProducerID: producerID},
	})

	notification := api.ServerMessage{
		Producer: &api.ProducerPayload{ProducerID: producerID, PeerID: peer.ID},
	}
	if peer.IsHost() {
		notification.Type = api.ServerMessageTypeHostProducer
		s.server.notifier.NotifyRoom(room, isUser, notification)
		return
	}

	notification.Type = api.ServerMessageTypeNewProducer
	s.server.notifier.NotifyRoom(room, isHost, notification)

	// recording is best-effort: its failure never rolls back the produce
	s.server.recording.CaptureUserProducer(domain.CaptureTarget{
		HostID: peer.HostID,
		UserID: peer.ID,
		RoomID: room.ID,
	}, producerID, room.HostProducerID)
}

func (s *session) handleConsume(payload *api.ConsumePayload) {
	if payload == nil {
		return
	}
	peer, room := s.peer, s.room

	if _, ok := room.ResolveProducer(payload.ProducerID); !ok {
		slog.Debug("consume rejected", "peerID", peer.ID, "producerID", payload.ProducerID,
			"error", domain.ErrProducerNotFound)
		s.sendError(api.ServerMessageTypeConsumeError, "producer not found")
		return
	}
	if peer.RecvTransportID == "" {
		s.sendError(api.ServerMessageTypeConsumeError, "no receive transport")
		return
	}

	info, err := s.server.relay.Consume(context.Background(), room.ID, peer.RecvTransportID, payload.ProducerID, payload.RTPCapabilities)
	if err != nil {
		slog.Error("consume failed", "peerID", peer.ID, "producerID", payload.ProducerID, "error", err)
		s.sendError(api.ServerMessageTypeConsumeError, "consume failed")
		return
	}
	if s.stale(peer) {
		slog.Debug("discarding consume result for departed peer", "peerID", peer.ID)
		return
	}

	peer.AddConsumer(info.ID)
	_ = s.socket.WriteJSON(api.ServerMessage{
		Type: api.ServerMessageTypeConsumed,
		Consumed: &api.ConsumedPayload{
			ConsumerID:    info.ID,
			ProducerID:    info.ProducerID,
			Kind:          info.Kind,
			RTPParameters: info.RTPParameters,
		},
	})
}

func (s *session) handleSpeaking(speaking bool) {
	peer := s.peer
	if peer.Role != domain.RoleUser {
		return
	}
	s.server.notifier.NotifyRoom(s.room, isHost, api.ServerMessage{
		Type:     api.ServerMessageTypeUserSpeaking,
		Speaking: &api.SpeakingPayload{PeerID: peer.ID, Speaking: speaking},
	})
	if speaking {
		s.server.recording.SpeakingStarted(peer.ID)
	} else {
		s.server.recording.SpeakingStopped(peer.ID)
	}
}

func (s *session) handleCallLifecycle(started bool) {
	peer, room := s.peer, s.room
	if !peer.IsHost() {
		slog.Warn("call lifecycle frame from non-host", "peerID", peer.ID)
		return
	}

	msgType := api.ServerMessageTypeCallStopped
	if started {
		msgType = api.ServerMessageTypeCallStarted
	}
	msg := enrichCall(api.ServerMessage{Type: msgType}, room)
	s.server.notifier.NotifyHostScope(peer.ID, peer.ID, msg)

	if !started {
		s.server.recording.StopRoom(room.ID)
	}
}

// handlePing answers a client-side liveness check, echoing the client's
// timestamp so it can compute round-trip time. Works before join too.
func (s *session) handlePing(payload *api.PingPayload) {
	ts := time.Now().UnixMilli()
	if payload != nil && payload.Timestamp != 0 {
		ts = payload.Timestamp
	}
	_ = s.socket.WriteJSON(api.ServerMessage{
		Type: api.ServerMessageTypePong,
		Pong: &api.PongPayload{Timestamp: ts},
	})
}

func (s *session) handlePong(payload *api.PongPayload) {
	if payload == nil || payload.Timestamp == 0 {
		return
	}
	latency := time.Now().UnixMilli() - payload.Timestamp
	if latency < 0 {
		return
	}
	_ = s.socket.WriteJSON(api.ServerMessage{
		Type:    api.ServerMessageTypeLatencyUpdate,
		Latency: &api.LatencyPayload{LatencyMsec: latency},
	})
}

func (s *session) startPinger(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.pinger = utils.SetIntervalTimer(interval, func() {
		_ = s.socket.WriteJSON(api.ServerMessage{
			Type: api.ServerMessageTypePing,
			Ping: &api.PingPayload{Timestamp: time.Now().UnixMilli()},
		})
	})
}

// stale reports whether this connection's peer entry has been superseded
// or the connection already closed. Results of in-flight RPCs for such a
// peer are discarded instead of applied.
func (s *session) stale(peer *domain.Peer) bool {
	if s.closed.Load() {
		return true
	}
	current, ok := s.server.peers.Get(peer.ID)
	return !ok || current != peer
}

// cleanup tears down everything the session registered. It runs exactly
// once per connection but every step tolerates partial prior application.
func (s *session) cleanup() {
	s.closed.Store(true)
	if s.pinger != nil {
		s.pinger.Stop()
	}

	peer, room, worker := s.peer, s.room, s.worker
	if peer == nil || worker == nil {
		return
	}

	worker.DoWait(func() {
		if current, ok := room.Peers[peer.ID]; ok && current == peer {
			room.RemovePeer(peer.ID)
			s.server.notifier.NotifyRoom(room, nil, api.ServerMessage{
				Type:     api.ServerMessageTypeUserLeft,
				Presence: &api.PresencePayload{PeerID: peer.ID, Role: string(peer.Role)},
			})
		}
		// Delete is pointer-guarded: it returns false when a newer login
		// already replaced this peer, in which case the new login's capture
		// must be left alone.
		removed := s.server.peers.Delete(peer)
		s.server.pool.Remove(peer.ID, s.socket)

		if removed && peer.Role == domain.RoleUser {
			s.server.recording.StopUser(peer.ID)
		}
		slog.Info("peer left", "peerID", peer.ID, "roomID", room.ID)
	})
}

func (s *session) sendError(msgType api.ServerMessageType, message string) {
	_ = s.socket.WriteJSON(api.ServerMessage{
		Type:  msgType,
		Error: &api.ErrorPayload{Message: message},
	})
}

func toTransportPayload(t domain.TransportInfo) api.TransportPayload {
	return api.TransportPayload{
		ID:             t.ID,
		ICEParameters:  t.ICEParameters,
		ICECandidates:  t.ICECandidates,
		DTLSParameters: t.DTLSParameters,
	}
}

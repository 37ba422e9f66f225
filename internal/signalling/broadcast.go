package signalling

import (
	"log/slog"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/api"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/registry"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/sockets"
)

// Notifier fans out frames to connected peers. Delivery is best-effort
// and at-most-once: peers without a live socket at delivery time simply
// miss the frame.
type Notifier struct {
	peers *registry.PeerRegistry
	pool  *sockets.Pool
}

func NewNotifier(peers *registry.PeerRegistry, pool *sockets.Pool) *Notifier {
	return &Notifier{peers: peers, pool: pool}
}

// NotifyRoom delivers the frame to every room member matching pred.
// Must run on the room's worker.
func (n *Notifier) NotifyRoom(room *domain.Room, pred func(*domain.Peer) bool, msg api.ServerMessage) {
	for _, p := range room.Peers {
		if pred != nil && !pred(p) {
			continue
		}
		n.send(p.ID, msg)
	}
}

// NotifyHostScope delivers the frame to every connected peer belonging to
// the host, regardless of room membership. exceptID skips the sender.
func (n *Notifier) NotifyHostScope(hostID, exceptID string, msg api.ServerMessage) {
	n.peers.ForEach(func(p *domain.Peer) bool {
		if p.HostID != hostID || p.ID == exceptID {
			return true
		}
		n.send(p.ID, msg)
		return true
	})
}

func (n *Notifier) send(peerID string, msg api.ServerMessage) {
	sock := n.pool.Get(peerID)
	if sock == nil {
		return
	}
	if err := sock.WriteJSON(msg); err != nil {
		slog.Debug("failed to deliver frame", "peerID", peerID, "type", msg.Type)
	}
}

// enrichCall fills in the call payload with room facts the frame does not
// carry yet. Works on a copy; stored room state is never touched.
func enrichCall(msg api.ServerMessage, room *domain.Room) api.ServerMessage {
	if msg.Call == nil {
		msg.Call = &api.CallPayload{RoomID: room.ID}
	} else {
		payload := *msg.Call
		msg.Call = &payload
	}
	if msg.Call.MediaCapabilities == nil {
		msg.Call.MediaCapabilities = room.MediaCapabilities
	}
	if msg.Call.HostProducerID == "" {
		msg.Call.HostProducerID = room.HostProducerID
	}
	return msg
}

func isUser(p *domain.Peer) bool { return p.Role == domain.RoleUser }
func isHost(p *domain.Peer) bool { return p.Role == domain.RoleHost }

package domain

import "encoding/json"

// Room is the in-memory state of one active call. All mutating methods
// must be called from the room's worker goroutine; the registry hands out
// the same *Room to every session of the call.
type Room struct {
	ID     string
	HostID string

	// MediaCapabilities is the opaque descriptor returned by the SFU when
	// the call is created on the SFU side. Immutable once set.
	MediaCapabilities json.RawMessage

	Peers          map[string]*Peer
	ProducerOwner  map[string]string
	HostProducerID string
}

func NewRoom(id string, hostID string) *Room {
	return &Room{
		ID:            id,
		HostID:        hostID,
		Peers:         make(map[string]*Peer),
		ProducerOwner: make(map[string]string),
	}
}

func (r *Room) AddPeer(p *Peer) {
	r.Peers[p.ID] = p
	p.RoomID = r.ID
}

// RemovePeer drops the peer and its producer ownership. Safe to call for
// a peer that is already gone.
func (r *Room) RemovePeer(peerID string) {
	r.RemoveProducerOf(peerID)
	delete(r.Peers, peerID)
}

// SetProducer records ownership of a new producer. A host's own stream
// supersedes any previous host producer.
func (r *Room) SetProducer(p *Peer, producerID string) {
	if p.ProducerID != "" {
		delete(r.ProducerOwner, p.ProducerID)
	}
	p.ProducerID = producerID
	r.ProducerOwner[producerID] = p.ID
	if p.IsHost() {
		r.HostProducerID = producerID
	}
}

// RemoveProducerOf tears down the producer entry owned by peerID, clearing
// HostProducerID if it pointed at it. Idempotent.
func (r *Room) RemoveProducerOf(peerID string) {
	p, ok := r.Peers[peerID]
	if !ok || p.ProducerID == "" {
		return
	}
	if r.HostProducerID == p.ProducerID {
		r.HostProducerID = ""
	}
	delete(r.ProducerOwner, p.ProducerID)
	p.ProducerID = ""
}

// ResolveProducer answers who owns the given producer id.
func (r *Room) ResolveProducer(producerID string) (*Peer, bool) {
	peerID, ok := r.ProducerOwner[producerID]
	if !ok {
		return nil, false
	}
	p, ok := r.Peers[peerID]
	return p, ok
}

package registry

import (
	"sync"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
)

// PeerRegistry is the single owner of live peers, keyed by peer id. Rooms
// hold non-owning references into these entries.
type PeerRegistry struct {
	peers map[string]*domain.Peer
	mu    sync.RWMutex
}

func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[string]*domain.Peer),
	}
}

// Save registers a peer. If another live peer already holds the same id,
// the new one wins and the previous entry is returned so the caller can
// revoke its connection.
func (r *PeerRegistry) Save(p *domain.Peer) (evicted *domain.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.peers[p.ID]; ok && old != p {
		evicted = old
		// the evicted entry's pointer-guarded Delete will be a no-op, so
		// its gauge slot is released here
		metrics.ActivePeers.WithLabelValues(string(old.Role)).Dec()
	}
	r.peers[p.ID] = p
	metrics.ActivePeers.WithLabelValues(string(p.Role)).Inc()
	return evicted
}

func (r *PeerRegistry) Get(id string) (*domain.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// Delete removes the entry only if it still points at the given peer, so
// a stale disconnect cannot unregister a newer login under the same id.
func (r *PeerRegistry) Delete(p *domain.Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.peers[p.ID]
	if !ok || current != p {
		return false
	}
	delete(r.peers, p.ID)
	metrics.ActivePeers.WithLabelValues(string(p.Role)).Dec()
	return true
}

// ForEach visits every live peer until f returns false.
func (r *PeerRegistry) ForEach(f func(p *domain.Peer) bool) {
	r.mu.RLock()
	snapshot := make([]*domain.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		snapshot = append(snapshot, p)
	}
	r.mu.RUnlock()

	for _, p := range snapshot {
		if !f(p) {
			return
		}
	}
}

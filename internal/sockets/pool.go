package sockets

import "sync"

// Pool maps peer ids to their live sockets. One socket per peer id; a
// newcomer under the same id replaces the previous entry (the caller is
// responsible for revoking the old session first).
type Pool struct {
	mutex   sync.Mutex
	sockets map[string]Socket
}

func NewPool() *Pool {
	return &Pool{
		sockets: make(map[string]Socket),
	}
}

func (p *Pool) Add(peerID string, s Socket) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.sockets[peerID] = s
}

func (p *Pool) Get(peerID string) Socket {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.sockets[peerID]
}

// Remove drops the entry only if it still holds the given socket, so a
// stale disconnect cannot remove a newer connection under the same id.
func (p *Pool) Remove(peerID string, s Socket) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if current, ok := p.sockets[peerID]; ok && current == s {
		delete(p.sockets, peerID)
	}
}

func (p *Pool) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, s := range p.sockets {
		_ = s.Close()
	}
}

package domain

import "time"

type Role string

const (
	RoleHost Role = "host"
	RoleUser Role = "user"
)

// Identity is the result of verifying a bearer credential.
type Identity struct {
	ID     string
	Role   Role
	HostID string
}

// Peer is the per-connection state of one authenticated participant.
// A Peer is owned by the PeerRegistry; the Room only holds a non-owning
// reference to the same entry. Fields are mutated only on the owning
// room's worker goroutine.
type Peer struct {
	ID     string
	Role   Role
	HostID string
	RoomID string

	SendTransportID string
	RecvTransportID string
	ProducerID      string
	ConsumerIDs     []string

	ConnectedAt time.Time
}

func (p *Peer) IsHost() bool {
	return p.Role == RoleHost
}

func (p *Peer) AddConsumer(consumerID string) {
	p.ConsumerIDs = append(p.ConsumerIDs, consumerID)
}

// CredentialVerifier validates an inbound bearer credential and derives
// the caller's identity. Issuance lives in an external service.
type CredentialVerifier interface {
	Verify(token string) (Identity, error)
}

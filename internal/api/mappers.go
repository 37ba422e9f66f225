package api

import (
	"time"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
)

// Participant is the read-only view of a joined peer used by the report
// endpoints.
type Participant struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	HostID      string    `json:"hostId"`
	Producing   bool      `json:"producing"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type RoomReport struct {
	RoomID         string        `json:"roomId"`
	HostID         string        `json:"hostId"`
	HostProducerID string        `json:"hostProducerId,omitempty"`
	Participants   []Participant `json:"participants"`
}

func ToParticipant(p *domain.Peer) Participant {
	return Participant{
		ID:          p.ID,
		Role:        string(p.Role),
		HostID:      p.HostID,
		Producing:   p.ProducerID != "",
		ConnectedAt: p.ConnectedAt,
	}
}

func ToRoomReport(r *domain.Room) RoomReport {
	report := RoomReport{
		RoomID:         r.ID,
		HostID:         r.HostID,
		HostProducerID: r.HostProducerID,
		Participants:   make([]Participant, 0, len(r.Peers)),
	}
	for _, p := range r.Peers {
		report.Participants = append(report.Participants, ToParticipant(p))
	}
	return report
}

package domain

import "testing"

func TestSetProducerSupersedesPrevious(t *testing.T) {
	room := NewRoom("r1", "h1")
	host := &Peer{ID: "h1", Role: RoleHost}
	room.AddPeer(host)

	room.SetProducer(host, "prod-1")
	room.SetProducer(host, "prod-2")

	if room.HostProducerID != "prod-2" {
		t.Fatalf("host producer = %q, want prod-2", room.HostProducerID)
	}
	if _, ok := room.ProducerOwner["prod-1"]; ok {
		t.Fatal("superseded producer still owned")
	}
	if owner := room.ProducerOwner["prod-2"]; owner != "h1" {
		t.Fatalf("prod-2 owned by %q, want h1", owner)
	}
}

func TestUserProducerDoesNotBecomeHostProducer(t *testing.T) {
	room := NewRoom("r1", "h1")
	user := &Peer{ID: "u1", Role: RoleUser, HostID: "h1"}
	room.AddPeer(user)

	room.SetProducer(user, "prod-1")

	if room.HostProducerID != "" {
		t.Fatalf("host producer = %q, want empty", room.HostProducerID)
	}
}

func TestRemovePeerClearsOwnership(t *testing.T) {
	room := NewRoom("r1", "h1")
	host := &Peer{ID: "h1", Role: RoleHost}
	room.AddPeer(host)
	room.SetProducer(host, "prod-1")

	room.RemovePeer("h1")

	if room.HostProducerID != "" {
		t.Fatal("host producer survived the peer")
	}
	if len(room.ProducerOwner) != 0 {
		t.Fatal("producer ownership survived the peer")
	}
	// a second removal of the same peer must be harmless
	room.RemovePeer("h1")
}

func TestResolveProducer(t *testing.T) {
	room := NewRoom("r1", "h1")
	user := &Peer{ID: "u1", Role: RoleUser}
	room.AddPeer(user)
	room.SetProducer(user, "prod-1")

	owner, ok := room.ResolveProducer("prod-1")
	if !ok || owner != user {
		t.Fatalf("ResolveProducer = %v, %v", owner, ok)
	}
	if _, ok := room.ResolveProducer("prod-unknown"); ok {
		t.Fatal("resolved a producer that was never announced")
	}
}

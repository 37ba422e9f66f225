package signalling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/api"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/config"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/registry"
)

type fakeSocket struct {
	mu     sync.Mutex
	frames []api.ServerMessage
	closed bool
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	msg, ok := v.(api.ServerMessage)
	if !ok {
		return fmt.Errorf("unexpected frame type %T", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("socket closed")
	}
	s.frames = append(s.frames, msg)
	return nil
}

func (s *fakeSocket) ReadJSON(interface{}) error {
	return errors.New("reads are driven by the test")
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) ofType(tp api.ServerMessageType) []api.ServerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.ServerMessage
	for _, f := range s.frames {
		if f.Type == tp {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeSocket) single(t *testing.T, tp api.ServerMessageType) api.ServerMessage {
	t.Helper()
	frames := s.ofType(tp)
	if len(frames) != 1 {
		t.Fatalf("got %d frames of type %s, want 1", len(frames), tp)
	}
	return frames[0]
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeVerifier map[string]domain.Identity

func (v fakeVerifier) Verify(token string) (domain.Identity, error) {
	identity, ok := v[token]
	if !ok {
		return domain.Identity{}, domain.ErrInvalidCredential
	}
	return identity, nil
}

type testRelay struct {
	mu           sync.Mutex
	transportSeq int
	produceSeq   int
	consumeSeq   int
	produceHook  func()
}

func (f *testRelay) CreateCall(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"codecs":["opus"]}`), nil
}

func (f *testRelay) CreateTransport(_ context.Context, _, _ string, dir domain.TransportDirection) (domain.TransportInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transportSeq++
	return domain.TransportInfo{ID: fmt.Sprintf("t-%s-%d", dir, f.transportSeq)}, nil
}

func (f *testRelay) ConnectTransport(context.Context, string, string, json.RawMessage) error {
	return nil
}

func (f *testRelay) Produce(context.Context, string, string, string, json.RawMessage) (string, error) {
	f.mu.Lock()
	f.produceSeq++
	id := fmt.Sprintf("prod-%d", f.produceSeq)
	hook := f.produceHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return id, nil
}

func (f *testRelay) Consume(_ context.Context, _, _, producerID string, _ json.RawMessage) (domain.ConsumerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumeSeq++
	return domain.ConsumerInfo{
		ID:         fmt.Sprintf("cons-%d", f.consumeSeq),
		ProducerID: producerID,
		Kind:       "audio",
	}, nil
}

func (f *testRelay) CreateRecordingIntake(context.Context, string, string, string, int) (string, error) {
	return "intake-1", nil
}

type captureCall struct {
	target         domain.CaptureTarget
	userProducerID string
	hostProducerID string
}

type fakeCoordinator struct {
	mu           sync.Mutex
	captures     []captureCall
	speaking     []string
	stoppedUsers []string
	stoppedRooms []string
}

func (f *fakeCoordinator) CaptureUserProducer(target domain.CaptureTarget, userProducerID, hostProducerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, captureCall{target, userProducerID, hostProducerID})
}

func (f *fakeCoordinator) SpeakingStarted(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, "start:"+userID)
}

func (f *fakeCoordinator) SpeakingStopped(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, "stop:"+userID)
}

func (f *fakeCoordinator) StopUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedUsers = append(f.stoppedUsers, userID)
}

func (f *fakeCoordinator) StopRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedRooms = append(f.stoppedRooms, roomID)
}

var testIdentities = fakeVerifier{
	"host-token": {ID: "h1", Role: domain.RoleHost, HostID: "h1"},
	"u1-token":   {ID: "u1", Role: domain.RoleUser, HostID: "h1"},
	"u2-token":   {ID: "u2", Role: domain.RoleUser, HostID: "h1"},
}

func newTestServer(t *testing.T) (*Server, *testRelay, *fakeCoordinator) {
	t.Helper()
	mgr, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}
	relay := &testRelay{}
	coordinator := &fakeCoordinator{}
	server := NewServer(
		fiber.New(),
		mgr,
		testIdentities,
		relay,
		coordinator,
		registry.NewPeerRegistry(),
		registry.NewRoomRegistry(relay),
	)
	t.Cleanup(server.Close)
	return server, relay, coordinator
}

func joinPeer(t *testing.T, server *Server, token, roomID string) (*session, *fakeSocket) {
	t.Helper()
	sock := &fakeSocket{}
	sess := &session{server: server, socket: sock}
	sess.dispatch(api.ClientMessage{
		Type: api.ClientMessageTypeJoin,
		Join: &api.JoinPayload{Token: token, RoomID: roomID},
	})
	return sess, sock
}

func produce(sess *session) {
	sess.dispatch(api.ClientMessage{
		Type:    api.ClientMessageTypeProduce,
		Produce: &api.ProducePayload{Kind: "audio", RTPParameters: json.RawMessage(`{}`)},
	})
}

func TestHostJoin(t *testing.T) {
	server, _, _ := newTestServer(t)

	sess, sock := joinPeer(t, server, "host-token", "")

	if sess.peer == nil {
		t.Fatal("session not joined")
	}
	joined := sock.single(t, api.ServerMessageTypeJoined)
	if joined.Joined.RoomID != "h1" {
		t.Fatalf("joined room = %q, want the host's own id", joined.Joined.RoomID)
	}
	if joined.Joined.SendTransport.ID == "" || joined.Joined.RecvTransport.ID == "" {
		t.Fatal("joined payload is missing a transport")
	}
	if joined.Joined.MediaCapabilities == nil {
		t.Fatal("joined payload is missing media capabilities")
	}
	if len(joined.Joined.ICEServers) == 0 {
		t.Fatal("joined payload is missing ice servers")
	}
	if _, ok := server.peers.Get("h1"); !ok {
		t.Fatal("host not registered")
	}
	if _, ok := server.rooms.Get("h1"); !ok {
		t.Fatal("room not registered")
	}
}

func TestJoinRejectsInvalidToken(t *testing.T) {
	server, _, _ := newTestServer(t)

	sess, sock := joinPeer(t, server, "bogus", "")

	if sess.peer != nil {
		t.Fatal("session joined with an invalid token")
	}
	sock.single(t, api.ServerMessageTypeAuthFailed)
	if sock.isClosed() {
		t.Fatal("connection closed after failed auth, client cannot retry")
	}
}

func TestUserJoinRequiresRoomID(t *testing.T) {
	server, _, _ := newTestServer(t)

	sess, sock := joinPeer(t, server, "u1-token", "")

	if sess.peer != nil {
		t.Fatal("user joined without naming a room")
	}
	sock.single(t, api.ServerMessageTypeJoinError)
}

func TestUserJoiningOngoingCallSeesHostProducer(t *testing.T) {
	server, _, _ := newTestServer(t)

	host, _ := joinPeer(t, server, "host-token", "")
	produce(host)

	_, userSock := joinPeer(t, server, "u1-token", "h1")

	frame := userSock.single(t, api.ServerMessageTypeHostProducer)
	if frame.Producer.ProducerID != host.peer.ProducerID {
		t.Fatalf("announced producer %q, want %q", frame.Producer.ProducerID, host.peer.ProducerID)
	}
	if frame.Producer.PeerID != "h1" {
		t.Fatalf("announced owner %q, want h1", frame.Producer.PeerID)
	}
}

func TestUserProduceNotifiesHostAndStartsCapture(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	host, hostSock := joinPeer(t, server, "host-token", "")
	produce(host)
	user, userSock := joinPeer(t, server, "u1-token", "h1")
	produce(user)

	userSock.single(t, api.ServerMessageTypeProduced)
	frame := hostSock.single(t, api.ServerMessageTypeNewProducer)
	if frame.Producer.PeerID != "u1" {
		t.Fatalf("new producer owner = %q, want u1", frame.Producer.PeerID)
	}

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.captures) != 1 {
		t.Fatalf("capture requested %d times, want 1", len(coordinator.captures))
	}
	capture := coordinator.captures[0]
	if capture.target != (domain.CaptureTarget{HostID: "h1", UserID: "u1", RoomID: "h1"}) {
		t.Fatalf("capture target = %+v", capture.target)
	}
	if capture.userProducerID != user.peer.ProducerID {
		t.Fatalf("capture user producer = %q, want %q", capture.userProducerID, user.peer.ProducerID)
	}
	if capture.hostProducerID != host.peer.ProducerID {
		t.Fatalf("capture host producer = %q, want %q", capture.hostProducerID, host.peer.ProducerID)
	}
}

func TestHostProduceNotifiesUsersOnly(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	host, _ := joinPeer(t, server, "host-token", "")
	_, userSock := joinPeer(t, server, "u1-token", "h1")

	produce(host)

	userSock.single(t, api.ServerMessageTypeHostProducer)
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.captures) != 0 {
		t.Fatal("host media must not trigger a user capture")
	}
}

func TestConsume(t *testing.T) {
	server, _, _ := newTestServer(t)

	host, _ := joinPeer(t, server, "host-token", "")
	produce(host)
	user, userSock := joinPeer(t, server, "u1-token", "h1")

	user.dispatch(api.ClientMessage{
		Type:    api.ClientMessageTypeConsume,
		Consume: &api.ConsumePayload{ProducerID: host.peer.ProducerID, RTPCapabilities: json.RawMessage(`{}`)},
	})

	frame := userSock.single(t, api.ServerMessageTypeConsumed)
	if frame.Consumed.ProducerID != host.peer.ProducerID {
		t.Fatalf("consumed producer = %q, want %q", frame.Consumed.ProducerID, host.peer.ProducerID)
	}
	if len(user.peer.ConsumerIDs) != 1 {
		t.Fatalf("peer tracks %d consumers, want 1", len(user.peer.ConsumerIDs))
	}
}

func TestConsumeUnknownProducer(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, _ = joinPeer(t, server, "host-token", "")
	user, userSock := joinPeer(t, server, "u1-token", "h1")

	user.dispatch(api.ClientMessage{
		Type:    api.ClientMessageTypeConsume,
		Consume: &api.ConsumePayload{ProducerID: "prod-gone", RTPCapabilities: json.RawMessage(`{}`)},
	})

	userSock.single(t, api.ServerMessageTypeConsumeError)
	if len(userSock.ofType(api.ServerMessageTypeConsumed)) != 0 {
		t.Fatal("consume of an unknown producer succeeded")
	}
}

func TestDuplicateLoginEvictsPreviousConnection(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	_, _ = joinPeer(t, server, "host-token", "")
	first, firstSock := joinPeer(t, server, "u1-token", "h1")
	second, _ := joinPeer(t, server, "u1-token", "h1")

	firstSock.single(t, api.ServerMessageTypeSessionRevoked)
	if !firstSock.isClosed() {
		t.Fatal("evicted connection was not closed")
	}
	if current, _ := server.peers.Get("u1"); current != second.peer {
		t.Fatal("registry does not point at the newest login")
	}

	// the evicted connection's late cleanup must leave the new login intact
	first.cleanup()
	if current, ok := server.peers.Get("u1"); !ok || current != second.peer {
		t.Fatal("stale cleanup removed the newest login")
	}
	room, _ := server.rooms.Get("h1")
	if room.Peers["u1"] != second.peer {
		t.Fatal("stale cleanup removed the newest login from the room")
	}
	// and must not stop a capture the new login owns
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.stoppedUsers) != 0 {
		t.Fatalf("stale cleanup stopped recording for %v", coordinator.stoppedUsers)
	}
}

func TestDisconnectCleanup(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	_, hostSock := joinPeer(t, server, "host-token", "")
	user, _ := joinPeer(t, server, "u1-token", "h1")
	produce(user)

	user.cleanup()

	if _, ok := server.peers.Get("u1"); ok {
		t.Fatal("peer still registered after disconnect")
	}
	room, _ := server.rooms.Get("h1")
	if _, ok := room.Peers["u1"]; ok {
		t.Fatal("peer still in the room after disconnect")
	}
	if len(room.ProducerOwner) != 0 {
		t.Fatal("producer ownership survived the disconnect")
	}
	if len(hostSock.ofType(api.ServerMessageTypeUserLeft)) != 1 {
		t.Fatal("host was not told the user left")
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.stoppedUsers) != 1 || coordinator.stoppedUsers[0] != "u1" {
		t.Fatalf("recording stops = %v, want [u1]", coordinator.stoppedUsers)
	}
}

func TestProduceResultAfterDisconnectIsDiscarded(t *testing.T) {
	server, relay, coordinator := newTestServer(t)

	_, _ = joinPeer(t, server, "host-token", "")
	user, userSock := joinPeer(t, server, "u1-token", "h1")

	// the connection drops while the produce round trip is in flight
	relay.mu.Lock()
	relay.produceHook = func() { user.closed.Store(true) }
	relay.mu.Unlock()

	produce(user)

	if len(userSock.ofType(api.ServerMessageTypeProduced)) != 0 {
		t.Fatal("produced frame written to a dead connection")
	}
	room, _ := server.rooms.Get("h1")
	if len(room.ProducerOwner) != 0 {
		t.Fatal("stale produce result mutated room state")
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.captures) != 0 {
		t.Fatal("stale produce result started a capture")
	}
}

func TestSpeakingForwardsToHost(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	_, hostSock := joinPeer(t, server, "host-token", "")
	user, _ := joinPeer(t, server, "u1-token", "h1")

	user.dispatch(api.ClientMessage{Type: api.ClientMessageTypeSpeakingStart})
	user.dispatch(api.ClientMessage{Type: api.ClientMessageTypeSpeakingStop})

	frames := hostSock.ofType(api.ServerMessageTypeUserSpeaking)
	if len(frames) != 2 {
		t.Fatalf("host saw %d speaking frames, want 2", len(frames))
	}
	if !frames[0].Speaking.Speaking || frames[1].Speaking.Speaking {
		t.Fatal("speaking transitions delivered out of order")
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.speaking) != 2 || coordinator.speaking[0] != "start:u1" || coordinator.speaking[1] != "stop:u1" {
		t.Fatalf("clip calls = %v", coordinator.speaking)
	}
}

func TestCallStoppedReachesHostScopeAndStopsRecording(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	host, _ := joinPeer(t, server, "host-token", "")
	_, u1Sock := joinPeer(t, server, "u1-token", "h1")
	_, u2Sock := joinPeer(t, server, "u2-token", "h1")

	host.dispatch(api.ClientMessage{Type: api.ClientMessageTypeCallStopped})

	u1Sock.single(t, api.ServerMessageTypeCallStopped)
	u2Sock.single(t, api.ServerMessageTypeCallStopped)
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.stoppedRooms) != 1 || coordinator.stoppedRooms[0] != "h1" {
		t.Fatalf("stopped rooms = %v, want [h1]", coordinator.stoppedRooms)
	}
}

func TestCallLifecycleIgnoredFromUser(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	_, hostSock := joinPeer(t, server, "host-token", "")
	user, _ := joinPeer(t, server, "u1-token", "h1")

	user.dispatch(api.ClientMessage{Type: api.ClientMessageTypeCallStopped})

	if len(hostSock.ofType(api.ServerMessageTypeCallStopped)) != 0 {
		t.Fatal("user frame ended the call")
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if len(coordinator.stoppedRooms) != 0 {
		t.Fatal("user frame stopped room recording")
	}
}

func TestProduceFramesDoNotInterleaveWithinRoom(t *testing.T) {
	server, relay, _ := newTestServer(t)

	_, _ = joinPeer(t, server, "host-token", "")
	u1, _ := joinPeer(t, server, "u1-token", "h1")
	u2, _ := joinPeer(t, server, "u2-token", "h1")

	var inFlight atomic.Int32
	var overlapped atomic.Bool
	relay.mu.Lock()
	relay.produceHook = func() {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}
	relay.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range []*session{u1, u2} {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			produce(s)
		}(sess)
	}
	wg.Wait()

	if overlapped.Load() {
		t.Fatal("two produce round trips of the same room overlapped")
	}
}

func TestClientPingAnsweredWithPong(t *testing.T) {
	server, _, _ := newTestServer(t)

	// liveness works before authentication too
	sock := &fakeSocket{}
	sess := &session{server: server, socket: sock}
	sess.dispatch(api.ClientMessage{
		Type: api.ClientMessageTypePing,
		Ping: &api.PingPayload{Timestamp: 12345},
	})

	frame := sock.single(t, api.ServerMessageTypePong)
	if frame.Pong == nil || frame.Pong.Timestamp != 12345 {
		t.Fatalf("pong = %+v, want the client timestamp echoed", frame.Pong)
	}
}

func TestPongAnswersWithLatency(t *testing.T) {
	server, _, _ := newTestServer(t)

	sess, sock := joinPeer(t, server, "host-token", "")
	sess.dispatch(api.ClientMessage{
		Type: api.ClientMessageTypePong,
		Pong: &api.PongPayload{Timestamp: time.Now().Add(-20 * time.Millisecond).UnixMilli()},
	})

	frame := sock.single(t, api.ServerMessageTypeLatencyUpdate)
	if frame.Latency.LatencyMsec < 20 {
		t.Fatalf("latency = %dms, want at least the echoed delay", frame.Latency.LatencyMsec)
	}
}

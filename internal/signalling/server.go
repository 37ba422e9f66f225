package signalling

import (
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/api"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/config"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/registry"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/sockets"
)

// Server is the signaling endpoint of the control plane. Clients connect
// over one WebSocket, authenticate, join a call, and drive the media
// handshake from there; the server orchestrates the SFU and the recorder
// on their behalf.
//
// Endpoints:
//   - GET /ws/call: the signaling WebSocket for hosts and users
//   - /api/report/*: read-only room and participant queries (basicauth)
//   - /api/admin/*: forced session revocation (basicauth)
//
// Every room gets a dedicated worker goroutine; all state mutations of a
// room and its peers happen on that worker.
type Server struct {
	app        *fiber.App
	cfgManager *config.Manager
	verifier   domain.CredentialVerifier
	relay      domain.MediaRelay
	recording  domain.CaptureCoordinator

	peers    *registry.PeerRegistry
	rooms    *registry.RoomRegistry
	pool     *sockets.Pool
	notifier *Notifier

	workersMu sync.Mutex
	workers   map[string]*roomWorker
}

func NewServer(
	app *fiber.App,
	cfgManager *config.Manager,
	verifier domain.CredentialVerifier,
	relay domain.MediaRelay,
	recording domain.CaptureCoordinator,
	peers *registry.PeerRegistry,
	rooms *registry.RoomRegistry,
) *Server {
	pool := sockets.NewPool()
	return &Server{
		app:        app,
		cfgManager: cfgManager,
		verifier:   verifier,
		relay:      relay,
		recording:  recording,
		peers:      peers,
		rooms:      rooms,
		pool:       pool,
		notifier:   NewNotifier(peers, pool),
	}
}

func (s *Server) SetupRoutes() {
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/call", websocket.New(func(c *websocket.Conn) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in /ws/call handler", "error", err)
			}
		}()
		s.handleSocket(c)
	}))

	s.setupReportApi()
}

func (s *Server) Close() {
	s.pool.Close()
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	for _, w := range s.workers {
		w.Stop()
	}
}

// workerFor returns the room's worker, creating it on first use. Workers
// live as long as the process; rooms are retained to tolerate reconnects
// and stale-room housekeeping is out of scope here.
func (s *Server) workerFor(roomID string) *roomWorker {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	if s.workers == nil {
		s.workers = make(map[string]*roomWorker)
	}
	w, ok := s.workers[roomID]
	if !ok {
		w = newRoomWorker()
		s.workers[roomID] = w
	}
	return w
}

// RevokeSession forcibly disconnects the peer's connection, used when an
// external session-management decision (another device logged in, account
// disabled) invalidates it. Returns false if no live connection exists.
func (s *Server) RevokeSession(peerID, reason string) bool {
	sock := s.pool.Get(peerID)
	if sock == nil {
		return false
	}
	_ = sock.WriteJSON(api.ServerMessage{
		Type:           api.ServerMessageTypeSessionRevoked,
		SessionRevoked: &api.SessionRevokedPayload{Reason: reason},
	})
	_ = sock.Close()
	metrics.SessionsRevokedTotal.Inc()
	slog.Info("session revoked", "peerID", peerID, "reason", reason)
	return true
}

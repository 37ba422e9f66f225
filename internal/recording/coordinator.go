package recording

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
)

type Config struct {
	StartTimeout  time.Duration
	StartAttempts int
	PreRoll       time.Duration
	PostRoll      time.Duration
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateStarting
	stateActive
	stateStopping
)

func (s sessionState) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateActive:
		return "active"
	case stateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// session tracks one in-flight capture for a user peer.
type session struct {
	target domain.CaptureTarget
	state  sessionState
	// cmd serializes the clip and stop commands of this session, so they
	// reach the recorder in issue order.
	cmd sync.Mutex
	// stopDeferred is set when a stop arrives while the start sequence is
	// still in flight. The stop is applied as soon as the start resolves,
	// so no capture session leaks on the recorder.
	stopDeferred bool
}

// Coordinator drives the start/stop handshake between the recorder and
// the SFU recording intake, with bounded retries. Recording is
// best-effort: every failure here degrades silently and never affects
// the call itself.
type Coordinator struct {
	relay    domain.MediaRelay
	recorder domain.RecorderControl

	mu       sync.Mutex
	cfg      Config
	sessions map[string]*session
}

func NewCoordinator(relay domain.MediaRelay, recorder domain.RecorderControl, cfg Config) *Coordinator {
	if cfg.StartAttempts <= 0 {
		cfg.StartAttempts = 4
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = time.Second
	}
	return &Coordinator{
		relay:    relay,
		recorder: recorder,
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

var _ domain.CaptureCoordinator = (*Coordinator)(nil)

func (c *Coordinator) UpdateConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.StartAttempts > 0 {
		c.cfg.StartAttempts = cfg.StartAttempts
	}
	if cfg.StartTimeout > 0 {
		c.cfg.StartTimeout = cfg.StartTimeout
	}
	c.cfg.PreRoll = cfg.PreRoll
	c.cfg.PostRoll = cfg.PostRoll
}

// CaptureUserProducer begins the capture start sequence for a user that
// just produced media. Non-blocking; the handshake runs on its own
// goroutine.
func (c *Coordinator) CaptureUserProducer(target domain.CaptureTarget, userProducerID, hostProducerID string) {
	c.mu.Lock()
	if existing, ok := c.sessions[target.UserID]; ok && existing.state != stateIdle {
		c.mu.Unlock()
		slog.Debug("capture already in progress", "userID", target.UserID, "state", existing.state.String())
		return
	}
	sess := &session{target: target, state: stateStarting}
	c.sessions[target.UserID] = sess
	cfg := c.cfg
	c.mu.Unlock()

	metrics.RecordingSessions.WithLabelValues("starting").Inc()

	go c.runStart(sess, cfg, userProducerID, hostProducerID)
}

func (c *Coordinator) runStart(sess *session, cfg Config, userProducerID, hostProducerID string) {
	userID := sess.target.UserID

	for attempt := 1; attempt <= cfg.StartAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordingStartRetriesTotal.Inc()
		}

		err := c.startOnce(sess.target, cfg, userProducerID, hostProducerID)
		if err == nil {
			if c.settleStarted(sess) {
				return
			}
			// stop was requested mid-start, undo the capture right away
			c.stopCapture(sess)
			return
		}

		slog.Warn("capture start attempt failed",
			"userID", userID, "attempt", attempt, "error", err)

		if c.abandonIfStopDeferred(sess) {
			return
		}
	}

	slog.Error("capture abandoned, call continues without recording",
		"userID", userID, "attempts", cfg.StartAttempts)
	metrics.RecordingAbandonedTotal.Inc()
	c.remove(sess, "starting")
}

// startOnce runs one full start sequence: start-capture, await the
// correlated result, then wire the SFU intake endpoints the recorder
// assigned. Any failure fails the whole attempt.
func (c *Coordinator) startOnce(target domain.CaptureTarget, cfg Config, userProducerID, hostProducerID string) error {
	ctx := context.Background()

	if err := c.recorder.StartCapture(ctx, target, cfg.PreRoll, cfg.PostRoll); err != nil {
		return err
	}

	awaitCtx, cancel := context.WithTimeout(ctx, cfg.StartTimeout)
	endpoints, err := c.recorder.AwaitStartResult(awaitCtx, target.UserID)
	cancel()
	if err != nil {
		return err
	}

	if _, err := c.relay.CreateRecordingIntake(ctx, target.RoomID, userProducerID, endpoints.Address, endpoints.UserPort); err != nil {
		_ = c.recorder.StopCapture(ctx, target.UserID)
		return err
	}

	if hostProducerID != "" && endpoints.HostPort != 0 {
		if _, err := c.relay.CreateRecordingIntake(ctx, target.RoomID, hostProducerID, endpoints.Address, endpoints.HostPort); err != nil {
			_ = c.recorder.StopCapture(ctx, target.UserID)
			return err
		}
	}

	return nil
}

// settleStarted moves a successfully started session to Active. Returns
// false when a deferred stop claimed the session instead.
func (c *Coordinator) settleStarted(sess *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess.stopDeferred {
		sess.state = stateStopping
		metrics.RecordingSessions.WithLabelValues("starting").Dec()
		return false
	}
	sess.state = stateActive
	metrics.RecordingSessions.WithLabelValues("starting").Dec()
	metrics.RecordingSessions.WithLabelValues("active").Inc()
	slog.Info("capture active", "userID", sess.target.UserID, "roomID", sess.target.RoomID)
	return true
}

func (c *Coordinator) abandonIfStopDeferred(sess *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !sess.stopDeferred {
		return false
	}
	// the failed attempt left nothing on the recorder to undo
	delete(c.sessions, sess.target.UserID)
	metrics.RecordingSessions.WithLabelValues("starting").Dec()
	return true
}

func (c *Coordinator) SpeakingStarted(userID string) {
	c.clip(userID, true)
}

func (c *Coordinator) SpeakingStopped(userID string) {
	c.clip(userID, false)
}

// clip runs on the caller so a rapid start/stop pair cannot reach the
// recorder inverted. The room worker issuing speaking updates is allowed
// to block on recorder round trips.
func (c *Coordinator) clip(userID string, start bool) {
	c.mu.Lock()
	sess, ok := c.sessions[userID]
	c.mu.Unlock()
	if !ok {
		return
	}

	sess.cmd.Lock()
	defer sess.cmd.Unlock()
	c.mu.Lock()
	active := sess.state == stateActive
	c.mu.Unlock()
	if !active {
		return
	}

	var err error
	if start {
		err = c.recorder.StartClip(context.Background(), userID)
	} else {
		err = c.recorder.StopClip(context.Background(), userID)
	}
	if err != nil {
		slog.Warn("clip command failed", "userID", userID, "start", start, "error", err)
	}
}

// StopUser finalizes the user's capture. Safe to call at any point of the
// session lifecycle, including while the start sequence is still in
// flight, and safe to call more than once.
func (c *Coordinator) StopUser(userID string) {
	c.mu.Lock()
	sess, ok := c.sessions[userID]
	if !ok {
		c.mu.Unlock()
		return
	}
	switch sess.state {
	case stateStarting:
		sess.stopDeferred = true
		c.mu.Unlock()
		return
	case stateActive:
		sess.state = stateStopping
		metrics.RecordingSessions.WithLabelValues("active").Dec()
		c.mu.Unlock()
		go c.stopCapture(sess)
		return
	default:
		// already stopping or settled
		c.mu.Unlock()
		return
	}
}

func (c *Coordinator) StopRoom(roomID string) {
	c.mu.Lock()
	userIDs := make([]string, 0)
	for userID, sess := range c.sessions {
		if sess.target.RoomID == roomID {
			userIDs = append(userIDs, userID)
		}
	}
	c.mu.Unlock()

	for _, userID := range userIDs {
		c.StopUser(userID)
	}
}

func (c *Coordinator) stopCapture(sess *session) {
	sess.cmd.Lock()
	defer sess.cmd.Unlock()
	ctx := context.Background()
	userID := sess.target.UserID

	if err := c.recorder.StopClip(ctx, userID); err != nil {
		slog.Debug("stop-clip before stop-capture failed", "userID", userID, "error", err)
	}
	if err := c.recorder.StopCapture(ctx, userID); err != nil {
		slog.Warn("stop-capture failed", "userID", userID, "error", err)
	}

	c.remove(sess, "")
}

func (c *Coordinator) remove(sess *session, gauge string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.sessions[sess.target.UserID]; ok && current == sess {
		delete(c.sessions, sess.target.UserID)
	}
	if gauge != "" {
		metrics.RecordingSessions.WithLabelValues(gauge).Dec()
	}
}

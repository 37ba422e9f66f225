package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/rpc"
)

const eventStartCaptureResult = "start-capture-result"

// Client drives the external recording process over the RPC channel.
//
// start-capture is a two-step exchange: the command itself is acknowledged
// immediately, and the actual outcome arrives later as a
// start-capture-result event correlated by user id. StartCapture registers
// a waiter before sending so the result cannot slip through between send
// and await.
type Client struct {
	ch      *rpc.Channel
	waiters *rpc.SyncMapWrapper[string, chan startResult]
}

type startResult struct {
	endpoints domain.CaptureEndpoints
	err       error
}

func NewClient(ch *rpc.Channel) *Client {
	c := &Client{
		ch:      ch,
		waiters: rpc.NewSyncMapWrapper[string, chan startResult](),
	}
	ch.OnEvent(c.handleEvent)
	return c
}

var _ domain.RecorderControl = (*Client)(nil)

type startCaptureRequest struct {
	HostID       string `json:"hostId"`
	UserID       string `json:"userId"`
	RoomID       string `json:"roomId"`
	PreRollMsec  int64  `json:"preRollMsec"`
	PostRollMsec int64  `json:"postRollMsec"`
}

func (c *Client) StartCapture(ctx context.Context, target domain.CaptureTarget, preRoll, postRoll time.Duration) error {
	c.waiters.Store(target.UserID, make(chan startResult, 1))

	_, err := c.ch.Call(ctx, "start-capture", startCaptureRequest{
		HostID:       target.HostID,
		UserID:       target.UserID,
		RoomID:       target.RoomID,
		PreRollMsec:  preRoll.Milliseconds(),
		PostRollMsec: postRoll.Milliseconds(),
	})
	if err != nil {
		c.waiters.Delete(target.UserID)
		return err
	}
	return nil
}

// AwaitStartResult blocks until the recorder reports the capture outcome
// for the user, or ctx expires.
func (c *Client) AwaitStartResult(ctx context.Context, userID string) (domain.CaptureEndpoints, error) {
	waiter, ok := c.waiters.Load(userID)
	if !ok {
		return domain.CaptureEndpoints{}, fmt.Errorf("no capture start in flight for user %s", userID)
	}
	defer c.waiters.Delete(userID)

	select {
	case res := <-waiter:
		return res.endpoints, res.err
	case <-ctx.Done():
		return domain.CaptureEndpoints{}, ctx.Err()
	}
}

type clipRequest struct {
	UserID string `json:"userId"`
}

func (c *Client) StartClip(ctx context.Context, userID string) error {
	_, err := c.ch.Call(ctx, "start-clip", clipRequest{UserID: userID})
	return err
}

func (c *Client) StopClip(ctx context.Context, userID string) error {
	_, err := c.ch.Call(ctx, "stop-clip", clipRequest{UserID: userID})
	return err
}

func (c *Client) StopCapture(ctx context.Context, userID string) error {
	_, err := c.ch.Call(ctx, "stop-capture", clipRequest{UserID: userID})
	return err
}

type startCaptureResultEvent struct {
	UserID    string                  `json:"userId"`
	OK        bool                    `json:"ok"`
	Error     string                  `json:"error"`
	Endpoints domain.CaptureEndpoints `json:"endpoints"`
}

func (c *Client) handleEvent(ev rpc.Event) {
	if ev.Method != eventStartCaptureResult {
		slog.Debug("ignoring recorder event", "method", ev.Method)
		return
	}

	var result startCaptureResultEvent
	if err := json.Unmarshal(ev.Data, &result); err != nil {
		slog.Warn("dropping malformed start-capture-result", "error", err)
		return
	}

	waiter, ok := c.waiters.Load(result.UserID)
	if !ok {
		slog.Debug("start-capture-result with no waiter", "userID", result.UserID)
		return
	}

	res := startResult{endpoints: result.Endpoints}
	if !result.OK {
		res.err = fmt.Errorf("%w: %s", domain.ErrRecorderRejected, result.Error)
	}

	select {
	case waiter <- res:
	default:
		// waiter already holds an undelivered result, keep the first
	}
}

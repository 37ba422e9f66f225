package domain

import (
	"context"
	"time"
)

// CaptureTarget names the capture session on the recorder: which user is
// being recorded, which host the user belongs to, and the call.
type CaptureTarget struct {
	HostID string
	UserID string
	RoomID string
}

// CaptureEndpoints are the recorder-assigned RTP intake endpoints that the
// SFU should forward producers to.
type CaptureEndpoints struct {
	Address  string `json:"address"`
	UserPort int    `json:"userPort"`
	HostPort int    `json:"hostPort"`
}

// RecorderControl is the command surface of the external recording process.
// StartCapture resolves asynchronously: the recorder answers with a
// start-capture-result event correlated by user id, which AwaitStartResult
// delivers.
type RecorderControl interface {
	StartCapture(ctx context.Context, target CaptureTarget, preRoll, postRoll time.Duration) error
	AwaitStartResult(ctx context.Context, userID string) (CaptureEndpoints, error)
	StartClip(ctx context.Context, userID string) error
	StopClip(ctx context.Context, userID string) error
	StopCapture(ctx context.Context, userID string) error
}

// CaptureCoordinator drives recording sessions on behalf of the signaling
// layer. Failures degrade silently and never affect the call itself. Clip
// commands run on the caller, so per user they reach the recorder in the
// order they were issued.
type CaptureCoordinator interface {
	CaptureUserProducer(target CaptureTarget, userProducerID, hostProducerID string)
	SpeakingStarted(userID string)
	SpeakingStopped(userID string)
	StopUser(userID string)
	StopRoom(roomID string)
}

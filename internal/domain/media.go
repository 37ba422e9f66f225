package domain

import (
	"context"
	"encoding/json"
)

type TransportDirection string

const (
	TransportSend TransportDirection = "send"
	TransportRecv TransportDirection = "recv"
)

// TransportInfo is the SFU's description of a freshly created transport.
// The negotiation blobs stay opaque; they are relayed to the client as is.
type TransportInfo struct {
	ID             string          `json:"id"`
	ICEParameters  json.RawMessage `json:"iceParameters"`
	ICECandidates  json.RawMessage `json:"iceCandidates"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

type ConsumerInfo struct {
	ID            string          `json:"id"`
	ProducerID    string          `json:"producerId"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
}

// MediaRelay is the command surface of the external SFU process, reached
// over the RPC channel. Every call is an asynchronous round trip.
type MediaRelay interface {
	CreateCall(ctx context.Context, roomID string) (json.RawMessage, error)
	CreateTransport(ctx context.Context, roomID, peerID string, dir TransportDirection) (TransportInfo, error)
	ConnectTransport(ctx context.Context, roomID, transportID string, dtlsParameters json.RawMessage) error
	Produce(ctx context.Context, roomID, transportID, kind string, rtpParameters json.RawMessage) (string, error)
	Consume(ctx context.Context, roomID, transportID, producerID string, rtpCapabilities json.RawMessage) (ConsumerInfo, error)
	CreateRecordingIntake(ctx context.Context, roomID, producerID, address string, port int) (string, error)
}

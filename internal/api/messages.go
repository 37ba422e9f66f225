package api

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

type ClientMessageType string
type ServerMessageType string

const (
	ClientMessageTypeJoin                 = ClientMessageType("join")
	ClientMessageTypeConnectSendTransport = ClientMessageType("connect_send_transport")
	ClientMessageTypeConnectRecvTransport = ClientMessageType("connect_recv_transport")
	ClientMessageTypeProduce              = ClientMessageType("produce")
	ClientMessageTypeConsume              = ClientMessageType("consume")
	ClientMessageTypeSpeakingStart        = ClientMessageType("speaking_start")
	ClientMessageTypeSpeakingStop         = ClientMessageType("speaking_stop")
	ClientMessageTypeCallStarted          = ClientMessageType("call_started")
	ClientMessageTypeCallStopped          = ClientMessageType("call_stopped")
	ClientMessageTypePing                 = ClientMessageType("ping")
	ClientMessageTypePong                 = ClientMessageType("pong")
)

const (
	ServerMessageTypeAuthFailed     = ServerMessageType("auth_failed")
	ServerMessageTypeJoined         = ServerMessageType("joined")
	ServerMessageTypeJoinError      = ServerMessageType("join_error")
	ServerMessageTypeHostProducer   = ServerMessageType("host_producer")
	ServerMessageTypeNewProducer    = ServerMessageType("new_producer")
	ServerMessageTypeProduced       = ServerMessageType("produced")
	ServerMessageTypeProduceError   = ServerMessageType("produce_error")
	ServerMessageTypeConsumed       = ServerMessageType("consumed")
	ServerMessageTypeConsumeError   = ServerMessageType("consume_error")
	ServerMessageTypeUserJoined     = ServerMessageType("user_joined")
	ServerMessageTypeUserLeft       = ServerMessageType("user_left")
	ServerMessageTypeUserSpeaking   = ServerMessageType("user_speaking_status")
	ServerMessageTypeCallStarted    = ServerMessageType("call_started")
	ServerMessageTypeCallStopped    = ServerMessageType("call_stopped")
	ServerMessageTypeSessionRevoked = ServerMessageType("session_revoked")
	ServerMessageTypePing           = ServerMessageType("ping")
	ServerMessageTypePong           = ServerMessageType("pong")
	ServerMessageTypeLatencyUpdate  = ServerMessageType("latency_update")
)

// ClientMessage is the envelope of every inbound frame. Type selects which
// payload pointer is populated.
type ClientMessage struct {
	Type             ClientMessageType        `json:"type"`
	Join             *JoinPayload             `json:"join,omitempty"`
	ConnectTransport *ConnectTransportPayload `json:"connectTransport,omitempty"`
	Produce          *ProducePayload          `json:"produce,omitempty"`
	Consume          *ConsumePayload          `json:"consume,omitempty"`
	Ping             *PingPayload             `json:"ping,omitempty"`
	Pong             *PongPayload             `json:"pong,omitempty"`
}

type JoinPayload struct {
	Token  string `json:"token"`
	RoomID string `json:"roomId"`
}

type ConnectTransportPayload struct {
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

type ProducePayload struct {
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
}

type ConsumePayload struct {
	ProducerID      string          `json:"producerId"`
	RTPCapabilities json.RawMessage `json:"rtpCapabilities"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ServerMessage is the envelope of every outbound frame.
type ServerMessage struct {
	Type           ServerMessageType      `json:"type"`
	Error          *ErrorPayload          `json:"error,omitempty"`
	Joined         *JoinedPayload         `json:"joined,omitempty"`
	Producer       *ProducerPayload       `json:"producer,omitempty"`
	Produced       *ProducedPayload       `json:"produced,omitempty"`
	Consumed       *ConsumedPayload       `json:"consumed,omitempty"`
	Presence       *PresencePayload       `json:"presence,omitempty"`
	Speaking       *SpeakingPayload       `json:"speaking,omitempty"`
	Call           *CallPayload           `json:"call,omitempty"`
	SessionRevoked *SessionRevokedPayload `json:"sessionRevoked,omitempty"`
	Ping           *PingPayload           `json:"ping,omitempty"`
	Pong           *PongPayload           `json:"pong,omitempty"`
	Latency        *LatencyPayload        `json:"latency,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// JoinedPayload acknowledges a successful join: both transports plus the
// connectivity configuration the client needs to reach the relay.
type JoinedPayload struct {
	RoomID            string             `json:"roomId"`
	MediaCapabilities json.RawMessage    `json:"mediaCapabilities"`
	SendTransport     TransportPayload   `json:"sendTransport"`
	RecvTransport     TransportPayload   `json:"recvTransport"`
	ICEServers        []webrtc.ICEServer `json:"iceServers,omitempty"`
}

type TransportPayload struct {
	ID             string          `json:"id"`
	ICEParameters  json.RawMessage `json:"iceParameters"`
	ICECandidates  json.RawMessage `json:"iceCandidates"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

type ProducerPayload struct {
	ProducerID string `json:"producerId"`
	PeerID     string `json:"peerId"`
}

type ProducedPayload struct {
	ProducerID string `json:"producerId"`
}

type ConsumedPayload struct {
	ConsumerID    string          `json:"consumerId"`
	ProducerID    string          `json:"producerId"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
}

type PresencePayload struct {
	PeerID string `json:"peerId"`
	Role   string `json:"role"`
}

type SpeakingPayload struct {
	PeerID   string `json:"peerId"`
	Speaking bool   `json:"speaking"`
}

type CallPayload struct {
	RoomID            string          `json:"roomId"`
	MediaCapabilities json.RawMessage `json:"mediaCapabilities,omitempty"`
	HostProducerID    string          `json:"hostProducerId,omitempty"`
}

type SessionRevokedPayload struct {
	Reason string `json:"reason"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type LatencyPayload struct {
	LatencyMsec int64 `json:"latencyMsec"`
}

package sfu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/rpc"
)

// Client issues control commands to the external SFU over the RPC
// channel. All media-level blobs stay opaque json.
type Client struct {
	ch *rpc.Channel
}

func NewClient(ch *rpc.Channel) *Client {
	return &Client{ch: ch}
}

var _ domain.MediaRelay = (*Client)(nil)

type createCallRequest struct {
	RoomID string `json:"roomId"`
}

type createCallResponse struct {
	MediaCapabilities json.RawMessage `json:"mediaCapabilities"`
}

func (c *Client) CreateCall(ctx context.Context, roomID string) (json.RawMessage, error) {
	data, err := c.ch.Call(ctx, "create-call", createCallRequest{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	var resp createCallResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode create-call response: %w", err)
	}
	return resp.MediaCapabilities, nil
}

type createTransportRequest struct {
	RoomID    string `json:"roomId"`
	PeerID    string `json:"peerId"`
	Direction string `json:"direction"`
}

func (c *Client) CreateTransport(ctx context.Context, roomID, peerID string, dir domain.TransportDirection) (domain.TransportInfo, error) {
	data, err := c.ch.Call(ctx, "create-transport", createTransportRequest{
		RoomID:    roomID,
		PeerID:    peerID,
		Direction: string(dir),
	})
	if err != nil {
		return domain.TransportInfo{}, err
	}
	var info domain.TransportInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.TransportInfo{}, fmt.Errorf("decode create-transport response: %w", err)
	}
	return info, nil
}

type connectTransportRequest struct {
	RoomID         string          `json:"roomId"`
	TransportID    string          `json:"transportId"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

func (c *Client) ConnectTransport(ctx context.Context, roomID, transportID string, dtlsParameters json.RawMessage) error {
	_, err := c.ch.Call(ctx, "connect-transport", connectTransportRequest{
		RoomID:         roomID,
		TransportID:    transportID,
		DTLSParameters: dtlsParameters,
	})
	return err
}

type produceRequest struct {
	RoomID        string          `json:"roomId"`
	TransportID   string          `json:"transportId"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
}

type produceResponse struct {
	ProducerID string `json:"producerId"`
}

func (c *Client) Produce(ctx context.Context, roomID, transportID, kind string, rtpParameters json.RawMessage) (string, error) {
	data, err := c.ch.Call(ctx, "produce", produceRequest{
		RoomID:        roomID,
		TransportID:   transportID,
		Kind:          kind,
		RTPParameters: rtpParameters,
	})
	if err != nil {
		return "", err
	}
	var resp produceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode produce response: %w", err)
	}
	metrics.ProducersCreatedTotal.Inc()
	return resp.ProducerID, nil
}

type consumeRequest struct {
	RoomID          string          `json:"roomId"`
	TransportID     string          `json:"transportId"`
	ProducerID      string          `json:"producerId"`
	RTPCapabilities json.RawMessage `json:"rtpCapabilities"`
}

func (c *Client) Consume(ctx context.Context, roomID, transportID, producerID string, rtpCapabilities json.RawMessage) (domain.ConsumerInfo, error) {
	data, err := c.ch.Call(ctx, "consume", consumeRequest{
		RoomID:          roomID,
		TransportID:     transportID,
		ProducerID:      producerID,
		RTPCapabilities: rtpCapabilities,
	})
	if err != nil {
		return domain.ConsumerInfo{}, err
	}
	var info domain.ConsumerInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.ConsumerInfo{}, fmt.Errorf("decode consume response: %w", err)
	}
	metrics.ConsumersCreatedTotal.Inc()
	return info, nil
}

type createRecordingIntakeRequest struct {
	RoomID     string `json:"roomId"`
	ProducerID string `json:"producerId"`
	Address    string `json:"address"`
	Port       int    `json:"port"`
}

type createRecordingIntakeResponse struct {
	IntakeID string `json:"intakeId"`
}

// CreateRecordingIntake asks the SFU to forward a producer's RTP to the
// recorder endpoint.
func (c *Client) CreateRecordingIntake(ctx context.Context, roomID, producerID, address string, port int) (string, error) {
	data, err := c.ch.Call(ctx, "create-recording-intake", createRecordingIntakeRequest{
		RoomID:     roomID,
		ProducerID: producerID,
		Address:    address,
		Port:       port,
	})
	if err != nil {
		return "", err
	}
	var resp createRecordingIntakeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode create-recording-intake response: %w", err)
	}
	return resp.IntakeID, nil
}

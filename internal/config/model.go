package config

import (
	"time"

	"github.com/pion/webrtc/v4"
)

type AppConfig struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Relay    RelayConfig    `json:"relay" yaml:"relay"`
	Recorder RecorderConfig `json:"recorder" yaml:"recorder"`
	WebRTC   WebRTCConfig   `json:"webrtc" yaml:"webrtc"`
}

type ServerConfig struct {
	Port             int    `json:"port" yaml:"port"`
	MetricsAddr      string `json:"metricsAddr" yaml:"metricsAddr"`
	PingIntervalMsec int    `json:"pingIntervalMsec" yaml:"pingIntervalMsec"`
}

type SecurityConfig struct {
	TokenSecret     string  `json:"tokenSecret" yaml:"tokenSecret"`
	AdminCredential *string `json:"adminCredential" yaml:"adminCredential"`
	TLSCrtFile      *string `json:"tlsCrtFile" yaml:"tlsCrtFile"`
	TLSKeyFile      *string `json:"tlsKeyFile" yaml:"tlsKeyFile"`
}

// RelayConfig points at the SFU control socket.
type RelayConfig struct {
	URL             string `json:"url" yaml:"url"`
	CallTimeoutMsec int    `json:"callTimeoutMsec" yaml:"callTimeoutMsec"`
}

type RecorderConfig struct {
	URL              string `json:"url" yaml:"url"`
	CallTimeoutMsec  int    `json:"callTimeoutMsec" yaml:"callTimeoutMsec"`
	StartTimeoutMsec int    `json:"startTimeoutMsec" yaml:"startTimeoutMsec"`
	StartAttempts    int    `json:"startAttempts" yaml:"startAttempts"`
	PreRollMsec      int    `json:"preRollMsec" yaml:"preRollMsec"`
	PostRollMsec     int    `json:"postRollMsec" yaml:"postRollMsec"`
}

// WebRTCConfig is the relay connectivity configuration handed to clients
// when they join, so they can reach the SFU through NAT.
type WebRTCConfig struct {
	ICEServers []webrtc.ICEServer `json:"iceServers" yaml:"iceServers"`
}

func (c ServerConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMsec) * time.Millisecond
}

func (c RelayConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMsec) * time.Millisecond
}

func (c RecorderConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMsec) * time.Millisecond
}

func (c RecorderConfig) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutMsec) * time.Millisecond
}

func (c RecorderConfig) PreRoll() time.Duration {
	return time.Duration(c.PreRollMsec) * time.Millisecond
}

func (c RecorderConfig) PostRoll() time.Duration {
	return time.Duration(c.PostRollMsec) * time.Millisecond
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:             8090,
			MetricsAddr:      ":9091",
			PingIntervalMsec: 30000,
		},
		Security: SecurityConfig{
			TokenSecret: "",
		},
		Relay: RelayConfig{
			URL:             "ws://127.0.0.1:4443/rpc",
			CallTimeoutMsec: 10000,
		},
		Recorder: RecorderConfig{
			URL:              "ws://127.0.0.1:4444/rpc",
			CallTimeoutMsec:  5000,
			StartTimeoutMsec: 1000,
			StartAttempts:    4,
			PreRollMsec:      2000,
			PostRollMsec:     2000,
		},
		WebRTC: WebRTCConfig{
			ICEServers: []webrtc.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
	}
}

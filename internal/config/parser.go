package config

import "github.com/pion/webrtc/v4"

type RawServerConfig struct {
	Port             *int    `yaml:"port" json:"port"`
	MetricsAddr      *string `yaml:"metricsAddr" json:"metricsAddr"`
	PingIntervalMsec *int    `yaml:"pingIntervalMsec" json:"pingIntervalMsec"`
}

func (r RawServerConfig) ToDomain() ServerConfig {
	var cfg ServerConfig
	if r.Port != nil {
		cfg.Port = *r.Port
	}
	if r.MetricsAddr != nil {
		cfg.MetricsAddr = *r.MetricsAddr
	}
	if r.PingIntervalMsec != nil {
		cfg.PingIntervalMsec = *r.PingIntervalMsec
	}
	return cfg
}

type RawSecurityConfig struct {
	TokenSecret     *string `yaml:"tokenSecret" json:"tokenSecret"`
	AdminCredential *string `yaml:"adminCredential" json:"adminCredential"`
	TLSCrtFile      *string `yaml:"tlsCrtFile" json:"tlsCrtFile"`
	TLSKeyFile      *string `yaml:"tlsKeyFile" json:"tlsKeyFile"`
}

func (r RawSecurityConfig) ToDomain() SecurityConfig {
	var cfg SecurityConfig
	if r.TokenSecret != nil {
		cfg.TokenSecret = *r.TokenSecret
	}
	cfg.AdminCredential = r.AdminCredential
	cfg.TLSCrtFile = r.TLSCrtFile
	cfg.TLSKeyFile = r.TLSKeyFile
	return cfg
}

type RawRelayConfig struct {
	URL             *string `yaml:"url" json:"url"`
	CallTimeoutMsec *int    `yaml:"callTimeoutMsec" json:"callTimeoutMsec"`
}

func (r RawRelayConfig) ToDomain() RelayConfig {
	var cfg RelayConfig
	if r.URL != nil {
		cfg.URL = *r.URL
	}
	if r.CallTimeoutMsec != nil {
		cfg.CallTimeoutMsec = *r.CallTimeoutMsec
	}
	return cfg
}

type RawRecorderConfig struct {
	URL              *string `yaml:"url" json:"url"`
	CallTimeoutMsec  *int    `yaml:"callTimeoutMsec" json:"callTimeoutMsec"`
	StartTimeoutMsec *int    `yaml:"startTimeoutMsec" json:"startTimeoutMsec"`
	StartAttempts    *int    `yaml:"startAttempts" json:"startAttempts"`
	PreRollMsec      *int    `yaml:"preRollMsec" json:"preRollMsec"`
	PostRollMsec     *int    `yaml:"postRollMsec" json:"postRollMsec"`
}

func (r RawRecorderConfig) ToDomain() RecorderConfig {
	var cfg RecorderConfig
	if r.URL != nil {
		cfg.URL = *r.URL
	}
	if r.CallTimeoutMsec != nil {
		cfg.CallTimeoutMsec = *r.CallTimeoutMsec
	}
	if r.StartTimeoutMsec != nil {
		cfg.StartTimeoutMsec = *r.StartTimeoutMsec
	}
	if r.StartAttempts != nil {
		cfg.StartAttempts = *r.StartAttempts
	}
	if r.PreRollMsec != nil {
		cfg.PreRollMsec = *r.PreRollMsec
	}
	if r.PostRollMsec != nil {
		cfg.PostRollMsec = *r.PostRollMsec
	}
	return cfg
}

type RawICEServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username" json:"username"`
	Credential string   `yaml:"credential" json:"credential"`
}

type RawWebRTCConfig struct {
	ICEServers *[]RawICEServer `yaml:"iceServers" json:"iceServers"`
}

func (r RawWebRTCConfig) ToDomain() WebRTCConfig {
	var cfg WebRTCConfig
	if r.ICEServers != nil {
		servers := make([]webrtc.ICEServer, 0, len(*r.ICEServers))
		for _, s := range *r.ICEServers {
			server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
			if s.Credential != "" {
				server.Credential = s.Credential
			}
			servers = append(servers, server)
		}
		cfg.ICEServers = servers
	}
	return cfg
}

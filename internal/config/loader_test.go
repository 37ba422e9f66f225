package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadAppConfigMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "server.yaml", "port: 9000\n")
	writeFile(t, dir, "security.yaml", "tokenSecret: s3cret\nadminCredential: adminpass\n")
	writeFile(t, dir, "recorder.json", `{"startAttempts": 2, "url": "ws://rec:4444/rpc"}`)
	writeFile(t, dir, "webrtc.yaml", "iceServers:\n  - urls: [\"turn:turn.example.com:3478\"]\n    username: u\n    credential: c\n")

	cfg, err := LoadAppConfig(dir)
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("server port = %d, want 9000", cfg.Server.Port)
	}
	// fields the files do not mention keep their defaults
	if cfg.Server.PingIntervalMsec != 30000 {
		t.Errorf("ping interval = %d, want the default", cfg.Server.PingIntervalMsec)
	}
	if cfg.Security.TokenSecret != "s3cret" {
		t.Errorf("token secret = %q", cfg.Security.TokenSecret)
	}
	if cfg.Security.AdminCredential == nil || *cfg.Security.AdminCredential != "adminpass" {
		t.Errorf("admin credential = %v", cfg.Security.AdminCredential)
	}
	if cfg.Recorder.StartAttempts != 2 {
		t.Errorf("start attempts = %d, want 2", cfg.Recorder.StartAttempts)
	}
	if cfg.Recorder.URL != "ws://rec:4444/rpc" {
		t.Errorf("recorder url = %q", cfg.Recorder.URL)
	}
	if cfg.Recorder.StartTimeoutMsec != 1000 {
		t.Errorf("start timeout = %d, want the default", cfg.Recorder.StartTimeoutMsec)
	}
	if len(cfg.WebRTC.ICEServers) != 1 || cfg.WebRTC.ICEServers[0].Username != "u" {
		t.Errorf("ice servers = %+v", cfg.WebRTC.ICEServers)
	}
}

func TestLoadAppConfigMissingDirUsesDefaults(t *testing.T) {
	cfg, err := LoadAppConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}
	def := DefaultAppConfig()
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, def.Server.Port)
	}
	if cfg.Recorder.StartAttempts != def.Recorder.StartAttempts {
		t.Errorf("start attempts = %d, want default %d", cfg.Recorder.StartAttempts, def.Recorder.StartAttempts)
	}
	if len(cfg.WebRTC.ICEServers) == 0 {
		t.Error("default ice servers missing")
	}
}

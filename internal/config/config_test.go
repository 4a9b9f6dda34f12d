package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
port: 9000
public_host: gateway.example.com
api_keys: [key-a, key-b]
elevenlabs_api_key: el-secret
twilio_account_sid: AC123
max_sessions: 5
max_call_duration: 30m
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	if err := applyFile(cfg, path, nil); err != nil {
		t.Fatalf("applyFile failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.PublicHost != "gateway.example.com" {
		t.Errorf("PublicHost = %q", cfg.PublicHost)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[0] != "key-a" {
		t.Errorf("APIKeys = %v", cfg.APIKeys)
	}
	if cfg.MaxSessions != 5 {
		t.Errorf("MaxSessions = %d, want 5", cfg.MaxSessions)
	}
	if cfg.MaxCallDuration != 30*time.Minute {
		t.Errorf("MaxCallDuration = %s, want 30m", cfg.MaxCallDuration)
	}
	// Untouched keys keep their defaults.
	if cfg.BindAddr != "0.0.0.0" {
		t.Errorf("BindAddr = %q, want default", cfg.BindAddr)
	}
	if cfg.AgentDialTimeout != 10*time.Second {
		t.Errorf("AgentDialTimeout = %s, want default", cfg.AgentDialTimeout)
	}
}

func TestFlagsWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	cfg.Port = 7777 // as if -port was given
	if err := applyFile(cfg, path, map[string]bool{"port": true}); err != nil {
		t.Fatalf("applyFile failed: %v", err)
	}
	if cfg.Port != 7777 {
		t.Errorf("Port = %d, flag value should win over file", cfg.Port)
	}
}

func TestApplyFileRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("max_call_duration: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := applyFile(defaults(), path, nil); err == nil {
		t.Fatal("expected an error for an unparseable duration")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "8443")
	t.Setenv("API_KEYS", "one, two")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550001111")
	t.Setenv("GRACE_PERIOD", "90s")

	cfg := defaults()
	applyEnv(cfg)

	if cfg.Port != 8443 {
		t.Errorf("Port = %d, want 8443", cfg.Port)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "two" {
		t.Errorf("APIKeys = %v", cfg.APIKeys)
	}
	if cfg.TwilioFromNumber != "+15550001111" {
		t.Errorf("TwilioFromNumber = %q", cfg.TwilioFromNumber)
	}
	if cfg.GracePeriod != 90*time.Second {
		t.Errorf("GracePeriod = %s, want 90s", cfg.GracePeriod)
	}
}

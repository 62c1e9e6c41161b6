package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileParsesDevices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[global]
DATABASE_URL = "postgres://u:p@host/db"

[api]
host = "0.0.0.0"
port = 8080
cors_origins = ["*"]

[[observer.checkweighers]]
cw_id = "cw-01"
name = "Line 1"
ip_address = "192.168.1.50"
port = 502
enabled = true
poll_interval = 0.1
timeout = 5
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load from file: %v", err)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(cfg.Devices))
	}
	d := cfg.Devices[0]
	if d.CWID != "cw-01" || d.IPAddress != "192.168.1.50" || d.Port != 502 {
		t.Errorf("device = %+v", d)
	}
	if d.PollInterval.Seconds() != 0.1 {
		t.Errorf("poll interval = %v, want 0.1s", d.PollInterval)
	}
	if d.Timeout.Seconds() != 5 {
		t.Errorf("timeout = %v, want 5s", d.Timeout)
	}
}

func TestLoadFromFileAppliesDeviceDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[global]
DATABASE_URL = "postgres://u:p@host/db"

[[observer.checkweighers]]
cw_id = "cw-02"
name = "Line 2"
ip_address = "192.168.1.51"
port = 502
enabled = true
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load from file: %v", err)
	}
	d := cfg.Devices[0]
	if d.PollInterval != defaultPollInterval {
		t.Errorf("poll interval = %v, want default %v", d.PollInterval, defaultPollInterval)
	}
	if d.Timeout != defaultReadTimeout {
		t.Errorf("timeout = %v, want default %v", d.Timeout, defaultReadTimeout)
	}
}

func TestMergeConfigsEnvOverridesWinForNonDefaults(t *testing.T) {
	base := &Config{
		Global: GlobalConfig{DatabaseURL: "postgres://file"},
		API:    APIConfig{Host: "0.0.0.0", Port: 8080, CORSOrigins: []string{"*"}},
	}
	override := &Config{
		Global: GlobalConfig{DatabaseURL: "postgres://env"},
		API:    APIConfig{Host: "10.0.0.1", Port: 9000, CORSOrigins: []string{"https://env.example"}},
	}

	merged := mergeConfigs(base, override)
	if merged.Global.DatabaseURL != "postgres://env" {
		t.Errorf("DatabaseURL = %q, want env override", merged.Global.DatabaseURL)
	}
	if merged.API.Host != "10.0.0.1" {
		t.Errorf("Host = %q, want env override", merged.API.Host)
	}
	if merged.API.Port != 9000 {
		t.Errorf("Port = %d, want env override", merged.API.Port)
	}
}

func TestWriteExampleConfigProducesLoadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.toml")

	if err := WriteExampleConfig(path); err != nil {
		t.Fatalf("write example: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.Global.DatabaseURL == "" {
		t.Error("expected example config to include a DATABASE_URL")
	}
	if len(cfg.Devices) != 1 {
		t.Errorf("devices = %d, want 1", len(cfg.Devices))
	}
}

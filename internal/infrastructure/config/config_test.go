package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
controller:
  host: "192.168.1.2"
  port: 8043
  username: "admin"
  password: "secret"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Controller.Host != "192.168.1.2" {
		t.Errorf("Controller.Host = %q, want %q", cfg.Controller.Host, "192.168.1.2")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive a partial file
	if cfg.Poll.Interval != 300 {
		t.Errorf("Poll.Interval = %d, want default 300", cfg.Poll.Interval)
	}
	if cfg.Poll.RefreshDebounce != 60 {
		t.Errorf("Poll.RefreshDebounce = %d, want default 60", cfg.Poll.RefreshDebounce)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	// Controller credentials are a fatal startup condition
	content := `
controller:
  host: "192.168.1.2"
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for missing credentials, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
controller:
  host: "192.168.1.2"
  username: "admin"
  password: "from-file"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("OMADA_BRIDGE_CONTROLLER_PASSWORD", "from-env")
	t.Setenv("OMADA_BRIDGE_MQTT_HOST", "broker.local")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Controller.Password != "from-env" {
		t.Errorf("Controller.Password = %q, want env override %q", cfg.Controller.Password, "from-env")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Controller.Host = "192.168.1.2"
		cfg.Controller.Username = "admin"
		cfg.Controller.Password = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Controller.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing username",
			mutate:  func(c *Config) { c.Controller.Username = "" },
			wantErr: true,
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Controller.Password = "" },
			wantErr: true,
		},
		{
			name:    "invalid controller port",
			mutate:  func(c *Config) { c.Controller.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Poll.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "api disabled skips port check",
			mutate:  func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetPollInterval().Seconds(); got != 300 {
		t.Errorf("GetPollInterval() = %vs, want 300s", got)
	}
	if got := cfg.GetTokenRefreshInterval().Hours(); got != 24 {
		t.Errorf("GetTokenRefreshInterval() = %vh, want 24h", got)
	}
	if got := cfg.GetRefreshDebounce().Seconds(); got != 60 {
		t.Errorf("GetRefreshDebounce() = %vs, want 60s", got)
	}
	if got := cfg.GetReconcileDelay().Seconds(); got != 5 {
		t.Errorf("GetReconcileDelay() = %vs, want 5s", got)
	}
}

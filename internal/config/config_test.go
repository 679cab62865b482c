package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkmesh/routecore/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.GRPC.Addr != ":7246" {
		t.Errorf("GRPC.Addr = %q, want %q", cfg.GRPC.Addr, ":7246")
	}

	if cfg.Metrics.Addr != ":9246" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9246")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Route.RefreshInterval != 3600*time.Second {
		t.Errorf("Route.RefreshInterval = %v, want %v", cfg.Route.RefreshInterval, 3600*time.Second)
	}

	if cfg.Route.Expiry != 3660*time.Second {
		t.Errorf("Route.Expiry = %v, want %v", cfg.Route.Expiry, 3660*time.Second)
	}

	if cfg.Route.RPCDeadline != 3*time.Second {
		t.Errorf("Route.RPCDeadline = %v, want %v", cfg.Route.RPCDeadline, 3*time.Second)
	}

	if cfg.Route.ClientBackoff != 50*time.Millisecond {
		t.Errorf("Route.ClientBackoff = %v, want %v", cfg.Route.ClientBackoff, 50*time.Millisecond)
	}

	if cfg.Route.IdleWake != 1*time.Second {
		t.Errorf("Route.IdleWake = %v, want %v", cfg.Route.IdleWake, 1*time.Second)
	}

	if cfg.Route.ExpirySweep != 60*time.Second {
		t.Errorf("Route.ExpirySweep = %v, want %v", cfg.Route.ExpirySweep, 60*time.Second)
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
grpc:
  addr: ":60000"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
route:
  refresh_interval: "10s"
  expiry: "30s"
  policy: "least_hop"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.GRPC.Addr != ":60000" {
		t.Errorf("GRPC.Addr = %q, want %q", cfg.GRPC.Addr, ":60000")
	}
	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Route.RefreshInterval != 10*time.Second {
		t.Errorf("Route.RefreshInterval = %v, want %v", cfg.Route.RefreshInterval, 10*time.Second)
	}
	if cfg.Route.Expiry != 30*time.Second {
		t.Errorf("Route.Expiry = %v, want %v", cfg.Route.Expiry, 30*time.Second)
	}
	if cfg.Route.Policy != "least_hop" {
		t.Errorf("Route.Policy = %q, want %q", cfg.Route.Policy, "least_hop")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	yamlContent := `
grpc:
  addr: ":55555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.GRPC.Addr != ":55555" {
		t.Errorf("GRPC.Addr = %q, want %q", cfg.GRPC.Addr, ":55555")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Metrics.Addr != ":9246" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9246")
	}
	if cfg.Route.Expiry != 3660*time.Second {
		t.Errorf("Route.Expiry = %v, want default %v", cfg.Route.Expiry, 3660*time.Second)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name:    "empty grpc addr",
			modify:  func(cfg *config.Config) { cfg.GRPC.Addr = "" },
			wantErr: config.ErrEmptyGRPCAddr,
		},
		{
			name:    "expiry not greater than refresh",
			modify:  func(cfg *config.Config) { cfg.Route.Expiry = cfg.Route.RefreshInterval },
			wantErr: config.ErrExpiryTooSmall,
		},
		{
			name:    "zero rpc deadline",
			modify:  func(cfg *config.Config) { cfg.Route.RPCDeadline = 0 },
			wantErr: config.ErrNonPositiveTunable,
		},
		{
			name:    "invalid policy",
			modify:  func(cfg *config.Config) { cfg.Route.Policy = "bogus" },
			wantErr: config.ErrInvalidPolicy,
		},
		{
			name:    "invalid nat type",
			modify:  func(cfg *config.Config) { cfg.Identity.NatType = "bogus" },
			wantErr: config.ErrInvalidNatType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadWithStaticPeers(t *testing.T) {
	t.Parallel()

	yamlContent := `
grpc:
  addr: ":7246"
peers:
  - peer_id: 2
    base_url: "http://10.0.0.2:7246"
  - peer_id: 3
    base_url: "http://10.0.0.3:7246"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Peers) != 2 {
		t.Fatalf("Peers count = %d, want 2", len(cfg.Peers))
	}
	if cfg.Peers[0].PeerID != 2 || cfg.Peers[0].BaseURL != "http://10.0.0.2:7246" {
		t.Errorf("Peers[0] = %+v, want peer_id=2 base_url=http://10.0.0.2:7246", cfg.Peers[0])
	}
}

func TestValidateStaticPeerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "missing base url",
			modify: func(cfg *config.Config) {
				cfg.Peers = []config.StaticPeer{{PeerID: 2}}
			},
			wantErr: config.ErrInvalidStaticPeer,
		},
		{
			name: "duplicate peer id",
			modify: func(cfg *config.Config) {
				cfg.Peers = []config.StaticPeer{
					{PeerID: 2, BaseURL: "http://a"},
					{PeerID: 2, BaseURL: "http://b"},
				}
			},
			wantErr: config.ErrDuplicateStaticPeer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := `
grpc:
  addr: ":7246"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("ROUTECORE_GRPC_ADDR", ":60000")
	t.Setenv("ROUTECORE_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.GRPC.Addr != ":60000" {
		t.Errorf("GRPC.Addr = %q, want %q (from env)", cfg.GRPC.Addr, ":60000")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "routecore.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}

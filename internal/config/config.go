// Package config manages routecore daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables, merged over in-code
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete routecore configuration.
type Config struct {
	GRPC     GRPCConfig      `koanf:"grpc"`
	Metrics  MetricsConfig   `koanf:"metrics"`
	Log      LogConfig       `koanf:"log"`
	Route    RouteConfig     `koanf:"route"`
	Identity IdentityConfig  `koanf:"identity"`
	Peers    []StaticPeer    `koanf:"peers"`
}

// GRPCConfig holds the ConnectRPC server configuration.
type GRPCConfig struct {
	// Addr is the control-plane listen address (e.g., ":7246", 7 for the
	// service id of §6 and 246 as a throwaway port suffix).
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RouteConfig holds the routing-core tunables named in spec §6. Keys absent
// from the YAML file and the environment keep DefaultConfig's values.
type RouteConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	Expiry          time.Duration `koanf:"expiry"`
	RPCDeadline     time.Duration `koanf:"rpc_deadline"`
	ClientBackoff   time.Duration `koanf:"client_backoff"`
	IdleWake        time.Duration `koanf:"idle_wake"`
	ExpirySweep     time.Duration `koanf:"expiry_sweep"`
	// Policy names a routing table, "least_hop" or "least_cost". Validate
	// checks it, but routed does not read it: the /debug/next-hop endpoint
	// uses least-hop whenever the caller names no policy.
	Policy string `koanf:"policy"`
}

// IdentityConfig is the local peer's own identity (§6 "Global context"),
// absent a real STUN probe/global-configuration collaborator in this
// deployment.
type IdentityConfig struct {
	PeerID     uint32   `koanf:"peer_id"`
	Cost       uint8    `koanf:"cost"`
	IPv4Addr   string   `koanf:"ipv4_addr"`
	ProxyCIDRs []string `koanf:"proxy_cidrs"`
	Hostname   string   `koanf:"hostname"`
	// NatType is one of: unknown, open_internet, no_pat, full_cone,
	// restricted, port_restricted, symmetric, symmetric_udp_firewall.
	NatType string `koanf:"nat_type"`
}

// StaticPeer is a declarative neighbor entry: in the absence of a dynamic
// peer-connectivity collaborator, routed's PeerLister is seeded from this
// list (§6 "list_peers").
type StaticPeer struct {
	// PeerID is the neighbor's PeerId.
	PeerID uint32 `koanf:"peer_id"`
	// BaseURL is the neighbor's control-plane endpoint, e.g. "http://10.0.0.2:7246".
	BaseURL string `koanf:"base_url"`
}

// PeerIDAddr parses IPv4Addr, if set.
func (ic IdentityConfig) PeerIDAddr() (netip.Addr, error) {
	if ic.IPv4Addr == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(ic.IPv4Addr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse identity.ipv4_addr %q: %w", ic.IPv4Addr, err)
	}
	return addr, nil
}

// ProxyPrefixes parses every entry of ProxyCIDRs.
func (ic IdentityConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(ic.ProxyCIDRs))
	for _, c := range ic.ProxyCIDRs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("parse identity.proxy_cidrs %q: %w", c, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. Route
// tunables follow spec §6 exactly.
func DefaultConfig() *Config {
	return &Config{
		GRPC: GRPCConfig{
			Addr: ":7246",
		},
		Metrics: MetricsConfig{
			Addr: ":9246",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Route: RouteConfig{
			RefreshInterval: 3600 * time.Second,
			Expiry:          3660 * time.Second,
			RPCDeadline:     3 * time.Second,
			ClientBackoff:   50 * time.Millisecond,
			IdleWake:        1 * time.Second,
			ExpirySweep:     60 * time.Second,
			Policy:          "least_cost",
		},
		Identity: IdentityConfig{
			NatType: "unknown",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for routecore configuration.
// Variables are named ROUTECORE_<section>_<key>, e.g. ROUTECORE_GRPC_ADDR.
const envPrefix = "ROUTECORE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (ROUTECORE_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms ROUTECORE_GRPC_ADDR -> grpc.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"grpc.addr":               defaults.GRPC.Addr,
		"metrics.addr":            defaults.Metrics.Addr,
		"metrics.path":            defaults.Metrics.Path,
		"log.level":               defaults.Log.Level,
		"log.format":              defaults.Log.Format,
		"route.refresh_interval":  defaults.Route.RefreshInterval.String(),
		"route.expiry":            defaults.Route.Expiry.String(),
		"route.rpc_deadline":      defaults.Route.RPCDeadline.String(),
		"route.client_backoff":    defaults.Route.ClientBackoff.String(),
		"route.idle_wake":         defaults.Route.IdleWake.String(),
		"route.expiry_sweep":      defaults.Route.ExpirySweep.String(),
		"route.policy":            defaults.Route.Policy,
		"identity.nat_type":       defaults.Identity.NatType,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	ErrEmptyGRPCAddr        = errors.New("grpc.addr must not be empty")
	ErrExpiryTooSmall       = errors.New("route.expiry must exceed route.refresh_interval")
	ErrNonPositiveTunable   = errors.New("route tunables must all be positive")
	ErrInvalidPolicy        = errors.New("route.policy must be least_hop or least_cost")
	ErrDuplicateStaticPeer  = errors.New("duplicate peer_id in static peers list")
	ErrInvalidStaticPeer    = errors.New("static peer must have a nonzero peer_id and a base_url")
	ErrInvalidNatType       = errors.New("identity.nat_type is not recognized")
)

// ValidPolicies lists the recognized route.policy strings.
var ValidPolicies = map[string]bool{"least_hop": true, "least_cost": true}

// ValidNatTypes lists the recognized identity.nat_type strings.
var ValidNatTypes = map[string]bool{
	"unknown": true, "open_internet": true, "no_pat": true, "full_cone": true,
	"restricted": true, "port_restricted": true, "symmetric": true,
	"symmetric_udp_firewall": true,
}

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.GRPC.Addr == "" {
		return ErrEmptyGRPCAddr
	}
	if cfg.Route.Expiry <= cfg.Route.RefreshInterval {
		return ErrExpiryTooSmall
	}
	if cfg.Route.RPCDeadline <= 0 || cfg.Route.ClientBackoff <= 0 || cfg.Route.IdleWake <= 0 || cfg.Route.ExpirySweep <= 0 {
		return ErrNonPositiveTunable
	}
	if !ValidPolicies[cfg.Route.Policy] {
		return ErrInvalidPolicy
	}
	if !ValidNatTypes[cfg.Identity.NatType] {
		return ErrInvalidNatType
	}
	if _, err := cfg.Identity.PeerIDAddr(); err != nil {
		return err
	}
	if _, err := cfg.Identity.ProxyPrefixes(); err != nil {
		return err
	}
	return validateStaticPeers(cfg.Peers)
}

func validateStaticPeers(peers []StaticPeer) error {
	seen := make(map[uint32]struct{}, len(peers))
	for i, p := range peers {
		if p.PeerID == 0 || p.BaseURL == "" {
			return fmt.Errorf("peers[%d]: %w", i, ErrInvalidStaticPeer)
		}
		if _, dup := seen[p.PeerID]; dup {
			return fmt.Errorf("peers[%d] peer_id %d: %w", i, p.PeerID, ErrDuplicateStaticPeer)
		}
		seen[p.PeerID] = struct{}{}
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

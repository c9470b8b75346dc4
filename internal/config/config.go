// Package config loads the relay's environment-variable configuration and
// its cryptographic keychain, failing fast on anything required but
// missing, exactly as the daemon's startup sequence always has.
package config

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/klauspost/cpuid/v2"
	"github.com/rs/xid"
	"go4.org/netipx"

	"github.com/networknext/relay/internal/pcrypto"
)

// Keychain holds the relay's fixed cryptographic identity: its own box
// keypair (for opening route/continue tokens) and the backend's signing
// public key (for verifying stats-report responses).
type Keychain struct {
	RelayPublicKey    [pcrypto.PublicKeySize]byte
	RelayPrivateKey   [pcrypto.PrivateKeySize]byte
	BackendPublicKey  [pcrypto.PublicKeySize]byte
	RouterPublicKey   [32]byte // ed25519 public key, verifies backend responses
}

// Config is the relay's full startup configuration.
type Config struct {
	RelayAddress    *net.UDPAddr
	BackendHostname string

	SendBufferSize int
	RecvBufferSize int
	ProcessorCount int
	LogFile        string
	AdminAddress   string

	InstanceID string

	Keychain Keychain
}

const (
	defaultBufferSize  = 64 * 1024
	defaultAdminAddress = ":9090"
)

// Load reads the relay's configuration from the process environment,
// returning an error naming every missing required variable rather than
// stopping at the first.
func Load() (*Config, error) {
	required := map[string]string{}
	var missing []string
	for _, name := range []string{
		"RELAY_ADDRESS",
		"RELAY_PRIVATE_KEY",
		"RELAY_PUBLIC_KEY",
		"RELAY_ROUTER_PUBLIC_KEY",
		"RELAY_BACKEND_PUBLIC_KEY",
		"RELAY_BACKEND_HOSTNAME",
	} {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			missing = append(missing, name)
			continue
		}
		required[name] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %v", missing)
	}

	addr, err := net.ResolveUDPAddr("udp", required["RELAY_ADDRESS"])
	if err != nil {
		return nil, fmt.Errorf("config: RELAY_ADDRESS: %w", err)
	}
	if _, ok := netipx.FromStdIP(addr.IP); !ok {
		return nil, fmt.Errorf("config: RELAY_ADDRESS: unparseable IP %s", addr.IP)
	}

	var keychain Keychain
	if err := decodeKey(required["RELAY_PUBLIC_KEY"], keychain.RelayPublicKey[:]); err != nil {
		return nil, fmt.Errorf("config: RELAY_PUBLIC_KEY: %w", err)
	}
	if err := decodeKey(required["RELAY_PRIVATE_KEY"], keychain.RelayPrivateKey[:]); err != nil {
		return nil, fmt.Errorf("config: RELAY_PRIVATE_KEY: %w", err)
	}
	if err := decodeKey(required["RELAY_ROUTER_PUBLIC_KEY"], keychain.RouterPublicKey[:]); err != nil {
		return nil, fmt.Errorf("config: RELAY_ROUTER_PUBLIC_KEY: %w", err)
	}
	if err := decodeKey(required["RELAY_BACKEND_PUBLIC_KEY"], keychain.BackendPublicKey[:]); err != nil {
		return nil, fmt.Errorf("config: RELAY_BACKEND_PUBLIC_KEY: %w", err)
	}

	cfg := &Config{
		RelayAddress:    addr,
		BackendHostname: required["RELAY_BACKEND_HOSTNAME"],
		SendBufferSize:  intEnvOrDefault("RELAY_SEND_BUFFER_SIZE", defaultBufferSize),
		RecvBufferSize:  intEnvOrDefault("RELAY_RECV_BUFFER_SIZE", defaultBufferSize),
		ProcessorCount:  intEnvOrDefault("RELAY_PROCESSOR_COUNT", cpuid.CPU.LogicalCores),
		LogFile:         os.Getenv("RELAY_LOG_FILE"),
		AdminAddress:    stringEnvOrDefault("RELAY_ADMIN_ADDRESS", defaultAdminAddress),
		InstanceID:      xid.New().String(),
		Keychain:        keychain,
	}

	if cfg.ProcessorCount <= 0 {
		cfg.ProcessorCount = 1
	}

	return cfg, nil
}

func stringEnvOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func intEnvOrDefault(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// decodeKey base64-decodes src into dst, requiring an exact length match.
func decodeKey(src string, dst []byte) error {
	decoded, err := base64.StdEncoding.DecodeString(src)
	if err != nil {
		return fmt.Errorf("invalid base64: %w", err)
	}
	if len(decoded) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(decoded))
	}
	copy(dst, decoded)
	return nil
}

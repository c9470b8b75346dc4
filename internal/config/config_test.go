package config

import (
	"encoding/base64"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func key32() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RELAY_ADDRESS", "127.0.0.1:40000")
	t.Setenv("RELAY_PRIVATE_KEY", key32())
	t.Setenv("RELAY_PUBLIC_KEY", key32())
	t.Setenv("RELAY_ROUTER_PUBLIC_KEY", key32())
	t.Setenv("RELAY_BACKEND_PUBLIC_KEY", key32())
	t.Setenv("RELAY_BACKEND_HOSTNAME", "backend.networknext.com")
}

func TestLoadSucceedsWithRequiredVars(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "backend.networknext.com", cfg.BackendHostname)
	require.Equal(t, 64*1024, cfg.SendBufferSize)
	require.NotEmpty(t, cfg.InstanceID)
}

func TestLoadFailsFastListingAllMissingVars(t *testing.T) {
	for _, name := range []string{
		"RELAY_ADDRESS", "RELAY_PRIVATE_KEY", "RELAY_PUBLIC_KEY",
		"RELAY_ROUTER_PUBLIC_KEY", "RELAY_BACKEND_PUBLIC_KEY", "RELAY_BACKEND_HOSTNAME",
	} {
		os.Unsetenv(name)
	}

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsWrongKeyLength(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RELAY_PUBLIC_KEY", base64.StdEncoding.EncodeToString([]byte("too short")))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadHonorsOptionalOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RELAY_SEND_BUFFER_SIZE", "131072")
	t.Setenv("RELAY_PROCESSOR_COUNT", "4")
	t.Setenv("RELAY_ADMIN_ADDRESS", "127.0.0.1:9999")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 131072, cfg.SendBufferSize)
	require.Equal(t, 4, cfg.ProcessorCount)
	require.Equal(t, "127.0.0.1:9999", cfg.AdminAddress)
}

func TestLoadDefaultsAdminAddress(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.AdminAddress)
}

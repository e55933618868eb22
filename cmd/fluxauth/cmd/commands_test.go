package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/layer-3/fluxauth/adapters/health"
	"github.com/layer-3/fluxauth/adapters/verifier"
	"github.com/layer-3/fluxauth/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignCommand(t *testing.T) {
	const message = "1714564800000abcdefghijklmnopqrstuvwxyz0123456789"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"sign", "--key", "0x0000000000000000000000000000000000000000000000000000000000000001", "-m", message})
	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	address := strings.TrimSpace(strings.TrimPrefix(lines[0], "address:"))
	sig := strings.TrimSpace(strings.TrimPrefix(lines[1], "signature:"))
	assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", address)

	ok, err := verifier.NewMessageVerifier().Verify(message, address, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPhraseCommandRejectsMemoryBackend(t *testing.T) {
	t.Setenv("FLUXAUTH_STORE_BACKEND", "memory")
	rootCmd.SetArgs([]string{"phrase"})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "persistent store")
}

func TestPhraseCommandHealthGates(t *testing.T) {
	t.Setenv("FLUXAUTH_STORE_BACKEND", "bolt")
	t.Setenv("FLUXAUTH_BOLT_PATH", filepath.Join(t.TempDir(), "fluxauth.db"))
	t.Setenv("FLUXAUTH_HEALTH_ENABLED", "true")
	t.Setenv("FLUXAUTH_DOCKER_SOCKET", filepath.Join(t.TempDir(), "missing.sock"))
	t.Setenv("FLUXAUTH_PROBE_TIMEOUT", "1s")

	var out bytes.Buffer
	rootCmd.SetOut(&out)

	rootCmd.SetArgs([]string{"phrase", "--emergency=false"})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "Container runtime is not available")
	assert.Empty(t, out.String())

	rootCmd.SetArgs([]string{"phrase", "--emergency"})
	require.NoError(t, rootCmd.Execute())
	assert.Regexp(t, `^[0-9]{13}[0-9a-z]+\n$`, out.String())
}

func TestNewGates(t *testing.T) {
	assert.Nil(t, newGates(config.HealthConfig{}))

	gates := newGates(config.HealthConfig{Enabled: true, DistressURL: "http://127.0.0.1:16127/dos"})
	require.NotNil(t, gates)
	assert.IsType(t, &health.HTTPDistressReporter{}, gates.Distress)

	gates = newGates(config.HealthConfig{Enabled: true})
	assert.IsType(t, health.CalmReporter{}, gates.Distress)
}

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicenote/transcriber"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "API_KEY", "VOICENOTE_MODEL", "VOICENOTE_TEMPERATURE", "VOICENOTE_SAVE_DIR", "VOICENOTE_ADDR"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, transcriber.DefaultModel, cfg.Model)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-6)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.False(t, cfg.HasCredential())
	assert.Empty(t, cfg.EnvFile)
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "legacy")
	t.Setenv("VOICENOTE_MODEL", "gemini-2.5-pro")
	t.Setenv("VOICENOTE_TEMPERATURE", "1.5")
	t.Setenv("VOICENOTE_ADDR", "0.0.0.0:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.InDelta(t, 1.5, cfg.Temperature, 1e-6)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	t.Setenv("GEMINI_API_KEY", "primary")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.APIKey, "GEMINI_API_KEY takes precedence over API_KEY")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("VOICENOTE_SAVE_DIR")
	require.NoError(t, os.WriteFile(".env.local", []byte("GEMINI_API_KEY=from-file\nVOICENOTE_SAVE_DIR=out\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("VOICENOTE_SAVE_DIR")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".env.local", cfg.EnvFile)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "out", cfg.SaveDir)
}

func TestLoadRejectsBadTemperature(t *testing.T) {
	for _, v := range []string{"hot", "-0.1", "2.5"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("VOICENOTE_TEMPERATURE", v)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Model = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxUploadSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Addr = "not an address"
	assert.Error(t, cfg.Validate())
}

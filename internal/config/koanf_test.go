// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKoanfConfigLoadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"baseUrl: https://api.example.com\n"+
			"groundId: ground-1\n"+
			"overlay:\n  clientLogoPath: /assets/client.png\n"), 0o640))

	kc, err := NewKoanfConfig(WithYAMLFile(path))
	require.NoError(t, err)

	cfg, err := kc.Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com", cfg.BaseURL)
	require.Equal(t, "ground-1", cfg.GroundID)
	require.Equal(t, "/assets/client.png", cfg.Overlay.ClientLogoPath)
}

func TestKoanfConfigEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"baseUrl: https://api.example.com\n"+
			"groundId: ground-1\n"+
			"overlay:\n  clientLogoPath: /assets/client.png\n"), 0o640))

	t.Setenv("STREAMSUP_GROUNDID", "ground-2")

	kc, err := NewKoanfConfig(WithYAMLFile(path))
	require.NoError(t, err)

	cfg, err := kc.Load()
	require.NoError(t, err)
	require.Equal(t, "ground-2", cfg.GroundID)
}

func TestKoanfConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"baseUrl: https://api.example.com\n"+
			"groundId: ground-1\n"+
			"overlay:\n  clientLogoPath: /assets/client.png\n"), 0o640))

	kc, err := NewKoanfConfig(WithYAMLFile(path))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(
		"baseUrl: https://api.example.com\n"+
			"groundId: ground-3\n"+
			"overlay:\n  clientLogoPath: /assets/client.png\n"), 0o640))
	require.NoError(t, kc.Reload())

	cfg, err := kc.Load()
	require.NoError(t, err)
	require.Equal(t, "ground-3", cfg.GroundID)
}

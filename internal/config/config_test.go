package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "civ.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
resources_file: /etc/civ/resources.json
test_filter: test_rhel
parallel: true
test_suites:
  - suites/generic
  - suites/aws
tags:
  team: cloud-experience
`)

	cfg := Default()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "/etc/civ/resources.json", cfg.ResourcesFile)
	assert.Equal(t, "test_rhel", cfg.TestFilter)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, []string{"suites/generic", "suites/aws"}, cfg.TestSuites)
	assert.Equal(t, map[string]string{"team": "cloud-experience"}, cfg.Tags)
	assert.Equal(t, path, cfg.ConfigFile)

	// Untouched keys keep their defaults.
	assert.Equal(t, "/tmp/instances.json", cfg.InstancesJSON)
	assert.Equal(t, "/tmp/ssh_key", cfg.SSHIdentityFile)
}

func TestLoadErrors(t *testing.T) {
	cfg := Default()
	require.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), cfg))

	bad := writeConfig(t, "test_suites: {not: a list}")
	require.Error(t, Load(bad, cfg))
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.ResourcesFile = "/etc/civ/resources.json"
	valid.TestSuites = []string{"suites/generic"}
	require.NoError(t, valid.Validate())

	t.Run("missing resources file", func(t *testing.T) {
		cfg := *valid
		cfg.ResourcesFile = ""
		require.Error(t, cfg.Validate())
	})
	t.Run("missing test suites", func(t *testing.T) {
		cfg := *valid
		cfg.TestSuites = nil
		require.Error(t, cfg.Validate())
	})
	t.Run("missing ssh paths", func(t *testing.T) {
		cfg := *valid
		cfg.SSHConfigFile = ""
		require.Error(t, cfg.Validate())
	})
	t.Run("missing instances json", func(t *testing.T) {
		cfg := *valid
		cfg.InstancesJSON = ""
		require.Error(t, cfg.Validate())
	})
}

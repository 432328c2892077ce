package opentofu

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResources = `{
  "provider": "aws",
  "region": "us-east-1",
  "instances": [
    {
      "name": "rhel-9-x86_64",
      "image": "ami-0123456789abcdef0",
      "instance_type": "t3.medium",
      "username": "ec2-user"
    }
  ]
}`

func newTestConfigurator(t *testing.T, resources string) *Configurator {
	t.Helper()
	dir := t.TempDir()

	resourcesPath := filepath.Join(dir, "resources.json")
	require.NoError(t, os.WriteFile(resourcesPath, []byte(resources), 0o644))

	pubKeyPath := filepath.Join(dir, "ssh_key.pub")
	require.NoError(t, os.WriteFile(pubKeyPath, []byte("ssh-ed25519 AAAA test\n"), 0o644))

	cfg := config.Default()
	cfg.ResourcesFile = resourcesPath
	cfg.Tags = map[string]string{"team": "cloud-experience"}

	c := NewConfigurator(pubKeyPath, resourcesPath, cfg)
	c.Workspace = filepath.Join(dir, "workspace")
	return c
}

func TestCloudFromResources(t *testing.T) {
	c := newTestConfigurator(t, testResources)

	p, err := c.CloudFromResources()
	require.NoError(t, err)
	assert.Equal(t, cloud.AWS, p)
	assert.Equal(t, cloud.AWS, c.Cloud())
}

func TestCloudFromResourcesUnknownProvider(t *testing.T) {
	c := newTestConfigurator(t, `{"provider": "openstack", "instances": []}`)

	_, err := c.CloudFromResources()
	require.ErrorIs(t, err, cloud.ErrUnknownProvider)
}

func TestInitResources(t *testing.T) {
	c := newTestConfigurator(t, testResources)
	_, err := c.CloudFromResources()
	require.NoError(t, err)

	require.NoError(t, c.InitResources())

	assert.Equal(t, "us-east-1", c.vars["region"])
	assert.Equal(t, "ssh-ed25519 AAAA test", c.vars["ssh_public_key"], "key material is trimmed")

	tags, ok := c.vars["tags"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "cloud-experience", tags["team"])
	assert.NotEmpty(t, tags["civ-run-id"])

	instances, ok := c.vars["instances"].([]InstanceSpec)
	require.True(t, ok)
	require.Len(t, instances, 1)
	assert.Equal(t, "rhel-9-x86_64", instances[0].Name)
}

func TestInitResourcesNoInstances(t *testing.T) {
	c := newTestConfigurator(t, `{"provider": "aws", "instances": []}`)
	_, err := c.CloudFromResources()
	require.NoError(t, err)

	require.Error(t, c.InitResources())
}

func TestConfigureMaterializesWorkspace(t *testing.T) {
	c := newTestConfigurator(t, testResources)
	_, err := c.CloudFromResources()
	require.NoError(t, err)
	require.NoError(t, c.InitResources())

	require.NoError(t, c.Configure())

	// The builtin template for the discovered cloud is in place.
	tf, err := os.ReadFile(filepath.Join(c.Workspace, "main.tf"))
	require.NoError(t, err)
	assert.Contains(t, string(tf), `source = "hashicorp/aws"`)

	// The variables file carries the instance definitions.
	vdata, err := os.ReadFile(filepath.Join(c.Workspace, varsFileName))
	require.NoError(t, err)
	var vars map[string]any
	require.NoError(t, json.Unmarshal(vdata, &vars))
	assert.Equal(t, "us-east-1", vars["region"])
	assert.NotEmpty(t, vars["instances"])
}

func TestConfigureRequiresDiscovery(t *testing.T) {
	c := newTestConfigurator(t, testResources)
	require.Error(t, c.Configure(), "configure before provider discovery must fail")
}

func TestPrintConfiguration(t *testing.T) {
	c := newTestConfigurator(t, testResources)
	_, err := c.CloudFromResources()
	require.NoError(t, err)

	var buf bytes.Buffer
	c.PrintConfiguration(&buf)

	assert.Contains(t, buf.String(), "cloud:")
	assert.Contains(t, buf.String(), "aws")
	assert.Contains(t, buf.String(), c.ResourcesPath)
}

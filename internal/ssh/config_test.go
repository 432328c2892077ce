package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteInstancesConfig(t *testing.T) {
	inv := cloud.Inventory{
		"instance-2": {PublicDNS: "ec2-2.example.com", Username: "fedora"},
		"instance-1": {PublicDNS: "ec2-1.example.com", Username: "ec2-user"},
	}
	path := filepath.Join(t.TempDir(), "ssh_config")

	require.NoError(t, WriteInstancesConfig(inv, path, "/tmp/ssh_key"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	want := strings.Join([]string{
		"Host ec2-1.example.com",
		"    HostName ec2-1.example.com",
		"    User ec2-user",
		"    IdentityFile /tmp/ssh_key",
		"    StrictHostKeyChecking no",
		"    UserKnownHostsFile /dev/null",
		"",
		"Host ec2-2.example.com",
		"    HostName ec2-2.example.com",
		"    User fedora",
		"    IdentityFile /tmp/ssh_key",
		"    StrictHostKeyChecking no",
		"    UserKnownHostsFile /dev/null",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

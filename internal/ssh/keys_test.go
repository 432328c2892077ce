package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestWriteKeyPair(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "ssh_key")
	pub := filepath.Join(dir, "ssh_key.pub")

	require.NoError(t, WriteKeyPair(identity, pub))

	t.Run("identity file is a parseable OpenSSH key", func(t *testing.T) {
		info, err := os.Stat(identity)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		signer, err := LoadSigner(identity)
		require.NoError(t, err)
		assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
	})

	t.Run("public key file is authorized_keys format", func(t *testing.T) {
		data, err := os.ReadFile(pub)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "ssh-ed25519 "))
		assert.True(t, strings.HasSuffix(string(data), "\n"))

		parsed, _, _, _, err := ssh.ParseAuthorizedKey(data)
		require.NoError(t, err)

		// Both halves belong to the same pair.
		signer, err := LoadSigner(identity)
		require.NoError(t, err)
		assert.Equal(t, signer.PublicKey().Marshal(), parsed.Marshal())
	})
}

func TestKeyPairSignRoundTrip(t *testing.T) {
	pair, err := NewKeyPair()
	require.NoError(t, err)

	signer, err := pair.Signer()
	require.NoError(t, err)

	sig, err := signer.Sign(nil, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, signer.PublicKey().Verify([]byte("hello"), sig))
}

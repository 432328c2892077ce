package ssh

// keys.go is a small facade over 'crypto/ed25519' and 'x/crypto/ssh' for the
// key formats this tool needs: the OpenSSH PEM private key written to the
// identity file, the 'authorized_keys' form of the public key, and an
// 'ssh.Signer' for outbound connections.

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

var (
	ErrKeyGen         = fmt.Errorf("failed to generate an ed25519 keypair")
	ErrPubKeyMarshal  = fmt.Errorf("failed to marshal the public key to OpenSSH format")
	ErrPrivKeyMarshal = fmt.Errorf("failed to marshal the private key to OpenSSH format")
	ErrKeyParse       = fmt.Errorf("failed to parse SSH private key")
)

// KeyPair holds a freshly generated ed25519 keypair.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeyPair generates an ed25519 keypair.
func NewKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// MarshalPublicOpenSSH renders the public key in the 'authorized_keys' file
// format, trailing newline included.
func (kp KeyPair) MarshalPublicOpenSSH() ([]byte, error) {
	pub, err := ssh.NewPublicKey(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPubKeyMarshal, err)
	}
	marshaled := ssh.MarshalAuthorizedKey(pub)
	if marshaled == nil {
		return nil, ErrPubKeyMarshal
	}
	return marshaled, nil
}

// MarshalPrivateOpenSSH renders the private key as a PEM-encoded OpenSSH
// private key block.
func (kp KeyPair) MarshalPrivateOpenSSH(comment string) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(kp.Private, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyMarshal, err)
	}
	encoded := pem.EncodeToMemory(block)
	if encoded == nil {
		return nil, ErrPrivKeyMarshal
	}
	return encoded, nil
}

// Signer converts the private key to an 'ssh.Signer' for client auth.
func (kp KeyPair) Signer() (ssh.Signer, error) {
	return ssh.NewSignerFromKey(kp.Private)
}

// LoadSigner reads and parses an OpenSSH private key file.
func LoadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyParse, err)
	}
	return signer, nil
}

// WriteKeyPair generates a keypair and writes both halves to disk: the
// OpenSSH PEM private key at identityPath (0600) and the 'authorized_keys'
// form at pubPath.
func WriteKeyPair(identityPath, pubPath string) error {
	keys, err := NewKeyPair()
	if err != nil {
		return err
	}

	priv, err := keys.MarshalPrivateOpenSSH("cloud-image-validator")
	if err != nil {
		return err
	}
	if err := os.WriteFile(identityPath, priv, 0o600); err != nil {
		return fmt.Errorf("writing identity file %q: %w", identityPath, err)
	}

	pub, err := keys.MarshalPublicOpenSSH()
	if err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return fmt.Errorf("writing public key file %q: %w", pubPath, err)
	}
	return nil
}

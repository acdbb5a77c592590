package deploy

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testKeyPEM generates a throwaway ed25519 key, optionally encrypted.
func testKeyPEM(t *testing.T, passphrase string) ([]byte, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	require.NoError(t, err)
	return pem.EncodeToMemory(block), pub
}

func TestCredentialsMethods(t *testing.T) {
	plainKey, _ := testKeyPEM(t, "")
	encryptedKey, _ := testKeyPEM(t, "letmein")

	tests := []struct {
		name    string
		creds   Credentials
		want    int
		wantErr bool
	}{
		{
			name:  "key only",
			creds: Credentials{PrivateKey: plainKey},
			want:  1,
		},
		{
			name:  "password only",
			creds: Credentials{Password: "hunter2"},
			want:  1,
		},
		{
			name:  "key and password",
			creds: Credentials{PrivateKey: plainKey, Password: "hunter2"},
			want:  2,
		},
		{
			name:  "encrypted key with passphrase",
			creds: Credentials{PrivateKey: encryptedKey, Passphrase: "letmein"},
			want:  1,
		},
		{
			name:    "encrypted key without passphrase",
			creds:   Credentials{PrivateKey: encryptedKey},
			wantErr: true,
		},
		{
			name:    "encrypted key with wrong passphrase",
			creds:   Credentials{PrivateKey: encryptedKey, Passphrase: "wrong"},
			wantErr: true,
		},
		{
			name:    "garbage key",
			creds:   Credentials{PrivateKey: []byte("not a key")},
			wantErr: true,
		},
		{
			name:    "nothing configured",
			creds:   Credentials{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			methods, err := tt.creds.methods()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, methods, tt.want)
		})
	}
}

func TestCredentialsMethodsEmptySentinel(t *testing.T) {
	_, err := Credentials{}.methods()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestNewSSHDialerInsecure(t *testing.T) {
	d, err := NewSSHDialer(Credentials{Password: "x"}, WithInsecureHostKeys())
	require.NoError(t, err)
	assert.NotNil(t, d.hostKeys)
}

func TestNewSSHDialerRejectsEmptyCredentials(t *testing.T) {
	_, err := NewSSHDialer(Credentials{}, WithInsecureHostKeys())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestNewSSHDialerKnownHosts(t *testing.T) {
	_, pub := testKeyPEM(t, "")
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := "app-01.example.com " + string(ssh.MarshalAuthorizedKey(sshPub))
	require.NoError(t, os.WriteFile(path, []byte(line), 0o600))

	d, err := NewSSHDialer(Credentials{Password: "x"}, WithKnownHosts(path))
	require.NoError(t, err)
	assert.NotNil(t, d.hostKeys)
}

func TestNewSSHDialerMissingKnownHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent")
	_, err := NewSSHDialer(Credentials{Password: "x"}, WithKnownHosts(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known_hosts")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "/etc/ssh/known_hosts", want: "/etc/ssh/known_hosts"},
		{in: "~/.ssh/known_hosts", want: filepath.Join(home, ".ssh/known_hosts")},
		{in: "~", want: home},
		{in: "~other/x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := expandHome(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "expanding %q", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "expanding %q", tt.in)
	}
}

func TestLastNonEmptyLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"\n\n", ""},
		{"one\n", "one"},
		{"Error: no such container\n\n", "Error: no such container"},
		{"pulling...\ndigest: sha256:abc\n", "digest: sha256:abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lastNonEmptyLine([]byte(tt.in)))
	}
}

package cert

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBundle(t *testing.T) {
	dir := t.TempDir()

	b, err := GenerateBundle(dir, "workstation", "localhost", "127.0.0.1")
	require.NoError(t, err)

	for _, path := range []string{b.CAFile, b.CAKeyFile, b.ServerCertFile, b.ServerKey, b.ClientCertFile, b.ClientKey} {
		assert.FileExists(t, path)
	}

	info, err := os.Stat(b.ServerKey)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	server, err := VerifyCertificateFile(b.ServerCertFile, b.CAFile)
	require.NoError(t, err)
	assert.True(t, server.Valid, server.Error)
	assert.Equal(t, "server", server.Role)
	assert.Contains(t, server.Certificate.DNSNames, "localhost")
	require.Len(t, server.Certificate.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", server.Certificate.IPAddresses[0].String())

	client, err := VerifyCertificateFile(b.ClientCertFile, b.CAFile)
	require.NoError(t, err)
	assert.True(t, client.Valid, client.Error)
	assert.Equal(t, "client", client.Role)
	assert.Equal(t, "workstation", client.Certificate.Subject.CommonName)
	assert.Contains(t, FormatVerifyResult(client), "Status: VALID")
}

func TestVerifyRejectsForeignCA(t *testing.T) {
	a, err := GenerateBundle(filepath.Join(t.TempDir(), "a"), "a")
	require.NoError(t, err)
	b, err := GenerateBundle(filepath.Join(t.TempDir(), "b"), "b")
	require.NoError(t, err)

	res, err := VerifyCertificateFile(a.ClientCertFile, b.CAFile)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, FormatVerifyResult(res), "INVALID")
}

func TestLoadCAIssuesVerifiableCertificates(t *testing.T) {
	dir := t.TempDir()
	b, err := GenerateBundle(dir, "first")
	require.NoError(t, err)

	issuer, err := LoadCA(b.CAFile, b.CAKeyFile)
	require.NoError(t, err)

	c, err := issuer.IssueClient("second")
	require.NoError(t, err)
	assert.NoError(t, issuer.Verify(c.Certificate, x509.ExtKeyUsageClientAuth))
	assert.Error(t, issuer.Verify(c.Certificate, x509.ExtKeyUsageServerAuth))
	assert.Contains(t, c.PEM(), "BEGIN CERTIFICATE")
}

func TestReadCertificateErrors(t *testing.T) {
	_, err := ReadCertificate(filepath.Join(t.TempDir(), "missing.crt"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.crt")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0o600))
	_, err = ReadCertificate(bad)
	assert.Error(t, err)
}

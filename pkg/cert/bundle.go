package cert

import (
	"fmt"
	"os"
	"path/filepath"
)

// Bundle holds the paths of a complete agent PKI
type Bundle struct {
	CAFile, CAKeyFile         string
	ServerCertFile, ServerKey string
	ClientCertFile, ClientKey string
}

// BundlePaths returns the file layout used by GenerateBundle in dir
func BundlePaths(dir string) Bundle {
	return Bundle{
		CAFile:         filepath.Join(dir, "ca.crt"),
		CAKeyFile:      filepath.Join(dir, "ca.key"),
		ServerCertFile: filepath.Join(dir, "server.crt"),
		ServerKey:      filepath.Join(dir, "server.key"),
		ClientCertFile: filepath.Join(dir, "client.crt"),
		ClientKey:      filepath.Join(dir, "client.key"),
	}
}

// GenerateBundle writes a new CA plus one server and one client certificate
// into dir. hosts are the names the server certificate is valid for.
func GenerateBundle(dir, clientName string, hosts ...string) (Bundle, error) {
	b := BundlePaths(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return b, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	issuer, err := NewIssuer()
	if err != nil {
		return b, err
	}
	if err := issuer.SaveCA(b.CAFile, b.CAKeyFile); err != nil {
		return b, err
	}

	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}
	server, err := issuer.IssueServer(hosts...)
	if err != nil {
		return b, err
	}
	if err := server.Save(b.ServerCertFile, b.ServerKey); err != nil {
		return b, err
	}

	client, err := issuer.IssueClient(clientName)
	if err != nil {
		return b, err
	}
	if err := client.Save(b.ClientCertFile, b.ClientKey); err != nil {
		return b, err
	}

	return b, nil
}

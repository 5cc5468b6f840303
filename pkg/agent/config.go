package agent

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/mscrnt/thermalctl/pkg/config"
)

// Config contains configuration for the agent server
type Config struct {
	Port     int    // Server port
	CertFile string // Server certificate file
	KeyFile  string // Server private key file
	CAFile   string // CA certificate file for client verification
	LogFile  string // Optional log file path
}

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	return FromSettings(config.DefaultConfig().Agent)
}

// FromSettings converts the agent section of the main configuration
func FromSettings(a config.Agent) Config {
	return Config{
		Port:     a.Port,
		CertFile: a.CertFile,
		KeyFile:  a.KeyFile,
		CAFile:   a.CAFile,
		LogFile:  a.LogFile,
	}
}

// TLSEnabled reports whether mutual TLS is configured
func (c Config) TLSEnabled() bool {
	return c.CertFile != "" || c.KeyFile != "" || c.CAFile != ""
}

// Addr is the listen address. Without TLS the agent only listens on loopback.
func (c Config) Addr() string {
	if c.TLSEnabled() {
		return fmt.Sprintf(":%d", c.Port)
	}
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if !c.TLSEnabled() {
		return nil
	}
	return checkFiles(c.CertFile, c.KeyFile, c.CAFile, "server")
}

func checkFiles(cert, key, ca, role string) error {
	if cert == "" {
		return fmt.Errorf("%s certificate file is required", role)
	}
	if key == "" {
		return fmt.Errorf("%s key file is required", role)
	}
	if ca == "" {
		return fmt.Errorf("CA certificate file is required")
	}

	if _, err := os.Stat(cert); err != nil {
		return fmt.Errorf("certificate file not found: %s", cert)
	}
	if _, err := os.Stat(key); err != nil {
		return fmt.Errorf("key file not found: %s", key)
	}
	if _, err := os.Stat(ca); err != nil {
		return fmt.Errorf("CA file not found: %s", ca)
	}
	return nil
}

func loadPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	return pool, nil
}

// LoadTLSConfig creates the mTLS configuration, or nil when TLS is off
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	pool, err := loadPool(c.CAFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientConfig contains configuration for the agent client
type ClientConfig struct {
	Host     string // Target host
	Port     int    // Target port
	CertFile string // Client certificate file
	KeyFile  string // Client private key file
	CAFile   string // CA certificate file for server verification
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host: "127.0.0.1",
		Port: config.DefaultConfig().Agent.Port,
	}
}

// TLSEnabled reports whether the client presents a certificate
func (c ClientConfig) TLSEnabled() bool {
	return c.CertFile != "" || c.KeyFile != "" || c.CAFile != ""
}

// Validate checks if the client configuration is valid
func (c ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if !c.TLSEnabled() {
		return nil
	}
	return checkFiles(c.CertFile, c.KeyFile, c.CAFile, "client")
}

// LoadClientTLSConfig creates TLS configuration for the client, or nil when TLS is off
func (c ClientConfig) LoadClientTLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	pool, err := loadPool(c.CAFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

//go:build integration
// +build integration

package agent

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mscrnt/thermalctl/pkg/cert"
	"github.com/mscrnt/thermalctl/pkg/ec/ectest"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/regmap"
)

// TestAgentIntegration tests the full mTLS server and client flow
func TestAgentIntegration(t *testing.T) {
	bundle, err := cert.GenerateBundle(t.TempDir(), "integration", "localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("failed to generate certificates: %v", err)
	}

	port := findAvailablePort(t)

	serverConfig := Config{
		Port:     port,
		CertFile: bundle.ServerCertFile,
		KeyFile:  bundle.ServerKey,
		CAFile:   bundle.CAFile,
	}

	mem := ectest.New()
	hw := hardware.NewWithOptions(hardware.Options{Access: mem, Registers: regmap.Gen2})
	rec := &fakeRecorder{}

	server, err := NewServer(serverConfig, hw, rec, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	client, err := NewClient(ClientConfig{
		Host:     "localhost",
		Port:     port,
		CertFile: bundle.ClientCertFile,
		KeyFile:  bundle.ClientKey,
		CAFile:   bundle.CAFile,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	t.Run("health_check", func(t *testing.T) {
		if err := client.CheckHealth(); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		st, err := client.Status()
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if st.Generation != "gen2" {
			t.Errorf("generation: got %v want gen2", st.Generation)
		}
	})

	t.Run("fan_profile", func(t *testing.T) {
		result, err := client.Command("fan/profile", CommandRequest{Profile: "gaming"})
		if err != nil {
			t.Fatalf("command failed: %v", err)
		}
		if !result.OK {
			t.Errorf("fan profile rejected: %s", result.Message)
		}
		if got := mem.Get(regmap.Gen2.Fan1Speed.Addr); got != 44 {
			t.Errorf("fan1 speed: got %d want 44", got)
		}
	})

	t.Run("client_without_certificate", func(t *testing.T) {
		plain, err := NewClient(ClientConfig{Host: "localhost", Port: port})
		if err != nil {
			t.Fatal(err)
		}
		if err := plain.CheckHealth(); err == nil {
			t.Error("plain HTTP client reached the mTLS agent")
		}
	})

	if err := server.Shutdown(context.TODO()); err != nil {
		t.Errorf("failed to shutdown server: %v", err)
	}
	if err := <-serverErr; err != nil {
		t.Errorf("server exited with error: %v", err)
	}
}

// findAvailablePort finds an available port for testing
func findAvailablePort(t *testing.T) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

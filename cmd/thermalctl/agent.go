package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mscrnt/thermalctl/pkg/agent"
	"github.com/mscrnt/thermalctl/pkg/cert"
	"github.com/spf13/cobra"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "HTTP control agent",
		Long:  "Serve hardware status and commands over HTTP, with mutual TLS when certificates are configured",
	}

	cmd.AddCommand(agentServeCmd())
	cmd.AddCommand(agentStatusCmd())
	cmd.AddCommand(agentCertsCmd())
	cmd.AddCommand(agentVerifyCertCmd())

	return cmd
}

func agentServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control agent",
		Long: `Start the control agent.

The agent exposes the following endpoints:
  GET  /status       - Hardware status snapshot
  POST /fan/profile  - {"profile": "silent"}
  POST /fan/percent  - {"percent": 60}
  POST /fan/boost    - {"enabled": true}
  POST /perf/mode    - {"mode": "performance"}
  POST /perf/tpl     - {"limit": 3}
  GET  /health       - Health check endpoint

Without agent.cert_file, agent.key_file and agent.ca_file the agent only
listens on 127.0.0.1. Generate certificates with "thermalctl agent certs".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireWrite(); err != nil {
				return err
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			svc, err := globals.service(database)
			if err != nil {
				return err
			}

			cfg := agent.FromSettings(globals.cfg.Agent)
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			server, err := agent.NewServer(cfg, svc, database, globals.log)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Start()
			}()

			mode := "without TLS (loopback only)"
			if cfg.TLSEnabled() {
				mode = "with mTLS"
			}
			fmt.Printf("Agent listening on %s %s\n", cfg.Addr(), mode)
			fmt.Println("Press Ctrl+C to stop...")

			select {
			case <-ctx.Done():
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancelShutdown()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown error: %w", err)
				}
				fmt.Println("Server stopped gracefully")
				return nil
			case err := <-errChan:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides agent.port)")
	return cmd
}

func agentStatusCmd() *cobra.Command {
	var (
		clientCfg agent.ClientConfig
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				clientCfg.Port = globals.cfg.Agent.Port
			}

			client, err := agent.NewClient(clientCfg)
			if err != nil {
				return err
			}
			if err := client.CheckHealth(); err != nil {
				return fmt.Errorf("agent not healthy: %w", err)
			}

			st, err := client.Status()
			if err != nil {
				return err
			}
			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(st)
			}
			printStatus(st)
			return nil
		},
	}

	defaults := agent.DefaultClientConfig()
	cmd.Flags().StringVar(&clientCfg.Host, "host", defaults.Host, "Agent host")
	cmd.Flags().IntVarP(&clientCfg.Port, "port", "p", defaults.Port, "Agent port")
	cmd.Flags().StringVar(&clientCfg.CertFile, "cert", "", "Client certificate file")
	cmd.Flags().StringVar(&clientCfg.KeyFile, "key", "", "Client private key file")
	cmd.Flags().StringVar(&clientCfg.CAFile, "ca", "", "CA certificate file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func agentCertsCmd() *cobra.Command {
	var (
		dir    string
		client string
		hosts  []string
	)

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate a CA with server and client certificates for the agent",
		Long: `Generate a CA, a server certificate and a client certificate.

Examples:
  thermalctl agent certs --dir ~/.thermalctl/pki --host laptop.lan --host 192.168.1.20`,
		RunE: func(_ *cobra.Command, _ []string) error {
			bundle, err := cert.GenerateBundle(dir, client, hosts...)
			if err != nil {
				return err
			}

			fmt.Printf("CA:     %s\n", bundle.CAFile)
			fmt.Printf("Server: %s, %s\n", bundle.ServerCertFile, bundle.ServerKey)
			fmt.Printf("Client: %s, %s\n", bundle.ClientCertFile, bundle.ClientKey)
			fmt.Println("\nAdd to the config file:")
			fmt.Printf("agent:\n  cert_file: %s\n  key_file: %s\n  ca_file: %s\n",
				bundle.ServerCertFile, bundle.ServerKey, bundle.CAFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "pki", "Output directory")
	cmd.Flags().StringVar(&client, "client", "thermalctl-client", "Client certificate common name")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "Server host name or IP (repeatable, default localhost and 127.0.0.1)")
	return cmd
}

func agentVerifyCertCmd() *cobra.Command {
	var caFile string

	cmd := &cobra.Command{
		Use:   "verify-cert <cert>",
		Short: "Check that a certificate was issued by the agent CA",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if caFile == "" {
				caFile = globals.cfg.Agent.CAFile
			}
			if caFile == "" {
				return fmt.Errorf("--ca is required when agent.ca_file is not set")
			}

			result, err := cert.VerifyCertificateFile(args[0], caFile)
			if err != nil {
				return err
			}
			fmt.Print(cert.FormatVerifyResult(result))
			if !result.Valid {
				return fmt.Errorf("certificate is not valid")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&caFile, "ca", "", "CA certificate file (default: agent.ca_file)")
	return cmd
}

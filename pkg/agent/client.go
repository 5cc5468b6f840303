package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mscrnt/thermalctl/pkg/hardware"
)

// Client represents an agent client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new agent client
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tlsConfig, err := cfg.LoadClientTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS config: %w", err)
	}

	scheme := "http"
	transport := &http.Transport{}
	if tlsConfig != nil {
		scheme = "https"
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}, nil
}

// newClientForURL targets an already running server, e.g. httptest
func newClientForURL(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: hc}
}

func (c *Client) do(method, endpoint string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+"/"+strings.TrimPrefix(endpoint, "/"), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// Status fetches the hardware snapshot
func (c *Client) Status() (hardware.Status, error) {
	var st hardware.Status
	code, body, err := c.do(http.MethodGet, "status", nil)
	if err != nil {
		return st, err
	}
	if code != http.StatusOK {
		return st, fmt.Errorf("server returned status %d: %s", code, string(body))
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// Command posts req to a command endpoint such as "fan/profile". A failed
// command is reported in the result, not as an error.
func (c *Client) Command(endpoint string, req CommandRequest) (hardware.CommandResult, error) {
	var result hardware.CommandResult
	code, body, err := c.do(http.MethodPost, endpoint, req)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("server returned status %d: %s", code, string(body))
	}
	return result, nil
}

// CheckHealth checks if the agent is healthy
func (c *Client) CheckHealth() error {
	code, body, err := c.do(http.MethodGet, "health", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK || string(body) != "OK\n" {
		return fmt.Errorf("unexpected health response %d: %s", code, string(body))
	}
	return nil
}

// Package main provides the netctl CLI for the road-network registry
// server: uploading network snapshots, time-travel queries, and tenant
// API-key administration.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL    string
	outputFlag   string
	apiKeyFlag   string
	globalClient *registryClient
)

// registryClient wraps an HTTP client and the server base URL.
type registryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// newRegistryClient creates a new client targeting the given server URL.
func newRegistryClient(baseURL, apiKey string) *registryClient {
	return &registryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// doRequest performs an HTTP request and returns the response body bytes.
// It returns an error if the status code indicates a failure.
func (c *registryClient) doRequest(method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to registry server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return respBody, nil
}

// uploadGeoJSON posts a multipart form with the network name and a GeoJSON
// file to the given path.
func (c *registryClient) uploadGeoJSON(path, name, filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}
	part, err := mw.CreateFormFile("file", filePath)
	if err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}

	return c.doRequest(http.MethodPost, path, mw.FormDataContentType(), &buf)
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "netctl",
		Short:   "Manage road networks in the registry server",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiKeyFlag == "" {
				apiKeyFlag = os.Getenv("REGISTRY_API_KEY")
			}
			globalClient = newRegistryClient(serverURL, apiKeyFlag)
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "API key (defaults to REGISTRY_API_KEY)")

	rootCmd.AddCommand(newNetworksCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newEdgesCmd())
	rootCmd.AddCommand(newAPIKeyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Package commands implements the pfinetctl CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the admin HTTP client, built once in PersistentPreRunE.
	httpClient *http.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the translator's admin HTTP address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for pfinetctl.
var rootCmd = &cobra.Command{
	Use:   "pfinetctl",
	Short: "CLI client for the pfinet translator",
	Long:  "pfinetctl talks to the pfinet translator's admin HTTP surface to inspect interfaces, sockets, and capability-table state.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		httpClient = &http.Client{Timeout: 10 * time.Second}
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9101",
		"pfinet admin address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(interfacesCmd())
	rootCmd.AddCommand(socketsCmd())
	rootCmd.AddCommand(reloadCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// adminURL builds the URL for one admin endpoint path.
func adminURL(path string) string {
	return "http://" + serverAddr + path
}

// getJSON issues a GET against the admin surface and decodes the JSON
// response body into out. A non-2xx status is reported as an error
// carrying the server's {"error": "..."} body when present.
func getJSON(path string, out any) error {
	resp, err := httpClient.Get(adminURL(path))
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %w", path, decodeAPIError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// postJSON issues a POST with no body against the admin surface.
func postJSON(path string) error {
	resp, err := httpClient.Post(adminURL(path), "application/json", nil)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: %w", path, decodeAPIError(resp))
	}
	return nil
}

// decodeAPIError extracts the admin surface's {"error": "..."} body, or
// falls back to the HTTP status text.
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s", body.Error)
	}
	return fmt.Errorf("%s", resp.Status)
}

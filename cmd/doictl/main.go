// Package main implements doictl, a CLI for listing and transmitting DOI records through the API.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/models"
	"github.com/valterpcjria-cloud/doi-smart/internal/service"
)

var (
	serverURL string
	noColor   bool
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "doictl",
	Short:   "CLI for the DOI transmission API",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "DOI API base URL")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored console output")
	rootCmd.AddCommand(healthCmd, listCmd, transmitCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check API health",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client().Get(serverURL + "/health")
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server unhealthy: HTTP %d", resp.StatusCode)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List DOI records",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client().Get(serverURL + "/api/v1/records")
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}

		var records []domain.Record
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return printRecords(cmd.OutOrStdout(), records)
	},
}

var transmitCmd = &cobra.Command{
	Use:   "transmit <id>...",
	Short: "Transmit records to the tax authority and follow the console log",
	Long: `Transmit one or more records in the given order. Progress and the per-record
console log are printed as they arrive.

Examples:
  doictl transmit DOI-2026-002 DOI-2026-003`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(models.TransmitRequest{IDs: args})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, serverURL+"/api/v1/transmissions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/x-ndjson")

		// Transmissions take seconds per record; no client timeout.
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}

		result, err := followStream(resp.Body, cmd.OutOrStdout(), !noColor)
		if err != nil {
			return err
		}
		if result.Summary.Failed > 0 || result.PersistenceError != "" {
			return fmt.Errorf("%d of %d record(s) failed", result.Summary.Failed, result.Summary.Total)
		}
		return nil
	},
}

func client() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func printRecords(w io.Writer, records []domain.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tVALUE\tRECEIPT / ERROR")
	for _, r := range records {
		detail := r.ReceiptNumber
		if r.ErrorMessage != "" {
			detail = r.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Date, r.Status, r.Value.StringFixed(2), detail)
	}
	return tw.Flush()
}

// followStream prints every event of a transmission stream and returns the final result.
func followStream(r io.Reader, w io.Writer, color bool) (*models.TransmitResponse, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for sc.Scan() {
		var ev models.StreamEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("malformed stream event: %w", err)
		}
		switch ev.Type {
		case models.EventProgress:
			for _, line := range ev.Logs {
				fmt.Fprintln(w, paint(line, color))
			}
			fmt.Fprintf(w, "-- %d/%d --\n", ev.Current, ev.Total)
		case models.EventError:
			return nil, fmt.Errorf("transmission aborted: %s", ev.Error)
		case models.EventResult:
			if ev.Result == nil {
				return nil, fmt.Errorf("result event without payload")
			}
			printSummary(w, ev.Result)
			return ev.Result, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}
	return nil, fmt.Errorf("stream ended before the final result")
}

func printSummary(w io.Writer, res *models.TransmitResponse) {
	fmt.Fprintf(w, "Transmitted: %d  Failed: %d  Total: %d\n", res.Summary.Succeeded, res.Summary.Failed, res.Summary.Total)
	for id, reason := range res.Skipped {
		fmt.Fprintf(w, "Skipped %s: %s\n", id, reason)
	}
	if res.PersistenceError != "" {
		fmt.Fprintf(w, "WARNING: outcomes not saved for %s: %s\n", strings.Join(res.UnsavedIDs, ", "), res.PersistenceError)
	}
}

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

// paint colors console lines by the markers the transmitter writes.
func paint(line string, color bool) string {
	if !color {
		return line
	}
	switch {
	case strings.Contains(line, "ERRO"), strings.Contains(line, service.MarkCritical), strings.Contains(line, service.MarkRejected):
		return ansiRed + line + ansiReset
	case strings.Contains(line, service.MarkSuccess):
		return ansiGreen + line + ansiReset
	default:
		return line
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/firehose/internal/core/config"
	"github.com/vietddude/firehose/internal/stream/health"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connection status of a running firehose",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "health server address (default localhost:<server.port>)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		if cfg.Server.Port == 0 {
			slog.Error("Health server is disabled in config; pass --addr")
			os.Exit(1)
		}
		addr = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	}

	report, err := fetchReport(addr)
	if err != nil {
		slog.Error("Failed to query health server", "addr", addr, "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tSTATE\tCONN\tATTEMPT\tSINCE\tLAST CHUNK\tBACKOFF\tERROR")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
		report.Status,
		report.State,
		report.ConnID,
		report.Attempt,
		formatTime(report.Since),
		formatTime(report.LastChunk),
		report.Backoff,
		report.Error,
	)
	_ = w.Flush()

	if report.Status == health.StatusCritical {
		os.Exit(1)
	}
}

func fetchReport(addr string) (*health.Report, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/health/detailed")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

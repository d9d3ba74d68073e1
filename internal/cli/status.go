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

	"github.com/trackdeck/realtime/internal/core/config"
	"github.com/trackdeck/realtime/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a running realtime service",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/health/detailed", cfg.Server.Port)
	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Failed to reach service", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode health report", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "OVERALL\t%s\t%s\n", report.Overall, report.CheckedAt.Format(time.RFC3339))
	for name, comp := range report.Components {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, comp.Status, comp.Detail)
	}
	_ = w.Flush()
}

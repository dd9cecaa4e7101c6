package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// socketView mirrors internal/admin/handlers.go's socketView.
type socketView struct {
	IsRoot      bool `json:"is_root"`
	NonBlocking bool `json:"non_blocking"`
	Closed      bool `json:"closed"`
}

// captabStatsView mirrors internal/admin/handlers.go's captabStatsView.
type captabStatsView struct {
	SocketBucketObjects int `json:"socket_bucket_objects"`
}

func socketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sockets",
		Short: "Inspect live sockets in the capability table",
	}
	cmd.AddCommand(socketsListCmd())
	cmd.AddCommand(socketsStatsCmd())
	return cmd
}

func socketsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all live socket user-views",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var sockets []socketView
			if err := getJSON("/v1/sockets", &sockets); err != nil {
				return fmt.Errorf("list sockets: %w", err)
			}

			out, err := formatSockets(sockets, outputFormat)
			if err != nil {
				return fmt.Errorf("format sockets: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func socketsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report capability-table population",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var stats captabStatsView
			if err := getJSON("/v1/captab/stats", &stats); err != nil {
				return fmt.Errorf("get captab stats: %w", err)
			}

			if outputFormat == formatJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal stats to JSON: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Socket bucket objects: %d\n", stats.SocketBucketObjects)
			return nil
		},
	}
}

func formatSockets(sockets []socketView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(sockets, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal sockets to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROOT\tNON-BLOCKING\tCLOSED")
		for _, s := range sockets {
			fmt.Fprintf(w, "%t\t%t\t%t\n", s.IsRoot, s.NonBlocking, s.Closed)
		}
		_ = w.Flush()
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Trigger a configuration reload",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := postJSON("/v1/reload"); err != nil {
				return fmt.Errorf("reload: %w", err)
			}
			fmt.Println("reload accepted")
			return nil
		},
	}
}

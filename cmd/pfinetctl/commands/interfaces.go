package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

const (
	formatJSON  = "json"
	formatTable = "table"
)

// interfaceView mirrors internal/admin/handlers.go's interfaceView —
// the JSON shape the admin surface actually emits.
type interfaceView struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	MTU       int      `json:"mtu"`
	Flags     []string `json:"flags"`
	Addr      string   `json:"addr,omitempty"`
	Mask      string   `json:"mask,omitempty"`
	Gateway   string   `json:"gateway,omitempty"`
	Broadcast string   `json:"broadcast,omitempty"`
	V6        []string `json:"v6,omitempty"`
}

func interfacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interfaces",
		Short: "Inspect translator interfaces",
	}
	cmd.AddCommand(interfacesListCmd())
	cmd.AddCommand(interfacesShowCmd())
	return cmd
}

func interfacesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured interfaces",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var ifaces []interfaceView
			if err := getJSON("/v1/interfaces", &ifaces); err != nil {
				return fmt.Errorf("list interfaces: %w", err)
			}

			out, err := formatInterfaces(ifaces, outputFormat)
			if err != nil {
				return fmt.Errorf("format interfaces: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func interfacesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one interface's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var i interfaceView
			if err := getJSON("/v1/interfaces/"+args[0], &i); err != nil {
				return fmt.Errorf("get interface %q: %w", args[0], err)
			}

			out, err := formatInterface(i, outputFormat)
			if err != nil {
				return fmt.Errorf("format interface: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func formatInterfaces(ifaces []interfaceView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(ifaces, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal interfaces to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		return formatInterfacesTable(ifaces), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatInterfacesTable(ifaces []interfaceView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMTU\tADDR\tMASK\tFLAGS")
	for _, i := range ifaces {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			i.Name, i.Kind, i.MTU, valueOr(i.Addr), valueOr(i.Mask), strings.Join(i.Flags, ","))
	}
	_ = w.Flush()
	return buf.String()
}

func formatInterface(i interfaceView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(i, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal interface to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", i.Name)
		fmt.Fprintf(w, "Kind:\t%s\n", i.Kind)
		fmt.Fprintf(w, "MTU:\t%d\n", i.MTU)
		fmt.Fprintf(w, "Flags:\t%s\n", strings.Join(i.Flags, ","))
		fmt.Fprintf(w, "Addr:\t%s\n", valueOr(i.Addr))
		fmt.Fprintf(w, "Mask:\t%s\n", valueOr(i.Mask))
		fmt.Fprintf(w, "Gateway:\t%s\n", valueOr(i.Gateway))
		fmt.Fprintf(w, "Broadcast:\t%s\n", valueOr(i.Broadcast))
		if len(i.V6) > 0 {
			fmt.Fprintf(w, "IPv6:\t%s\n", strings.Join(i.V6, ", "))
		}
		_ = w.Flush()
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func valueOr(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

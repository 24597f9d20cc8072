package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewTraceCommand shows which scope supplies a key.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <key>",
		Short: "Show how each scope contributes to a key",
		Long: `Show the stored value of a key in the session scope and every --fallback
scope, strongest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			trace := ws.session.Trace(args[0])
			return newFormatter(rootOpts, cmd.OutOrStdout()).Data(trace, func(w io.Writer) {
				if len(trace.Layers) == 0 {
					fmt.Fprintf(w, "%s: not stored in any scope\n", trace.Key)
					return
				}
				for _, layer := range trace.Layers {
					value := "-"
					if layer.Found {
						value = layer.Value
					}
					line := fmt.Sprintf("%s\t%d\t%s", layer.Scope.Name, layer.Scope.Priority, value)
					if layer.Effective {
						line += "\t*"
					}
					fmt.Fprintln(w, line)
				}
			})
		},
	}
}

// LayerSummary describes one resolved scope.
type LayerSummary struct {
	Scope    string   `json:"scope"`
	ID       string   `json:"id,omitempty"`
	Priority int      `json:"priority"`
	ETag     string   `json:"etag,omitempty"`
	Keys     int      `json:"keys"`
	Shadowed []string `json:"shadowed,omitempty"`
}

// NewLayersCommand lists the stored scopes behind the session.
func NewLayersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the scopes that hold stored values",
		Long: `List the session scope and every --fallback scope that holds a stored
snapshot, strongest first, with the keys a stronger scope overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			resolution := ws.session.Resolution()
			summaries := make([]LayerSummary, 0, len(resolution.Layers))
			for _, layer := range resolution.Layers {
				summaries = append(summaries, LayerSummary{
					Scope:    layer.Scope.Name,
					ID:       layer.Scope.ID,
					Priority: layer.Scope.Priority,
					ETag:     layer.Meta.ETag,
					Keys:     len(layer.Snapshot),
					Shadowed: resolution.Shadowed(layer.Scope.Name),
				})
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Data(summaries, func(w io.Writer) {
				if len(summaries) == 0 {
					fmt.Fprintln(w, "no stored scopes")
					return
				}
				for _, l := range summaries {
					fmt.Fprintf(w, "%s\t%d\t%s\t%d keys", l.Scope, l.Priority, l.ETag, l.Keys)
					if len(l.Shadowed) > 0 {
						fmt.Fprintf(w, "\tshadowed: %s", strings.Join(l.Shadowed, ","))
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
}

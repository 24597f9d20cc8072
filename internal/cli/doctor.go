package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Diagnostic is one problem found while loading the stored snapshot.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Message string `json:"message,omitempty"`
}

// NewDoctorCommand reports load diagnostics of the stored snapshot.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report stored values that could not be loaded",
		Long: `Load the stored snapshot and report keys that are no longer declared,
values that failed to decode, and defaults that failed to evaluate. Affected
keys have been replaced by their defaults in the loaded record; run "set" or
"reset" to repair the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			result := ws.session.Diagnostics()
			var diags []Diagnostic
			for _, key := range result.UnknownFields {
				diags = append(diags, Diagnostic{Kind: "unknown", Key: key})
			}
			for _, fe := range result.DeserializationErrors {
				diags = append(diags, Diagnostic{Kind: "decode", Key: fe.Key, Message: fe.Message})
			}
			for _, fe := range result.DefaultErrors {
				diags = append(diags, Diagnostic{Kind: "default", Key: fe.Key, Message: fe.Message})
			}

			err = newFormatter(rootOpts, cmd.OutOrStdout()).Data(diags, func(w io.Writer) {
				if len(diags) == 0 {
					fmt.Fprintln(w, "ok: snapshot loaded cleanly")
					return
				}
				for _, d := range diags {
					if d.Message == "" {
						fmt.Fprintf(w, "%s\t%s\n", d.Kind, d.Key)
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", d.Kind, d.Key, d.Message)
				}
			})
			if err != nil {
				return err
			}
			if strict && len(diags) > 0 {
				return fmt.Errorf("%d diagnostic(s) found", len(diags))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when diagnostics are found")
	return cmd
}

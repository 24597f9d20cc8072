package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-settings/internal/prefs"
	"github.com/goliatone/go-settings/schema/jsonschema"
)

// NewSchemaCommand prints the JSON Schema of the preferences record.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _, err := prefs.NewSchema()
			if err != nil {
				return err
			}
			out, err := jsonschema.Marshal(schema, jsonschema.WithID(id), jsonschema.WithSkipped())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "$id of the generated document")
	return cmd
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/prefs"
)

// KeyInfo describes one persisted key.
type KeyInfo struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Default     string `json:"default_policy"`
	Expr        string `json:"expr,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewKeysCommand lists the persisted keys of the preferences schema.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List persisted preference keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _, err := prefs.NewSchema()
			if err != nil {
				return err
			}
			var keys []KeyInfo
			for _, desc := range schema.Descriptors() {
				if desc.Skip {
					continue
				}
				keys = append(keys, KeyInfo{
					Key:         desc.Key,
					Type:        desc.Type.String(),
					Default:     string(desc.Default),
					Expr:        desc.Expr,
					Description: desc.Description,
				})
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Data(keys, func(w io.Writer) {
				for _, key := range keys {
					fmt.Fprintf(w, "%s\t%s\t%s\n", key.Key, key.Type, key.Default)
				}
			})
		},
	}
}

// Entry is one key of the loaded record with its encoded value.
type Entry struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Pending bool   `json:"pending"`
}

// NewShowCommand prints every key of the loaded record.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective preferences",
		Long: `Show every persisted key of the loaded record. Keys marked pending hold a
default that has not been written to the store yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			var entries []Entry
			err = ws.session.With(func(rec *settings.Record[prefs.Preferences]) error {
				for _, key := range ws.schema.Keys() {
					text, err := encodeKey(ws.schema, rec, key)
					if err != nil {
						return err
					}
					entries = append(entries, Entry{Key: key, Value: text, Pending: rec.IsDirty(key)})
				}
				return nil
			})
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Data(entries, func(w io.Writer) {
				for _, entry := range entries {
					marker := ""
					if entry.Pending {
						marker = " (default)"
					}
					fmt.Fprintf(w, "%s = %s%s\n", entry.Key, entry.Value, marker)
				}
			})
		},
	}
}

// NewGetCommand prints the encoded value of one key.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of one key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			var entry Entry
			err = ws.session.With(func(rec *settings.Record[prefs.Preferences]) error {
				text, err := encodeKey(ws.schema, rec, args[0])
				if err != nil {
					return err
				}
				entry = Entry{Key: args[0], Value: text, Pending: rec.IsDirty(args[0])}
				return nil
			})
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Data(entry, func(w io.Writer) {
				fmt.Fprintln(w, entry.Value)
			})
		},
	}
}

// SaveResult reports a completed write.
type SaveResult struct {
	Keys []string `json:"keys"`
	ETag string   `json:"etag"`
}

// NewSetCommand decodes a JSON value into one key and saves the record.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <json-value>",
		Short: "Set one key and save",
		Long: `Set one key from a JSON value and save the record. Pending defaults are
written along with it.

  settingsctl set theme '"dark"'
  settingsctl set font_size 18`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			err = ws.session.With(func(rec *settings.Record[prefs.Preferences]) error {
				return rec.AssignText(args[0], args[1])
			})
			if err != nil {
				return err
			}
			return save(cmd, rootOpts, ws)
		},
	}
}

// NewRecentCommand records a file as most recently opened.
func NewRecentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recent <path>",
		Short: "Push a file onto the recent files list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			_ = ws.session.With(func(rec *settings.Record[prefs.Preferences]) error {
				prefs.AddRecent(rec, ws.fields, args[0])
				return nil
			})
			return save(cmd, rootOpts, ws)
		},
	}
}

// NewResetCommand removes stored keys so they fall back to weaker scopes or
// defaults.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [key...]",
		Short: "Remove stored keys (all keys when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.session.Reset(cmd.Context(), args...); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Data(args, func(w io.Writer) {
				if len(args) == 0 {
					fmt.Fprintln(w, "reset all keys")
					return
				}
				fmt.Fprintf(w, "reset %d key(s)\n", len(args))
			})
		},
	}
}

func save(cmd *cobra.Command, rootOpts *RootOptions, ws *workspace) error {
	changes, err := ws.session.Save(cmd.Context())
	if err != nil {
		return err
	}
	result := SaveResult{Keys: changes.Keys(), ETag: ws.session.Meta().ETag}
	return newFormatter(rootOpts, cmd.OutOrStdout()).Data(result, func(w io.Writer) {
		if len(result.Keys) == 0 {
			fmt.Fprintln(w, "nothing to save")
			return
		}
		fmt.Fprintf(w, "saved %v (%s)\n", result.Keys, result.ETag)
	})
}

// encodeKey renders the current value of key with the schema codec.
func encodeKey(schema *settings.Schema[prefs.Preferences], rec *settings.Record[prefs.Preferences], key string) (string, error) {
	value, err := rec.Lookup(key)
	if err != nil {
		return "", err
	}
	text, err := schema.Codec().Encode(value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	return text, nil
}

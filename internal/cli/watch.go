package cli

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-settings/pkg/store"
)

// NewWatchCommand prints the snapshot every time its file changes.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the stored snapshot whenever it changes (file stores only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := rootOpts.ref()
			if err != nil {
				return err
			}
			backend, closeStore, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer closeStore()
			fs, ok := backend.(*store.FileStore)
			if !ok {
				return fmt.Errorf("watch requires a file store, got %q", rootOpts.Store)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := newFormatter(rootOpts, cmd.OutOrStdout())
			err = fs.Watch(ctx, ref, func(snapshot map[string]string, meta store.Meta) {
				keys := make([]string, 0, len(snapshot))
				for key := range snapshot {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				out.Linef("# %s %s", meta.ETag, meta.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
				for _, key := range keys {
					out.Linef("%s = %s", key, snapshot[key])
				}
			})
			if err != nil {
				return err
			}
			rootOpts.logger.Info("watching", "path", rootOpts.Path, "scope", ref.Scope.Name)
			<-ctx.Done()
			return nil
		},
	}
}

// Package cli implements the settingsctl commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config    string
	Store     string
	Path      string
	Domain    string
	Scope     string
	ScopeID   string
	Fallbacks []string
	Actor     string
	LogFile   string
	Verbose   bool
	Format    string

	logger   *slog.Logger
	closeLog io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidStores defines the accepted --store backends.
var ValidStores = []string{"memory", "sqlite", "toml", "yaml", "msgpack"}

// NewRootCommand creates the root command of settingsctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "settingsctl",
		Short: "Inspect and edit stored preferences",
		Long: `settingsctl loads the preferences record of one scope from a store,
reports what had to be repaired on load, and writes changes back.

Flags may also be set in settingsctl.yaml (or .toml) in the working directory
or the user config directory, or through SETTINGSCTL_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cmd, opts); err != nil {
				return err
			}
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidStores, opts.Store) {
				return fmt.Errorf("invalid store %q: must be one of %v", opts.Store, ValidStores)
			}
			logger, closer := newLogger(cmd.ErrOrStderr(), opts.LogFile, opts.Verbose)
			opts.logger = logger
			opts.closeLog = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Config, "config", "", "config file (default settingsctl.{yaml,toml})")
	flags.StringVar(&opts.Store, "store", "toml", "store backend (memory|sqlite|toml|yaml|msgpack)")
	flags.StringVar(&opts.Path, "path", "", "database file or file store root (default ./settings)")
	flags.StringVar(&opts.Domain, "domain", "preferences", "settings domain")
	flags.StringVar(&opts.Scope, "scope", "user", "scope to read and write (system|tenant|org|team|user)")
	flags.StringVar(&opts.ScopeID, "scope-id", "", "owner id of the scope")
	flags.StringSliceVar(&opts.Fallbacks, "fallback", nil, "weaker scopes to inherit from, as name[:id]")
	flags.StringVar(&opts.Actor, "actor", "", "actor id recorded in activity logs")
	flags.StringVar(&opts.LogFile, "log-file", "", "write logs to a rotated file instead of stderr")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewRecentCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewLayersCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// loadConfig layers the config file and environment under the flags.
func loadConfig(v *viper.Viper, cmd *cobra.Command, opts *RootOptions) error {
	v.SetEnvPrefix("SETTINGSCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if opts.Config != "" {
		v.SetConfigFile(opts.Config)
	} else {
		v.SetConfigName("settingsctl")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "settingsctl"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.Config != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	opts.Store = strings.ToLower(v.GetString("store"))
	opts.Path = v.GetString("path")
	opts.Domain = v.GetString("domain")
	opts.Scope = v.GetString("scope")
	opts.ScopeID = v.GetString("scope-id")
	opts.Fallbacks = v.GetStringSlice("fallback")
	opts.Actor = v.GetString("actor")
	opts.LogFile = v.GetString("log-file")
	opts.Verbose = v.GetBool("verbose")
	opts.Format = v.GetString("format")
	return nil
}

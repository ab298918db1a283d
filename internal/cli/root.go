package cli

import (
	"io"
	"strings"

	"itemstore/config"
	"itemstore/pkg/logger"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
}

// NewRootCommand creates the root command for the itemstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "itemstore",
		Short: "itemstore - a JSON item store over HTTP",
		Long: `itemstore keeps a single collection of named items in one persisted
document and serves create, read, update and delete over HTTP/JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))

	return cmd
}

// StoreFlags are the store overrides shared by serve and dump.
type StoreFlags struct {
	Backend  string
	DataFile string
}

func (f *StoreFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Backend, "backend", "", "store backend (file|postgres|sqlite), overrides STORE_BACKEND")
	cmd.Flags().StringVar(&f.DataFile, "data-file", "", "JSON document path for the file backend, overrides DATA_FILE")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(root *RootOptions, store StoreFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	if root.LogLevel != "" {
		cfg.LogLevel = root.LogLevel
	}
	if store.Backend != "" {
		backend := strings.ToLower(store.Backend)
		if err := config.ValidateBackend(backend); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --backend", err)
		}
		if backend == config.BackendPostgres && cfg.Store.DSN == "" {
			return nil, NewExitError(ExitCommandError, "postgres backend needs DATABASE_URL or DB_HOST and DB_NAME")
		}
		cfg.Store.Backend = backend
	}
	if store.DataFile != "" {
		cfg.Store.DataFile = store.DataFile
	}
	return cfg, nil
}

func initLogging(level string, w io.Writer) error {
	if err := logger.InitTo(level, w); err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	return nil
}

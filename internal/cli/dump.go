package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"itemstore/internal/item/model"
	"itemstore/internal/item/repository"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ValidDumpFormats defines the allowed dump output formats.
var ValidDumpFormats = []string{"json", "yaml"}

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Store  StoreFlags
	Format string
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the persisted collection",
		Long: `Print the persisted collection to stdout.

The store is read exactly as the server reads it, so a corrupt document is
reported rather than printed. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts)
		},
	}

	opts.Store.register(cmd)
	cmd.Flags().StringVar(&opts.Format, "format", "json", "output format (json|yaml)")

	return cmd
}

func runDump(cmd *cobra.Command, opts *DumpOptions) error {
	if !isValidDumpFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidDumpFormats))
	}

	cfg, err := loadConfig(opts.RootOptions, opts.Store)
	if err != nil {
		return err
	}
	if err := initLogging(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
		return err
	}

	ctx := cmd.Context()
	repo, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open store", err)
	}
	defer repo.Close()

	items, err := repo.Load(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load collection", err)
	}
	return writeCollection(cmd.OutOrStdout(), items, opts.Format)
}

func writeCollection(w io.Writer, items model.Collection, format string) error {
	var out []byte
	var err error
	switch format {
	case "yaml":
		out, err = yaml.Marshal(plain(items))
	default:
		out, err = repository.EncodeCollection(items)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode collection", err)
	}
	_, err = w.Write(out)
	return err
}

// plain converts decoded JSON into values yaml renders as numbers rather than
// quoted strings.
func plain(v any) any {
	switch t := v.(type) {
	case model.Collection:
		out := make([]any, len(t))
		for i, r := range t {
			out[i] = plain(r)
		}
		return out
	case model.Record:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func isValidDumpFormat(format string) bool {
	for _, f := range ValidDumpFormats {
		if f == format {
			return true
		}
	}
	return false
}

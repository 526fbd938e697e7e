package cmd

import (
	"fmt"

	"table-merger/core/config"
	"table-merger/core/logger"
	"table-merger/core/merge"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sizeCmd reports the on-disk size of tables.
var sizeCmd = &cobra.Command{
	Use:   "size <table>...",
	Short: "Print the total byte size of one or more tables",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSize,
}

func init() {
	RootCmd.AddCommand(sizeCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	fsys := afero.NewOsFs()
	for _, root := range args {
		n, err := merge.TableSize(fsys, root)
		if err != nil {
			return err
		}
		l.Info("Table size", zap.String("path", root), zap.Int64("bytes", n))
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", n, root)
	}
	return nil
}

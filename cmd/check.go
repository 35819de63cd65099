// mkgen check [graph]
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/qobs-build/mkgen/internal/builder"
	"github.com/qobs-build/mkgen/internal/msg"
)

var checkCmd = &cobra.Command{
	Use:   "check [graph file]",
	Short: "Fail if the generated makefiles are out of date",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b := newBuilder(graphArg(args))
		stale, err := b.Check(os.Stdout)
		if errors.Is(err, builder.ErrOutOfDate) {
			msg.Error("%d generated files are out of date, run %s gen to update them", len(stale), getProgramName())
			os.Exit(1)
		}
		if err != nil {
			msg.Fatal("%v", err)
		}
		msg.Info("makefiles in %s are up to date", b.Root())
	},
}

func init() {
	// mkgen check subcommand
	rootCmd.AddCommand(checkCmd)
}

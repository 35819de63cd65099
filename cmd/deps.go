// mkgen deps [graph]
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qobs-build/mkgen/internal/builder/gen"
	"github.com/qobs-build/mkgen/internal/msg"
)

func printDeps(w io.Writer, res *gen.Result) {
	for _, frag := range res.Fragments {
		fmt.Fprintf(w, "%s %s\n", color.HiCyanString(frag.Target.String()), color.HiBlackString(frag.Type.String()))
		iw := &msg.IndentWriter{W: w, Indent: "    "}
		output := frag.Output
		if output == "" {
			output = "(none)"
		}
		fmt.Fprintf(iw, "output:    %s\n", output)
		if len(frag.Deps) > 0 {
			fmt.Fprintf(iw, "deps:      %s\n", strings.Join(frag.Deps, " "))
		}
		if len(frag.LinkDeps) > 0 {
			fmt.Fprintf(iw, "links:     %s\n", strings.Join(frag.LinkDeps, " "))
		}
		if len(frag.Commands) > 0 {
			fmt.Fprintf(iw, "commands:  %s\n", strings.Join(frag.Commands, " "))
		}
		if len(frag.PublishedLinkDeps) > 0 {
			fmt.Fprintf(iw, "publishes: %s\n", strings.Join(frag.PublishedLinkDeps, " "))
		}
	}
}

var depsCmd = &cobra.Command{
	Use:   "deps [graph file]",
	Short: "Print the resolved outputs and link dependencies of every target",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		res, err := newBuilder(graphArg(args)).Plan()
		if err != nil {
			msg.Fatal("%v", err)
		}
		printDeps(os.Stdout, res)
	},
}

func init() {
	// mkgen deps subcommand
	rootCmd.AddCommand(depsCmd)
}

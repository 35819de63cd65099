// mkgen [graph], mkgen gen [graph]
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qobs-build/mkgen/internal/builder"
	"github.com/qobs-build/mkgen/internal/graph"
	"github.com/qobs-build/mkgen/internal/msg"
)

var (
	flagDepth    string
	flagSuffix   string
	flagGenFlags []string
	flagVerbose  bool
	flagProgress bool
	flagJobs     int
)

// graphArg returns the graph file named on the command line
func graphArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return graph.DefaultFile
}

func newBuilder(graphFile string) *builder.Builder {
	flags, err := parseGeneratorFlags(flagGenFlags)
	if err != nil {
		msg.Fatal("%v", err)
	}
	b, err := builder.NewBuilder(builder.Options{
		GraphFile: graphFile,
		Depth:     flagDepth,
		Suffix:    flagSuffix,
		Flags:     flags,
		Jobs:      flagJobs,
		Progress:  flagProgress,
	})
	if err != nil {
		msg.Fatal("%v", err)
	}
	return b
}

func doGen(cmd *cobra.Command, args []string) {
	b := newBuilder(graphArg(args))
	res, written, err := b.Generate()
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("generated %d makefiles in %s (%d changed)", len(res.Fragments)+1, b.Root(), written)
}

var rootCmd = &cobra.Command{
	Use:   "mkgen [graph file]",
	Short: "Generate GNU make build files from a target graph",
	Long: `mkgen reads a resolved target graph (` + graph.DefaultFile + ` by default) and writes
one makefile fragment per target plus a root Makefile that includes them all.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.SetVerbose(flagVerbose)
	},
	Run: doGen,
}

var genCmd = &cobra.Command{
	Use:   "gen [graph file]",
	Short: "Generate the makefiles",
	Long:  `Generate the makefiles. If no graph file is given, uses "` + graph.DefaultFile + `"`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doGen,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDepth, "depth", "", "Project root; every generated path is relative to it")
	pf.StringVarP(&flagSuffix, "suffix", "S", "", "Suffix appended to every generated file name")
	pf.StringArrayVarP(&flagGenFlags, "generator-flag", "G", nil, "Generator flag as name=value, e.g. output_dir=build (repeatable)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Print every file as it is generated")
	pf.BoolVar(&flagProgress, "progress", false, "Show a progress bar while writing files")
	pf.IntVarP(&flagJobs, "jobs", "j", 0, "Number of files written in parallel (default: number of CPUs)")

	// mkgen gen subcommand
	rootCmd.AddCommand(genCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

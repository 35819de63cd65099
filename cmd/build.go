// mkgen build [graph] [make targets...]
package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qobs-build/mkgen/internal/graph"
	"github.com/qobs-build/mkgen/internal/msg"
)

var flagConfig string

// splitBuildArgs separates an optional leading graph file from make targets
func splitBuildArgs(args []string) (string, []string) {
	if len(args) > 0 {
		switch filepath.Ext(args[0]) {
		case ".toml", ".yaml", ".yml", ".json":
			return args[0], args[1:]
		}
	}
	return graph.DefaultFile, args
}

var buildCmd = &cobra.Command{
	Use:   "build [graph file] [make targets...]",
	Short: "Generate the makefiles and run make",
	Long: `Generate the makefiles and run make in the project root. Arguments after
the graph file are passed to make as goals, e.g. "mkgen build app".`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		graphFile, targets := splitBuildArgs(args)
		if err := newBuilder(graphFile).Build(flagConfig, targets); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// mkgen build subcommand
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Configuration to build (BUILDTYPE), defaults to the graph's default")
}

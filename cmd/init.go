// mkgen init [name]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qobs-build/mkgen/internal/graph"
	"github.com/qobs-build/mkgen/internal/msg"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "mkgen"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

const sampleConfigurations = `
[targets."src/%[1]s.gyp:%[1]s".configurations.Debug]
defines = ["DEBUG"]
cflags = ["-g", "-Wall"]
include_dirs = ["."]

[targets."src/%[1]s.gyp:%[1]s".configurations.Release]
defines = ["NDEBUG"]
cflags = ["-O2", "-Wall"]
include_dirs = ["."]
`

// initIn writes a sample graph and sources for a target of type typ into dir
func initIn(dir, name string, typ graph.TargetType) {
	mkdir(dir, "src")

	if typ == graph.Executable {
		writefile(fmt.Sprintf(`root = "."

[targets."src/%[1]s.gyp:%[1]s"]
type = "executable"
sources = ["**/*.c"]
default_configuration = "Debug"
`+sampleConfigurations, name), dir, graph.DefaultFile)

		writefile(`#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "src", "main.c")
	} else {
		writefile(fmt.Sprintf(`root = "."

[targets."src/%[1]s.gyp:%[1]s"]
type = "%[2]s"
sources = ["hello_world.c"]
default_configuration = "Debug"
`+sampleConfigurations, name, typ), dir, graph.DefaultFile)

		writefile(`#include <stdio.h>
#include "hello_world.h"

void hello_world(void) {
    puts("Hello, World!");
}
`, dir, "src", "hello_world.c")

		writefile(`#ifndef HELLOWORLD_H
#define HELLOWORLD_H

#ifdef __cplusplus
extern "C" {
#endif

void hello_world(void);

#ifdef __cplusplus
} // extern "C"
#endif

#endif
`, dir, "src", "hello_world.h")
	}

	writefile(`out/
`, dir, ".gitignore")

	programName := getProgramName()
	graphFile := filepath.ToSlash(filepath.Join(dir, graph.DefaultFile))
	fmt.Printf("You can now do %s to generate makefiles, or %s to generate and build.\n",
		color.HiCyanString(programName+" "+graphFile), color.HiCyanString(programName+" build "+graphFile))
}

var flagType = NewEnumValue(graph.Executable.String(), map[string]string{
	graph.Executable.String():    "A program (default)",
	graph.StaticLibrary.String(): "An archive other targets link against",
	graph.SharedLibrary.String(): "A shared object other targets link against",
})

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a sample target graph in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typ, err := graph.ParseTargetType(flagType.Value())
		if err != nil {
			msg.Fatal("%v", err)
		}
		initIn(".", args[0], typ)
	},
}

func init() {
	// mkgen init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().VarP(&flagType, "type", "t", "Type of the sample target, one of "+flagType.HelpString())
	initCmd.RegisterFlagCompletionFunc("type", flagType.CompletionFunc())
}

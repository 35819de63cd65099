package builder

import (
	"os"
	"os/exec"
)

// The generated makefiles pass gcc-style flags (-MMD, -Wl,--start-group), so
// only drivers that understand them are considered.
var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc"}
	commonCxxCompilers = []string{"clang++", "g++", "icpx", "icpc"}
)

var lookPath = exec.LookPath

// findCompiler returns the C or C++ compiler to bake into the root makefile,
// or "" to leave make's default in place
func findCompiler(needCxx bool) string {
	env, candidates := "CC", commonCCompilers
	if needCxx {
		env, candidates = "CXX", commonCxxCompilers
	}
	if compiler := os.Getenv(env); compiler != "" {
		return compiler
	}

	for _, compiler := range candidates {
		path, err := lookPath(compiler)
		if err == nil {
			return path
		}
	}
	return ""
}

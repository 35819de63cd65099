package builder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/qobs-build/mkgen/internal/builder/gen"
	"github.com/qobs-build/mkgen/internal/graph"
	"github.com/qobs-build/mkgen/internal/msg"
)

// ErrOutOfDate is returned by Check when a generated file differs from what
// would be generated now
var ErrOutOfDate = zerr.New("generated makefiles are out of date")

// Generator flags understood by the make backend
const (
	FlagOutputDir       = "output_dir"
	FlagDetectCompilers = "detect_compilers"
)

type Options struct {
	GraphFile string
	Depth     string            // project root, inferred when empty
	Suffix    string            // appended to every generated file name
	Flags     map[string]string // generator flags
	Jobs      int               // parallel file writes, NumCPU when <= 0
	Progress  bool
}

type Builder struct {
	opts  Options
	root  string
	graph *graph.Graph
}

// NewBuilder loads the graph file and settles the project root
func NewBuilder(opts Options) (*Builder, error) {
	graphFile, err := filepath.Abs(opts.GraphFile)
	if err != nil {
		return nil, err
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}

	g, err := graph.Load(graphFile, graph.NewEnv(filepath.Dir(graphFile), opts.Flags))
	if err != nil {
		return nil, err
	}

	root, err := FindRoot(opts.Depth, g.Root, graphFile)
	if err != nil {
		return nil, err
	}
	g.Root = root
	msg.Verbose("project root is %s", root)

	if err := g.ExpandGlobs(); err != nil {
		return nil, err
	}
	return &Builder{opts: opts, root: root, graph: g}, nil
}

func (b *Builder) Root() string { return b.root }

func (b *Builder) Graph() *graph.Graph { return b.graph }

// Plan runs the generator over the whole graph without touching the disk
func (b *Builder) Plan() (*gen.Result, error) {
	opts := gen.Options{
		Root:      ".",
		OutputDir: b.opts.Flags[FlagOutputDir],
		Suffix:    b.opts.Suffix,
	}
	if detect, _ := strconv.ParseBool(b.opts.Flags[FlagDetectCompilers]); detect {
		opts.CC, opts.CXX = findCompiler(false), findCompiler(true)
		msg.Verbose("using CC=%q CXX=%q", opts.CC, opts.CXX)
	}

	res, err := gen.New(opts).Generate(b.graph.Ordered())
	if err != nil {
		return nil, fmt.Errorf("failed to generate makefiles: %w", err)
	}
	return res, nil
}

type renderedFile struct {
	path    string
	content []byte
}

// render returns the files of res, fragments first and the root makefile last
func (b *Builder) render(res *gen.Result) []renderedFile {
	files := make([]renderedFile, 0, len(res.Fragments)+1)
	for _, frag := range res.Fragments {
		files = append(files, renderedFile{
			path:    filepath.Join(b.root, filepath.FromSlash(frag.Path)),
			content: []byte(frag.Render()),
		})
	}
	return append(files, renderedFile{
		path:    filepath.Join(b.root, filepath.FromSlash(res.Root.Path)),
		content: []byte(res.Root.Render()),
	})
}

// Generate writes the makefiles of the whole graph and returns how many files changed
func (b *Builder) Generate() (*gen.Result, int, error) {
	res, err := b.Plan()
	if err != nil {
		return nil, 0, err
	}
	written, err := b.commit(b.render(res))
	if err != nil {
		return nil, 0, err
	}
	return res, written, nil
}

func sameContent(path string, content []byte) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return false
	}
	return hasher.Sum64() == xxhash.Sum64(content)
}

// commit writes every file to a temporary file next to its destination and
// renames them into place only after all of them were written. Files whose
// content did not change keep their modification time.
func (b *Builder) commit(files []renderedFile) (int, error) {
	temps := make([]string, len(files))

	var bar *msg.ProgressBar
	if b.opts.Progress {
		bar = msg.NewProgressBar(int64(len(files)), 0, "Writing", os.Stdout)
	}

	var eg errgroup.Group
	eg.SetLimit(b.opts.Jobs)
	for i, file := range files {
		eg.Go(func() error {
			if bar != nil {
				defer bar.Increment()
			}
			if sameContent(file.path, file.content) {
				return nil
			}
			tmp, err := writeTemp(file)
			temps[i] = tmp
			return err
		})
	}

	removeTemps := func() {
		for _, tmp := range temps {
			if tmp != "" {
				os.Remove(tmp)
			}
		}
	}
	if err := eg.Wait(); err != nil {
		removeTemps()
		return 0, err
	}
	if bar != nil {
		bar.Finish()
	}

	written := 0
	for i, file := range files {
		if temps[i] == "" {
			continue
		}
		if err := os.Rename(temps[i], file.path); err != nil {
			removeTemps()
			return written, fmt.Errorf("failed to move %s into place: %w", file.path, err)
		}
		temps[i] = ""
		written++
		msg.Verbose("wrote %s", file.path)
	}
	return written, nil
}

func writeTemp(file renderedFile) (string, error) {
	dir := filepath.Dir(file.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", file.path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(file.path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for %s: %w", file.path, err)
	}
	_, err = tmp.Write(file.content)
	if err == nil {
		err = tmp.Chmod(0644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return tmp.Name(), fmt.Errorf("failed to write %s: %w", file.path, err)
	}
	return tmp.Name(), nil
}

// Check regenerates everything in memory and reports every file that differs
// from what is on disk, with a line diff written to w
func (b *Builder) Check(w io.Writer) ([]string, error) {
	res, err := b.Plan()
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, file := range b.render(res) {
		existing, err := os.ReadFile(file.path)
		missing := errors.Is(err, os.ErrNotExist)
		if err != nil && !missing {
			return nil, err
		}
		if !missing && string(existing) == string(file.content) {
			continue
		}

		rel, _ := filepath.Rel(b.root, file.path)
		stale = append(stale, rel)
		if missing {
			fmt.Fprintf(w, "%s: missing\n", rel)
			continue
		}
		fmt.Fprintf(w, "%s:\n", rel)
		writeLineDiff(&msg.IndentWriter{W: w, Indent: "    "}, string(existing), string(file.content))
	}

	if len(stale) > 0 {
		err := zerr.Wrap(ErrOutOfDate, strings.Join(stale, ", "))
		return stale, zerr.With(err, "files", stale)
	}
	return nil, nil
}

func writeLineDiff(w io.Writer, before, after string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			fmt.Fprint(w, prefix, strings.TrimSuffix(line, "\n"), "\n")
		}
	}
}

// Build generates the makefiles and runs make in the project root
func (b *Builder) Build(config string, targets []string) error {
	if _, _, err := b.Generate(); err != nil {
		return err
	}

	args := []string{"-C", b.root, "-j", strconv.Itoa(b.opts.Jobs)}
	if b.opts.Suffix != "" {
		args = append(args, "-f", "Makefile"+b.opts.Suffix)
	}
	if config != "" {
		args = append(args, "BUILDTYPE="+config)
	}
	if msg.IsVerbose() {
		args = append(args, "V=1")
	}
	args = append(args, targets...)

	cmd := exec.Command("make", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the graph file looked up when none is given
const DefaultFile = "mkgen.toml"

type fileSection struct {
	Root  string   `toml:"root"`
	Order []string `toml:"order"`
}

type configurationSection struct {
	Defines     []string `toml:"defines"`
	Cflags      []string `toml:"cflags"`
	CflagsC     []string `toml:"cflags_c"`
	CflagsCC    []string `toml:"cflags_cc"`
	IncludeDirs []string `toml:"include_dirs"`
	Ldflags     []string `toml:"ldflags"`
	Libraries   []string `toml:"libraries"`
}

type actionSection struct {
	Name                    string   `toml:"action_name"`
	Inputs                  []string `toml:"inputs"`
	Outputs                 []string `toml:"outputs"`
	Action                  []string `toml:"action"`
	Message                 string   `toml:"message"`
	ProcessOutputsAsSources bool     `toml:"process_outputs_as_sources"`
}

type ruleSection struct {
	Name                    string   `toml:"rule_name"`
	Extension               string   `toml:"extension"`
	Sources                 []string `toml:"rule_sources"`
	Outputs                 []string `toml:"outputs"`
	Inputs                  []string `toml:"inputs"`
	Action                  []string `toml:"action"`
	Message                 string   `toml:"message"`
	ProcessOutputsAsSources bool     `toml:"process_outputs_as_sources"`
}

type copySection struct {
	Destination string   `toml:"destination"`
	Files       []string `toml:"files"`
}

// TargetSection defines one [targets."file:name"] table
type TargetSection struct {
	Type                 string                          `toml:"type"`
	Sources              []string                        `toml:"sources"`
	Dependencies         []string                        `toml:"dependencies"`
	Libraries            []string                        `toml:"libraries"`
	DefaultConfiguration string                          `toml:"default_configuration"`
	ProductName          string                          `toml:"product_name"`
	ProductDir           string                          `toml:"product_dir"`
	Configurations       map[string]configurationSection `toml:"configurations"`
	Actions              []actionSection                 `toml:"actions"`
	Rules                []ruleSection                   `toml:"rules"`
	Copies               []copySection                   `toml:"copies"`
}

// mergeStructs merges the fields of the src struct into the dst struct
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

// remarshal decodes a generic map into dst by a TOML round trip, so every input
// format ends up going through the same struct tags
func remarshal(data any, dst any) error {
	b, err := toml.Marshal(data)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, dst)
}

// unmarshalConditionalSection parses one table whose sub-tables may be keyed by
// boolean expressions; those are merged into dst when they evaluate to true
func unmarshalConditionalSection[T any](section map[string]any, name string, dst *T, env Env) error {
	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range section {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env), expr.AsBool()); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := remarshal(baseFields, dst); err != nil {
			return fmt.Errorf("failed to parse [%s]: %w", name, err)
		}
	}

	// sorted so that scalar overrides apply in a stable order
	expressions := make([]string, 0, len(conditionalFields))
	for expression := range conditionalFields {
		expressions = append(expressions, expression)
	}
	slices.Sort(expressions)

	for _, expression := range expressions {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := remarshal(conditionalFields[expression], &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the decoded data and evaluates expressions in strings
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// decodeFile reads the graph file into a generic map, picking the decoder by extension
func decodeFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, &raw); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				return nil, fmt.Errorf("parse %s:\n%s", path, derr.String())
			}
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}

// Load parses a graph file. Relative roots are resolved against the file's
// directory; Root stays empty when the file does not declare one.
func Load(path string, env Env) (*Graph, error) {
	raw, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	processed, err := processExpressions(raw, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in %s: %w", path, err)
	}
	raw = processed.(map[string]any)

	var file fileSection
	top := make(map[string]any)
	for _, key := range []string{"root", "order"} {
		if v, ok := raw[key]; ok {
			top[key] = v
		}
	}
	if err := remarshal(top, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	g := &Graph{
		Targets: make(map[QualifiedName]*Target),
		Flags:   env.Flags,
	}
	if file.Root != "" {
		g.Root = file.Root
		if !filepath.IsAbs(g.Root) {
			g.Root = filepath.Join(filepath.Dir(path), g.Root)
		}
	}

	var sections map[string]any
	if v, ok := raw["targets"]; ok {
		if sections, ok = v.(map[string]any); !ok {
			return nil, fmt.Errorf("invalid [targets] in %s: expected a table", path)
		}
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		section, ok := sections[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid [targets.%q]: expected a table", name)
		}
		var ts TargetSection
		if err := unmarshalConditionalSection(section, "targets."+name, &ts, env); err != nil {
			return nil, err
		}
		t, err := ts.toTarget(name)
		if err != nil {
			return nil, err
		}
		g.Targets[t.Name] = t
	}

	if len(file.Order) > 0 {
		if g.Order, err = explicitOrder(g, file.Order); err != nil {
			return nil, err
		}
	} else if g.Order, err = Sort(g); err != nil {
		return nil, err
	}

	return g, nil
}

func (ts TargetSection) toTarget(name string) (*Target, error) {
	qname, err := ParseQualifiedName(name)
	if err != nil {
		return nil, err
	}
	typ, err := ParseTargetType(ts.Type)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", name, err)
	}

	t := &Target{
		Name:                 qname,
		Type:                 typ,
		ProductName:          ts.ProductName,
		ProductDir:           ts.ProductDir,
		Sources:              ts.Sources,
		Libraries:            ts.Libraries,
		DefaultConfiguration: ts.DefaultConfiguration,
		Configurations:       make(map[string]Configuration, len(ts.Configurations)),
	}
	if t.DefaultConfiguration == "" {
		t.DefaultConfiguration = "Default"
	}

	for _, dep := range ts.Dependencies {
		dq, err := ParseQualifiedName(dep)
		if err != nil {
			return nil, fmt.Errorf("target %s: dependency: %w", name, err)
		}
		t.Dependencies = append(t.Dependencies, dq)
	}
	for cname, c := range ts.Configurations {
		t.Configurations[cname] = Configuration{
			Defines:     c.Defines,
			Cflags:      c.Cflags,
			CflagsC:     c.CflagsC,
			CflagsCC:    c.CflagsCC,
			IncludeDirs: c.IncludeDirs,
			Ldflags:     c.Ldflags,
			Libraries:   c.Libraries,
		}
	}
	for _, a := range ts.Actions {
		t.Actions = append(t.Actions, Action{
			Name:                    a.Name,
			Inputs:                  a.Inputs,
			Outputs:                 a.Outputs,
			Invocation:              a.Action,
			Message:                 a.Message,
			ProcessOutputsAsSources: a.ProcessOutputsAsSources,
		})
	}
	for _, r := range ts.Rules {
		t.Rules = append(t.Rules, Rule{
			Name:                    r.Name,
			Extension:               r.Extension,
			Sources:                 r.Sources,
			Outputs:                 r.Outputs,
			Inputs:                  r.Inputs,
			Invocation:              r.Action,
			Message:                 r.Message,
			ProcessOutputsAsSources: r.ProcessOutputsAsSources,
		})
	}
	for _, c := range ts.Copies {
		t.Copies = append(t.Copies, Copy{Destination: c.Destination, Files: c.Files})
	}

	return t, nil
}

// Env is what expressions in a graph file can see
type Env struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	Flags      map[string]string `expr:"flags"`
	basedir    string
}

// NewEnv builds the expression environment for a graph file in basedir
func NewEnv(basedir string, flags map[string]string) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}
	if flags == nil {
		flags = make(map[string]string)
	}

	return Env{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		Flags:      flags,
		basedir:    basedir,
	}
}

// ReadFile returns the trimmed contents of a file below the graph file's directory
func (env Env) ReadFile(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is outside of %q", path, env.basedir)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

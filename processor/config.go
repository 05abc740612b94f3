package processor

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
)

// OutputFactory is a function that creates a writer to an output for the
// given location. Output factories typically use os.OpenFile to create files
// but this function allows the behavior to be customized.
type OutputFactory func(path string) (io.WriteCloser, error)

// DefaultOutputFactory returns the default OutputFactory used by Process and
// ProcessAll. If the given rootDir is blank, the file is placed in the
// directory of the module that owns the output's import path. Otherwise the
// actual full path will be <rootDir>/src/<path> (note the implicit "src" path
// element, just like when looking for sources in GOPATH).
//
// After computing the destination path, os.OpenFile is used to open the file
// for writing (creating the file if necessary, truncating it if it already
// exists).
func DefaultOutputFactory(rootDir string) OutputFactory {
	var mods moduleDirs
	return func(p string) (io.WriteCloser, error) {
		pkgPath := path.Dir(p)
		var dest string
		if rootDir != "" {
			dest = filepath.Join(rootDir, "src", filepath.FromSlash(pkgPath))
		} else {
			var err error
			if dest, err = mods.dirFor(pkgPath); err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(dest, os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "could not create output directory %s", dest)
		}
		dest = filepath.Join(dest, path.Base(p))
		return os.OpenFile(dest, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0666)
	}
}

// moduleDirs resolves import paths to directories through the modules that
// own them. The generated package usually does not exist yet, so parents of
// the import path are tried until one can be loaded.
type moduleDirs struct {
	mu   sync.Mutex
	mods map[string]string // module path -> dir
}

func (m *moduleDirs) dirFor(pkgPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dir, ok := m.lookup(pkgPath); ok {
		return dir, nil
	}
	for p := pkgPath; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		pkgs, err := packages.Load(&packages.Config{Mode: packages.NeedName | packages.NeedModule}, p)
		if err != nil || len(pkgs) == 0 || pkgs[0].Module == nil || pkgs[0].Module.Dir == "" {
			continue
		}
		m.add(pkgs[0].Module)
		if dir, ok := m.lookup(pkgPath); ok {
			return dir, nil
		}
	}
	return "", errors.Errorf("could not determine output directory for package %q", pkgPath)
}

func (m *moduleDirs) add(mod *packages.Module) {
	if m.mods == nil {
		m.mods = map[string]string{}
	}
	m.mods[mod.Path] = mod.Dir
}

func (m *moduleDirs) lookup(pkgPath string) (string, bool) {
	best := ""
	for modPath := range m.mods {
		if (pkgPath == modPath || strings.HasPrefix(pkgPath, modPath+"/")) && len(modPath) > len(best) {
			best = modPath
		}
	}
	if best == "" {
		return "", false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(pkgPath, best), "/")
	return filepath.Join(m.mods[best], filepath.FromSlash(rel)), true
}

// ProcessAll invokes all registered generators to process the given packages.
// If the given outputDir is blank, output goes into the module that contains
// the target application package.
func ProcessAll(patterns []string, opts Options, includeTests bool, outputDir string) error {
	return Process(patterns, opts, includeTests, outputDir, AllRegisteredGenerators()...)
}

// Process invokes the given generators to process the given packages.
func Process(patterns []string, opts Options, includeTests bool, outputDir string, gens ...Generator) error {
	cfg := Config{
		Patterns:      patterns,
		IncludeTests:  includeTests,
		Options:       opts,
		Generators:    gens,
		OutputFactory: DefaultOutputFactory(outputDir),
	}
	return cfg.Execute()
}

// Config represents the configuration for running one or more Generators.
// Callers should configure the exported fields and then call the Execute
// method to actually invoke the generators.
type Config struct {
	// Patterns are the package patterns to load, as accepted by go list.
	Patterns []string
	// Dir is the directory the patterns are resolved in. Defaults to the
	// current directory.
	Dir          string
	IncludeTests bool
	Options      Options
	Generators   []Generator
	// OutputFactory opens output files. Defaults to DefaultOutputFactory("").
	OutputFactory OutputFactory
	// Messager receives diagnostics. Defaults to the standard logrus logger.
	Messager Messager
	// Fragments is the fragment cache shared by processors of the same kind.
	// A host that executes more than once should set it, so that fragments
	// outlive a single execution. Ignored for ScopeInstance.
	Fragments     *FragmentCache
	FragmentScope FragmentScope
}

// Load loads the configured packages and creates their root elements.
func (cfg *Config) Load() ([]*packages.Package, []*Element, error) {
	messager := cfg.messager()
	pkgs, err := packages.Load(&packages.Config{
		Mode:  LoadMode,
		Dir:   cfg.Dir,
		Tests: cfg.IncludeTests,
	}, cfg.Patterns...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading packages")
	}
	if err := describePackageErrors(pkgs, messager); err != nil {
		return nil, nil, err
	}
	pkgs = selectVariants(pkgs)
	roots, err := LoadElements(pkgs, messager)
	if err != nil {
		return nil, nil, err
	}
	return pkgs, roots, nil
}

// Execute loads the configured packages and runs the configured generators
// over them. Every generator gets its own Processor which sees two rounds:
// the first with all root elements, and the terminal round with none.
//
// Errors are returned as soon as they occur. Rounds that generators report as
// failed do not stop processing; they are returned together, as a
// *RoundFailure, after the terminal round.
func (cfg *Config) Execute() error {
	pkgs, roots, err := cfg.Load()
	if err != nil {
		return err
	}
	return cfg.ExecuteElements(pkgs, roots)
}

// ExecuteElements is like Execute, but runs the generators over roots that
// were already loaded. The pkgs are only made available to generators and may
// be nil.
func (cfg *Config) ExecuteElements(pkgs []*packages.Package, roots []*Element) error {
	procs, err := cfg.newProcessors()
	if err != nil {
		return err
	}
	output := cfg.OutputFactory
	if output == nil {
		output = DefaultOutputFactory("")
	}
	env := &Environment{
		Options:       cfg.Options,
		Messager:      cfg.messager(),
		OutputFactory: output,
		Packages:      pkgs,
	}
	for _, proc := range procs {
		if err := proc.Init(env); err != nil {
			return errors.Wrapf(err, "initializing %s", proc.Kind())
		}
	}

	var failures []FailedRound
	rounds := []RoundEnvironment{NewRound(1, roots, false), NewRound(2, nil, true)}
	for _, r := range rounds {
		present := markersPresent(r.RootElements())
		for _, proc := range procs {
			ok, err := proc.Process(present.intersect(proc.supported), r)
			if err != nil {
				return err
			}
			if !ok {
				failures = append(failures, FailedRound{Kind: proc.Kind(), Round: r.Number()})
			}
		}
	}
	if len(failures) > 0 {
		return &RoundFailure{Failures: failures}
	}
	return nil
}

func (cfg *Config) messager() Messager {
	if cfg.Messager == nil {
		cfg.Messager = NewLogMessager(nil)
	}
	return cfg.Messager
}

func (cfg *Config) newProcessors() ([]*Processor, error) {
	if cfg.Fragments == nil && cfg.FragmentScope == ScopeKind {
		cfg.Fragments = NewFragmentCache()
	}
	seen := map[string]struct{}{}
	procs := make([]*Processor, 0, len(cfg.Generators))
	for _, gen := range cfg.Generators {
		kind := gen.Kind()
		if _, ok := seen[kind]; ok {
			return nil, errors.Errorf("generator kind %q configured more than once", kind)
		}
		seen[kind] = struct{}{}
		var opts []ProcessorOption
		if cfg.FragmentScope == ScopeKind {
			opts = append(opts, WithFragmentCache(cfg.Fragments))
		}
		procs = append(procs, NewProcessor(gen, opts...))
	}
	return procs, nil
}

type markerSet map[string]struct{}

// markersPresent returns the identities of all markers on the given roots and
// their members.
func markersPresent(roots []*Element) markerSet {
	set := markerSet{}
	for _, root := range roots {
		for _, m := range root.Markers {
			set[m.Type] = struct{}{}
		}
		for _, member := range root.Members {
			for _, m := range member.Markers {
				set[m.Type] = struct{}{}
			}
		}
	}
	return set
}

// intersect returns the entries of supported that are in the set, in the
// order of supported.
func (s markerSet) intersect(supported []string) []string {
	var res []string
	for _, m := range supported {
		if _, ok := s[m]; ok {
			res = append(res, m)
		}
	}
	return res
}

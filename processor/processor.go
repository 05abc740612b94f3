package processor

import (
	"sync"

	"github.com/jhump/gopoet"
	"golang.org/x/tools/go/packages"
)

// Generator decides what code to emit for marked members. It is the strategy
// plugged into a Processor, which runs the rounds and calls the hooks.
//
// Hooks report a failed round by returning false; the host then treats the
// whole round as failed but keeps running. A non-nil error is fatal and
// aborts processing.
type Generator interface {
	// Kind identifies the generator. It names the generator in diagnostics
	// and file headers and keys its fragment cache segment, so it must be
	// unique among the generators run together.
	Kind() string
	// SupportedMarkers returns the qualified marker identities the generator
	// handles. It is queried once, when the processor is created.
	SupportedMarkers() []string
	// OnProcess is called for every round with the round's tasks and the
	// supported markers present in the round.
	OnProcess(tasks *TaskMap, markers []string, ctx *Context) (bool, error)
	// OnProcessingOver is additionally called, after OnProcess, in the
	// terminal round.
	OnProcessingOver(tasks *TaskMap, markers []string, ctx *Context) (bool, error)
}

// Initializer is implemented by generators that need to run code once the
// processor has captured the host's services.
type Initializer interface {
	Init(ctx *Context) error
}

// RoundEnvironment describes one round of processing.
type RoundEnvironment interface {
	// Number is the 1-based number of the round.
	Number() int
	// RootElements returns the top-level elements of the round, in the
	// order the host discovered them.
	RootElements() []*Element
	// ProcessingOver returns true for the terminal round.
	ProcessingOver() bool
}

type round struct {
	number int
	roots  []*Element
	over   bool
}

// NewRound returns a RoundEnvironment with the given roots.
func NewRound(number int, roots []*Element, over bool) RoundEnvironment {
	return &round{number: number, roots: roots, over: over}
}

func (r *round) Number() int              { return r.number }
func (r *round) RootElements() []*Element { return r.roots }
func (r *round) ProcessingOver() bool     { return r.over }

// Environment holds the services a host provides to processors.
type Environment struct {
	// Options are the host's key-value options.
	Options Options
	// Messager receives diagnostics. If nil, diagnostics are logged with
	// the standard logrus logger.
	Messager Messager
	// OutputFactory opens output files. It is required for writing files.
	OutputFactory OutputFactory
	// Packages are the loaded packages, for generators that need to inspect
	// more than the elements of a round. May be nil.
	Packages []*packages.Package
}

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateProcessing
	stateFinalized
)

// Processor runs a Generator through the rounds of one execution. It captures
// the host's services on Init and then builds the task map for each round
// before handing it to the generator's hooks.
type Processor struct {
	gen       Generator
	kind      string
	supported []string
	fragments *FragmentSegment
	factory   FragmentFactoryFunc

	mu      sync.Mutex
	state   state
	env     Environment
	filter  *NamespaceFilter
	emitter *Emitter
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithFragmentCache makes the processor use the segment of the given cache
// that belongs to its kind. Processors of the same kind given the same cache
// share fragments.
func WithFragmentCache(cache *FragmentCache) ProcessorOption {
	return func(p *Processor) {
		p.fragments = cache.Segment(p.kind)
	}
}

// NewProcessor creates a processor for the given generator. Without
// WithFragmentCache the processor gets a private fragment cache.
func NewProcessor(gen Generator, opts ...ProcessorOption) *Processor {
	p := &Processor{gen: gen, kind: gen.Kind()}
	seen := map[string]struct{}{}
	for _, m := range gen.SupportedMarkers() {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		p.supported = append(p.supported, m)
	}
	p.factory = generatorFactory(p.kind, gen)
	for _, opt := range opts {
		opt(p)
	}
	if p.fragments == nil {
		p.fragments = NewFragmentCache().Segment(p.kind)
	}
	return p
}

// Kind returns the generator's kind.
func (p *Processor) Kind() string {
	return p.kind
}

// SupportedMarkers returns the marker identities the generator supports,
// without duplicates.
func (p *Processor) SupportedMarkers() []string {
	return append([]string(nil), p.supported...)
}

// Fragments returns the processor's fragment cache segment.
func (p *Processor) Fragments() *FragmentSegment {
	return p.fragments
}

// Init captures the host's services and runs the generator's init hook. It
// may be called only once; later calls return ErrAlreadyInitialized.
func (p *Processor) Init(env *Environment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateUninitialized {
		return ErrAlreadyInitialized
	}
	p.env = *env
	if p.env.Messager == nil {
		p.env.Messager = NewLogMessager(nil)
	}
	p.env.Messager = kindMessager{kind: p.kind, Messager: p.env.Messager}
	p.filter = NewNamespaceFilter(p.env.Options)
	header := DefaultFileHeader(p.kind)
	if hp, ok := p.gen.(HeaderProvider); ok {
		header = hp.FileHeader()
	}
	p.emitter = NewEmitter(p.kind, header, p.filter.opts, p.env.OutputFactory, p.env.Messager)

	if in, ok := p.gen.(Initializer); ok {
		if err := in.Init(p.newContext(nil, nil)); err != nil {
			return err
		}
	}
	p.state = stateInitialized
	printf(p.env.Messager, Note, "Annotation Preprocessor: %s Initialized", p.kind)
	return nil
}

// Process runs one round. It builds the round's task map and calls the
// generator's OnProcess hook; in the terminal round, if OnProcess succeeded,
// it also calls OnProcessingOver and combines both results. A false result
// means the generator reported the round as failed.
func (p *Processor) Process(markers []string, r RoundEnvironment) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case stateUninitialized:
		return false, ErrNotInitialized
	case stateFinalized:
		return false, ErrFinalized
	}
	p.state = stateProcessing

	tasks, err := CollectTasks(r.RootElements(), p.supported, p.filter)
	if err != nil {
		return false, err
	}
	ctx := p.newContext(r, markers)
	ok, err := p.gen.OnProcess(tasks, markers, ctx)
	if err != nil {
		return false, err
	}
	if !r.ProcessingOver() {
		return ok, nil
	}
	p.state = stateFinalized
	if !ok {
		return false, nil
	}
	return p.gen.OnProcessingOver(tasks, markers, ctx)
}

func (p *Processor) newContext(r RoundEnvironment, markers []string) *Context {
	return &Context{Round: r, Markers: markers, proc: p}
}

// Context is the environment of a hook call. It gives generators access to
// the round, the host's services, the fragment cache and the output emitter.
type Context struct {
	// Round is the current round; nil during Init.
	Round RoundEnvironment
	// Markers are the supported markers present in the round.
	Markers []string

	proc *Processor
}

// Kind returns the kind of the generator being run.
func (c *Context) Kind() string {
	return c.proc.kind
}

// Options returns the host's options.
func (c *Context) Options() Options {
	return c.proc.filter.opts
}

// Messager returns the diagnostic sink.
func (c *Context) Messager() Messager {
	return c.proc.env.Messager
}

// Packages returns the packages loaded by the host, if any.
func (c *Context) Packages() []*packages.Package {
	return c.proc.env.Packages
}

// Printf reports a diagnostic of the given kind.
func (c *Context) Printf(kind DiagnosticKind, format string, args ...interface{}) {
	printf(c.proc.env.Messager, kind, format, args...)
}

// Fragments returns the fragments cached for tag, creating them with the
// generator's CreateFragments on first use. The returned list is a copy.
func (c *Context) Fragments(tag string) (Fragments, error) {
	return copyFragments(c.proc.fragments.GetOrCreate(tag, nil, c.proc.factory))
}

// FragmentsFor returns the fragments cached for tag, creating them with the
// generator's CreateContextFragments for the given element on first use. The
// cache is keyed by tag only: the element of the first call wins.
func (c *Context) FragmentsFor(tag string, el *Element) (Fragments, error) {
	return copyFragments(c.proc.fragments.GetOrCreate(tag, el, c.proc.factory))
}

func copyFragments(frags Fragments, err error) (Fragments, error) {
	if err != nil {
		return nil, err
	}
	return append(Fragments{}, frags...), nil
}

// NewOutputFile creates an empty output file in the generated package.
func (c *Context) NewOutputFile(fileName string) (*gopoet.GoFile, error) {
	return c.proc.emitter.NewFile(fileName)
}

// OutputPackage returns the import path of the generated package.
func (c *Context) OutputPackage() (string, error) {
	return c.proc.emitter.OutputPackage()
}

// Write writes an output file created with NewOutputFile.
func (c *Context) Write(file *gopoet.GoFile) error {
	return c.proc.emitter.Write(file)
}

// TargetSymbol returns a reference to the given root element, for use in
// generated code.
func (c *Context) TargetSymbol(el *Element) gopoet.Symbol {
	return gopoet.NewPackage(el.Package).Symbol(el.Name)
}

// ErrorPrompt returns the @pregen.ErrorPrompt message of the element, or def.
func (c *Context) ErrorPrompt(el *Element, def string) string {
	return ErrorPromptFor(el, def)
}

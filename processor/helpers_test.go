package processor

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/jhump/gopoet"

	"github.com/kenvix/pregen"
)

const testMarker = "example.com/markers.Gen"

type message struct {
	kind DiagnosticKind
	msg  string
}

type recordingMessager struct {
	mu   sync.Mutex
	msgs []message
}

func (m *recordingMessager) PrintMessage(kind DiagnosticKind, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, message{kind: kind, msg: msg})
}

func (m *recordingMessager) messages(kind DiagnosticKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []string
	for _, msg := range m.msgs {
		if msg.kind == kind {
			res = append(res, msg.msg)
		}
	}
	return res
}

type memFile struct {
	bytes.Buffer
	out  *memOutput
	path string
}

func (f *memFile) Close() error {
	f.out.mu.Lock()
	defer f.out.mu.Unlock()
	f.out.files[f.path] = f.String()
	return nil
}

type memOutput struct {
	mu    sync.Mutex
	files map[string]string
	opens int
}

func newMemOutput() *memOutput {
	return &memOutput{files: map[string]string{}}
}

func (o *memOutput) factory(path string) (io.WriteCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	return &memFile{out: o, path: path}, nil
}

func (o *memOutput) file(path string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.files[path]
	return s, ok
}

type call struct {
	hook    string
	round   int
	tasks   int
	markers []string
}

// fakeGenerator records hook calls and returns configurable results.
type fakeGenerator struct {
	kind      string
	supported []string

	processResult bool
	overResult    bool
	processErr    error
	onProcess     func(tasks *TaskMap, ctx *Context) (bool, error)
	onOver        func(tasks *TaskMap, ctx *Context) (bool, error)
	create        func(tag string) Fragments

	mu    sync.Mutex
	calls []call
}

func newFakeGenerator(kind string, supported ...string) *fakeGenerator {
	return &fakeGenerator{kind: kind, supported: supported, processResult: true, overResult: true}
}

func (g *fakeGenerator) Kind() string               { return g.kind }
func (g *fakeGenerator) SupportedMarkers() []string { return g.supported }

func (g *fakeGenerator) record(hook string, tasks *TaskMap, markers []string, ctx *Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{hook: hook, round: ctx.Round.Number(), tasks: tasks.Len(), markers: markers})
}

func (g *fakeGenerator) OnProcess(tasks *TaskMap, markers []string, ctx *Context) (bool, error) {
	g.record("process", tasks, markers, ctx)
	if g.onProcess != nil {
		return g.onProcess(tasks, ctx)
	}
	return g.processResult, g.processErr
}

func (g *fakeGenerator) OnProcessingOver(tasks *TaskMap, markers []string, ctx *Context) (bool, error) {
	g.record("over", tasks, markers, ctx)
	if g.onOver != nil {
		return g.onOver(tasks, ctx)
	}
	return g.overResult, nil
}

// funcFragment builds a helper function with a qualified reference in its
// body, so that rendering it rewrites its code.
func funcFragment(name string) Fragment {
	return func() *gopoet.FuncSpec {
		fn := gopoet.NewFunc(name).AddResult("", gopoet.ErrorType)
		fn.Printlnf("return %s(%q)", gopoet.NewPackage("errors").Symbol("New"), name)
		return fn
	}
}

func (g *fakeGenerator) CreateFragments(tag string) Fragments {
	if g.create != nil {
		return g.create(tag)
	}
	return Fragments{funcFragment(tag)}
}

func (g *fakeGenerator) hooks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := make([]string, len(g.calls))
	for i, c := range g.calls {
		res[i] = fmt.Sprintf("%s:%d", c.hook, c.round)
	}
	return res
}

// newType returns a root type element with one field per given marker list.
func newType(pkg, name string, fields map[string][]string, order ...string) *Element {
	root := &Element{Kind: pregen.Types, Name: name, Package: pkg}
	for _, f := range order {
		member := &Element{Kind: pregen.Fields, Name: f, Package: pkg, Parent: root}
		for _, m := range fields[f] {
			member.Markers = append(member.Markers, Marker{Type: m})
		}
		root.Members = append(root.Members, member)
	}
	return root
}

func testOptions() Options {
	return Options{OptionTargetAppPackage: "example.com/app"}
}

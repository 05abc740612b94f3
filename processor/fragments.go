package processor

import (
	"sort"
	"sync"

	"github.com/jhump/gopoet"
	"golang.org/x/sync/singleflight"
)

// Fragment builds one reusable function of generated code. Rendering a
// gopoet file rewrites the functions added to it, so a Fragment returns a new
// FuncSpec on every call and must not hand out a FuncSpec it keeps.
type Fragment func() *gopoet.FuncSpec

// Fragments are reusable, partially built pieces of generated code. Once a
// list of fragments is stored in a cache it is shared by every caller and is
// never mutated: callers receive their own copy of the list and build fresh
// functions from it.
type Fragments []Fragment

// Build returns a new FuncSpec for every fragment, in order.
func (fs Fragments) Build() []*gopoet.FuncSpec {
	funcs := make([]*gopoet.FuncSpec, 0, len(fs))
	for _, f := range fs {
		funcs = append(funcs, f())
	}
	return funcs
}

// AddTo adds newly built functions for all fragments to file.
func (fs Fragments) AddTo(file *gopoet.GoFile) {
	for _, fn := range fs.Build() {
		file.AddElement(fn)
	}
}

// FragmentFactoryFunc creates the fragments for a tag. A nil context means the
// caller did not supply one. Returning nil fragments means the tag is not
// implemented.
type FragmentFactoryFunc func(tag string, context *Element) (Fragments, error)

// FragmentFactory is implemented by generators that build fragments without
// an element context.
type FragmentFactory interface {
	CreateFragments(tag string) Fragments
}

// ContextFragmentFactory is implemented by generators that build fragments
// for a given element.
type ContextFragmentFactory interface {
	CreateContextFragments(tag string, context *Element) Fragments
}

// FragmentScope determines how fragment caches are shared between processors.
type FragmentScope int

const (
	// ScopeKind shares one cache segment between all processors of the same
	// kind that were given the same FragmentCache.
	ScopeKind FragmentScope = iota
	// ScopeInstance gives every processor its own private cache.
	ScopeInstance
)

func (s FragmentScope) String() string {
	if s == ScopeInstance {
		return "instance"
	}
	return "kind"
}

// FragmentCache stores fragments per processor kind. A host creates one cache
// at startup and hands it to every processor it runs; the cache then lives as
// long as the host keeps it, across any number of executions.
type FragmentCache struct {
	mu       sync.Mutex
	segments map[string]*FragmentSegment
}

// NewFragmentCache returns an empty cache.
func NewFragmentCache() *FragmentCache {
	return &FragmentCache{segments: map[string]*FragmentSegment{}}
}

// Segment returns the segment for the given processor kind, creating it on
// first use. Segments of different kinds never share tags or locks.
func (c *FragmentCache) Segment(kind string) *FragmentSegment {
	c.mu.Lock()
	defer c.mu.Unlock()
	seg := c.segments[kind]
	if seg == nil {
		seg = &FragmentSegment{kind: kind}
		c.segments[kind] = seg
	}
	return seg
}

// Kinds returns the kinds that have a segment, sorted.
func (c *FragmentCache) Kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, 0, len(c.segments))
	for k := range c.segments {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// FragmentSegment is the part of a FragmentCache that belongs to one
// processor kind.
type FragmentSegment struct {
	kind    string
	entries sync.Map // tag -> Fragments
	flight  singleflight.Group
}

// Kind returns the processor kind this segment belongs to.
func (s *FragmentSegment) Kind() string {
	return s.kind
}

// GetOrCreate returns the fragments stored for tag, calling factory to create
// them if the tag has not been resolved yet. The factory runs at most once per
// tag for the lifetime of the segment, even under concurrent callers, and all
// callers observe the same stored value.
//
// A factory that returns nil fragments yields a *GenerationContractError and
// nothing is stored, as does a factory error (which is returned unchanged).
func (s *FragmentSegment) GetOrCreate(tag string, context *Element, factory FragmentFactoryFunc) (Fragments, error) {
	if v, ok := s.entries.Load(tag); ok {
		return v.(Fragments), nil
	}
	v, err, _ := s.flight.Do(tag, func() (interface{}, error) {
		// another caller may have stored it after our first look
		if v, ok := s.entries.Load(tag); ok {
			return v, nil
		}
		frags, err := factory(tag, context)
		if err != nil {
			return nil, err
		}
		if frags == nil {
			return nil, contractError(s.kind, tag, "generating code failed: create method for tag is not implemented")
		}
		s.entries.Store(tag, frags)
		return frags, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Fragments), nil
}

// Lookup returns the fragments stored for tag without creating them.
func (s *FragmentSegment) Lookup(tag string) (Fragments, bool) {
	v, ok := s.entries.Load(tag)
	if !ok {
		return nil, false
	}
	return v.(Fragments), true
}

// Tags returns the resolved tags, sorted.
func (s *FragmentSegment) Tags() []string {
	var tags []string
	s.entries.Range(func(k, _ interface{}) bool {
		tags = append(tags, k.(string))
		return true
	})
	sort.Strings(tags)
	return tags
}

// Len returns the number of resolved tags.
func (s *FragmentSegment) Len() int {
	n := 0
	s.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// generatorFactory adapts a generator's optional factory interfaces.
func generatorFactory(kind string, gen interface{}) FragmentFactoryFunc {
	return func(tag string, context *Element) (Fragments, error) {
		if context == nil {
			if f, ok := gen.(FragmentFactory); ok {
				return f.CreateFragments(tag), nil
			}
			return nil, contractError(kind, tag, "generator does not implement CreateFragments")
		}
		if f, ok := gen.(ContextFragmentFactory); ok {
			return f.CreateContextFragments(tag, context), nil
		}
		return nil, contractError(kind, tag, "generator does not implement CreateContextFragments")
	}
}

package processor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(m Messager, out *memOutput) *Environment {
	env := &Environment{Options: testOptions(), Messager: m}
	if out != nil {
		env.OutputFactory = out.factory
	}
	return env
}

func TestProcessor_Init(t *testing.T) {
	m := &recordingMessager{}
	p := NewProcessor(newFakeGenerator("gen", testMarker, testMarker))
	assert.Equal(t, []string{testMarker}, p.SupportedMarkers())

	require.NoError(t, p.Init(newTestEnv(m, nil)))
	assert.Equal(t, []string{"Annotation Preprocessor: gen Initialized"}, m.messages(Note))

	err := p.Init(newTestEnv(m, nil))
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))
	assert.Len(t, m.messages(Note), 1)
}

type initGen struct {
	*fakeGenerator
	err  error
	seen Options
}

func (g *initGen) Init(ctx *Context) error {
	g.seen = ctx.Options()
	return g.err
}

func TestProcessor_InitHook(t *testing.T) {
	gen := &initGen{fakeGenerator: newFakeGenerator("gen"), err: errors.New("no")}
	p := NewProcessor(gen)
	err := p.Init(newTestEnv(&recordingMessager{}, nil))
	assert.EqualError(t, err, "no")
	assert.Equal(t, "example.com/app", gen.seen[OptionTargetAppPackage])

	_, err = p.Process(nil, NewRound(1, nil, false))
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestProcessor_NotInitialized(t *testing.T) {
	p := NewProcessor(newFakeGenerator("gen", testMarker))
	_, err := p.Process(nil, NewRound(1, nil, false))
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestProcessor_Rounds(t *testing.T) {
	gen := newFakeGenerator("gen", testMarker)
	p := NewProcessor(gen)
	require.NoError(t, p.Init(newTestEnv(&recordingMessager{}, nil)))

	root := newType("example.com/app", "User", map[string][]string{"Name": {testMarker}}, "Name")
	ok, err := p.Process([]string{testMarker}, NewRound(1, []*Element{root}, false))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Process(nil, NewRound(2, nil, true))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"process:1", "process:2", "over:2"}, gen.hooks())
	assert.Equal(t, 1, gen.calls[0].tasks)
	assert.Equal(t, []string{testMarker}, gen.calls[0].markers)
	assert.Equal(t, 0, gen.calls[1].tasks)

	_, err = p.Process(nil, NewRound(3, nil, true))
	assert.True(t, errors.Is(err, ErrFinalized))
}

func TestProcessor_TerminalRoundResults(t *testing.T) {
	testCases := []struct {
		name       string
		process    bool
		over       bool
		wantResult bool
		wantHooks  []string
	}{
		{"both succeed", true, true, true, []string{"process:1", "over:1"}},
		{"finalization fails", true, false, false, []string{"process:1", "over:1"}},
		{"round fails", false, true, false, []string{"process:1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newFakeGenerator("gen", testMarker)
			gen.processResult = tc.process
			gen.overResult = tc.over
			p := NewProcessor(gen)
			require.NoError(t, p.Init(newTestEnv(&recordingMessager{}, nil)))

			ok, err := p.Process(nil, NewRound(1, nil, true))
			require.NoError(t, err)
			assert.Equal(t, tc.wantResult, ok)
			assert.Equal(t, tc.wantHooks, gen.hooks())
		})
	}
}

func TestProcessor_NonTerminalFailure(t *testing.T) {
	gen := newFakeGenerator("gen", testMarker)
	gen.processResult = false
	p := NewProcessor(gen)
	require.NoError(t, p.Init(newTestEnv(&recordingMessager{}, nil)))

	ok, err := p.Process(nil, NewRound(1, nil, false))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"process:1"}, gen.hooks())
}

func TestProcessor_MissingTargetIsFatal(t *testing.T) {
	gen := newFakeGenerator("gen", testMarker)
	p := NewProcessor(gen)
	require.NoError(t, p.Init(&Environment{Messager: &recordingMessager{}}))

	root := newType("example.com/app", "User", map[string][]string{"Name": {testMarker}}, "Name")
	_, err := p.Process(nil, NewRound(1, []*Element{root}, false))
	assert.IsType(t, &ConfigurationError{}, err)
	assert.Empty(t, gen.hooks())
}

func TestProcessor_SharedFragments(t *testing.T) {
	cache := NewFragmentCache()
	created := 0
	newGen := func() *fakeGenerator {
		g := newFakeGenerator("gen", testMarker)
		g.create = func(tag string) Fragments {
			created++
			return Fragments{funcFragment(tag)}
		}
		g.onProcess = func(_ *TaskMap, ctx *Context) (bool, error) {
			_, err := ctx.Fragments("helper")
			return err == nil, err
		}
		return g
	}

	for i := 0; i < 2; i++ {
		p := NewProcessor(newGen(), WithFragmentCache(cache))
		require.NoError(t, p.Init(newTestEnv(&recordingMessager{}, nil)))
		ok, err := p.Process(nil, NewRound(1, nil, false))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, created)

	// a processor without the shared cache builds its own
	p := NewProcessor(newGen())
	require.NoError(t, p.Init(newTestEnv(&recordingMessager{}, nil)))
	_, err := p.Process(nil, NewRound(1, nil, false))
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestProcessor_UnimplementedFragmentsAbortRound(t *testing.T) {
	gen := newFakeGenerator("gen", testMarker)
	gen.create = func(string) Fragments { return nil }
	gen.onProcess = func(_ *TaskMap, ctx *Context) (bool, error) {
		if _, err := ctx.Fragments("nope"); err != nil {
			return false, err
		}
		return true, nil
	}
	p := NewProcessor(gen)
	require.NoError(t, p.Init(newTestEnv(&recordingMessager{}, nil)))
	_, err := p.Process(nil, NewRound(1, nil, false))
	assert.IsType(t, &GenerationContractError{}, err)
}

func TestContext_Accessors(t *testing.T) {
	gen := newFakeGenerator("gen", testMarker)
	m := &recordingMessager{}
	gen.onProcess = func(_ *TaskMap, ctx *Context) (bool, error) {
		assert.Equal(t, "gen", ctx.Kind())
		pkg, err := ctx.OutputPackage()
		require.NoError(t, err)
		assert.Equal(t, "example.com/app/generated", pkg)

		el := &Element{Name: "User", Package: "example.com/app/models"}
		sym := ctx.TargetSymbol(el)
		assert.Equal(t, "User", sym.Name)
		assert.Equal(t, "example.com/app/models", sym.Package.ImportPath)
		assert.Equal(t, "fallback", ctx.ErrorPrompt(el, "fallback"))

		ctx.Printf(Warning, "careful %d", 1)
		return true, nil
	}
	p := NewProcessor(gen)
	require.NoError(t, p.Init(newTestEnv(m, nil)))
	_, err := p.Process(nil, NewRound(1, nil, false))
	require.NoError(t, err)
	assert.Equal(t, []string{"careful 1"}, m.messages(Warning))
}

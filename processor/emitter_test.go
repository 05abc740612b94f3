package processor

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/jhump/gopoet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmitter(out OutputFactory, m Messager) *Emitter {
	return NewEmitter("gen", DefaultFileHeader("gen"), testOptions(), out, m)
}

func TestEmitter_Write(t *testing.T) {
	out := newMemOutput()
	m := &recordingMessager{}
	e := newTestEmitter(out.factory, m)

	f, err := e.NewFile("helpers.go")
	require.NoError(t, err)
	fn := gopoet.NewFunc("helper")
	fn.Println("return")
	f.AddElement(fn)
	require.NoError(t, e.Write(f))

	src, ok := out.file("example.com/app/generated/helpers.go")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(src, "// Code generated by gen. DO NOT EDIT.\n// This file is generated by gen\n// Do NOT modify this file!\n"))
	assert.Contains(t, src, DefaultCopyright)
	assert.Contains(t, src, "package generated")
	assert.Contains(t, src, "func helper()")
	assert.Equal(t, []string{"Annotation Preprocessor: gen saved output file:example.com/app/generated"}, m.messages(Note))
}

func TestEmitter_WriteOnce(t *testing.T) {
	out := newMemOutput()
	e := newTestEmitter(out.factory, &recordingMessager{})
	f, err := e.NewFile("once.go")
	require.NoError(t, err)

	require.NoError(t, e.Write(f))
	err = e.Write(f)
	var contract *GenerationContractError
	require.True(t, errors.As(err, &contract))
	assert.Contains(t, contract.Reason, "already written")
	assert.Equal(t, 1, out.opens)
}

func TestEmitter_WriteOnceConcurrent(t *testing.T) {
	out := newMemOutput()
	e := newTestEmitter(out.factory, &recordingMessager{})
	f, err := e.NewFile("once.go")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.Write(f)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, out.opens)
}

func TestEmitter_ForeignFile(t *testing.T) {
	e := newTestEmitter(newMemOutput().factory, &recordingMessager{})
	err := e.Write(gopoet.NewGoFile("x.go", "example.com/app/generated", "generated"))
	assert.IsType(t, &GenerationContractError{}, err)
}

func TestEmitter_MissingTarget(t *testing.T) {
	e := NewEmitter("gen", "", Options{}, newMemOutput().factory, &recordingMessager{})
	_, err := e.NewFile("x.go")
	assert.IsType(t, &ConfigurationError{}, err)
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }
func (w failingWriter) Close() error              { return nil }

func TestEmitter_SinkErrorsPropagate(t *testing.T) {
	diskFull := errors.New("disk full")

	t.Run("open", func(t *testing.T) {
		e := newTestEmitter(func(string) (io.WriteCloser, error) { return nil, diskFull }, &recordingMessager{})
		f, err := e.NewFile("x.go")
		require.NoError(t, err)
		assert.Same(t, diskFull, e.Write(f))
	})

	t.Run("write", func(t *testing.T) {
		m := &recordingMessager{}
		e := newTestEmitter(func(string) (io.WriteCloser, error) { return failingWriter{diskFull}, nil }, m)
		f, err := e.NewFile("x.go")
		require.NoError(t, err)
		assert.Same(t, diskFull, e.Write(f))
		assert.Empty(t, m.messages(Note))
	})

	t.Run("retry after failure", func(t *testing.T) {
		fail := true
		out := newMemOutput()
		e := newTestEmitter(func(p string) (io.WriteCloser, error) {
			if fail {
				return nil, diskFull
			}
			return out.factory(p)
		}, &recordingMessager{})
		f, err := e.NewFile("x.go")
		require.NoError(t, err)
		assert.Error(t, e.Write(f))
		fail = false
		assert.NoError(t, e.Write(f))
	})
}

func TestWriteHeader(t *testing.T) {
	var sb strings.Builder
	writeHeader(&sb, "k", "one\n\ntwo")
	assert.Equal(t, "// Code generated by k. DO NOT EDIT.\n// one\n//\n// two\n\n", sb.String())
}

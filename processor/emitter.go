package processor

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/jhump/gopoet"
)

// GeneratedPackage is the name of the package, below the target package, that
// all output files are placed in.
const GeneratedPackage = "generated"

// DefaultCopyright is the copyright line of the default file header.
const DefaultCopyright = "Copyright (c) 2019 Kenvix <i@kenvix.com>. All rights reserved."

// HeaderProvider is implemented by generators that replace the default file
// header. The "Code generated ... DO NOT EDIT." line is always kept.
type HeaderProvider interface {
	FileHeader() string
}

// DefaultFileHeader returns the header stamped on files written for the given
// processor kind.
func DefaultFileHeader(kind string) string {
	return "This file is generated by " + kind +
		"\nDo NOT modify this file!\n-------------------------------------\n" + DefaultCopyright
}

// Emitter writes output files into the generated package of the target
// application. Every file is written at most once.
type Emitter struct {
	kind     string
	header   string
	opts     Options
	output   OutputFactory
	messager Messager

	mu      sync.Mutex
	created map[*gopoet.GoFile]string // file -> package path
	written map[*gopoet.GoFile]struct{}
}

// NewEmitter creates an emitter for the given processor kind.
func NewEmitter(kind, header string, opts Options, output OutputFactory, messager Messager) *Emitter {
	return &Emitter{
		kind:     kind,
		header:   header,
		opts:     opts,
		output:   output,
		messager: messager,
		created:  map[*gopoet.GoFile]string{},
		written:  map[*gopoet.GoFile]struct{}{},
	}
}

// OutputPackage returns the import path that output files are placed in.
func (e *Emitter) OutputPackage() (string, error) {
	target, err := e.opts.TargetAppPackage()
	if err != nil {
		return "", err
	}
	return path.Join(target, GeneratedPackage), nil
}

// NewFile creates an empty output file with the given file name in the
// generated package.
func (e *Emitter) NewFile(fileName string) (*gopoet.GoFile, error) {
	pkgPath, err := e.OutputPackage()
	if err != nil {
		return nil, err
	}
	f := gopoet.NewGoFile(fileName, pkgPath, GeneratedPackage)
	e.mu.Lock()
	e.created[f] = pkgPath
	e.mu.Unlock()
	return f, nil
}

// Write stamps the file header on the file and writes it through the output
// factory. The whole file is rendered before the output is opened, so a
// failed render never leaves a partial file behind. Errors from the output
// are returned unchanged and the file may then be written again.
func (e *Emitter) Write(file *gopoet.GoFile) error {
	e.mu.Lock()
	pkgPath, ok := e.created[file]
	_, done := e.written[file]
	if ok && !done {
		// claimed now so that a concurrent Write of the same file fails
		e.written[file] = struct{}{}
	}
	e.mu.Unlock()
	if !ok {
		return contractError(e.kind, "", "output file %s was not created by this processor", file.Name)
	}
	if done {
		return contractError(e.kind, "", "output file %s was already written", file.Name)
	}

	if err := e.write(pkgPath, file); err != nil {
		e.mu.Lock()
		delete(e.written, file)
		e.mu.Unlock()
		return err
	}
	printf(e.messager, Note, "Annotation Preprocessor: %s saved output file:%s", e.kind, pkgPath)
	return nil
}

func (e *Emitter) write(pkgPath string, file *gopoet.GoFile) error {
	var buf bytes.Buffer
	writeHeader(&buf, e.kind, e.header)
	if err := gopoet.WriteGoFile(&buf, file); err != nil {
		return err
	}

	out, err := e.output(path.Join(pkgPath, file.Name))
	if err != nil {
		return err
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeHeader(w io.Writer, kind, header string) {
	fmt.Fprintf(w, "// Code generated by %s. DO NOT EDIT.\n", kind)
	for _, line := range strings.Split(header, "\n") {
		if line == "" {
			fmt.Fprintln(w, "//")
		} else {
			fmt.Fprintf(w, "// %s\n", line)
		}
	}
	fmt.Fprintln(w)
}

package processor

import (
	"bytes"
	"go/ast"
	"go/token"
	"go/types"
	"path"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"

	"github.com/kenvix/pregen"
	"github.com/kenvix/pregen/parser"
)

// LoadMode is the packages.LoadMode the host uses to load sources.
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedImports | packages.NeedTypes | packages.NeedTypesInfo

// LoadElements creates the root elements for the given packages: one element
// per top-level named type, in file and declaration order, with their fields,
// interface methods and methods as members. Markers are read from the doc
// comments of the types and their members.
//
// Markers whose package alias cannot be resolved are kept with the alias as
// written and reported as warnings. Malformed markers are errors.
func LoadElements(pkgs []*packages.Package, messager Messager) ([]*Element, error) {
	if messager == nil {
		messager = NewLogMessager(nil)
	}
	var roots []*Element
	for _, pkg := range pkgs {
		l := elementLoader{pkg: pkg, messager: messager, byName: map[string]*Element{}}
		if err := l.load(); err != nil {
			return nil, err
		}
		roots = append(roots, l.roots...)
	}
	return roots, nil
}

// selectVariants drops the duplicates that loading with tests produces: a
// package that has a test variant (ID "p [p.test]") is represented by that
// variant only, and synthesized test mains are dropped. Order is kept.
func selectVariants(pkgs []*packages.Package) []*packages.Package {
	tested := map[string]bool{}
	for _, pkg := range pkgs {
		if isTestVariant(pkg) {
			tested[pkg.PkgPath] = true
		}
	}
	var res []*packages.Package
	for _, pkg := range pkgs {
		switch {
		case isTestMain(pkg):
		case !isTestVariant(pkg) && tested[pkg.PkgPath]:
		default:
			res = append(res, pkg)
		}
	}
	return res
}

func isTestVariant(pkg *packages.Package) bool {
	return strings.HasSuffix(pkg.ID, ".test]")
}

func isTestMain(pkg *packages.Package) bool {
	return pkg.Name == "main" && pkg.ID == pkg.PkgPath && strings.HasSuffix(pkg.ID, ".test")
}

type elementLoader struct {
	pkg      *packages.Package
	messager Messager
	roots    []*Element
	byName   map[string]*Element
}

func (l *elementLoader) load() error {
	for _, file := range l.pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, s := range gen.Specs {
				spec := s.(*ast.TypeSpec)
				doc := spec.Doc
				if doc == nil || len(doc.List) == 0 {
					doc = gen.Doc
				}
				if err := l.loadType(file, spec, doc); err != nil {
					return err
				}
			}
		}
	}

	// methods may be declared in any file of the package, so they are
	// attached once all types are known
	for _, file := range l.pkg.Syntax {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
				continue
			}
			parent := l.byName[receiverTypeName(fn.Recv.List[0].Type)]
			if parent == nil {
				continue
			}
			if _, err := l.newMember(file, parent, pregen.Methods, fn.Name, fn.Doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *elementLoader) loadType(file *ast.File, spec *ast.TypeSpec, doc *ast.CommentGroup) error {
	kind := pregen.Types
	if _, ok := spec.Type.(*ast.InterfaceType); ok {
		kind = pregen.Interfaces
	}
	markers, err := l.parseMarkers(file, doc)
	if err != nil {
		return err
	}
	el := &Element{
		Kind:    kind,
		Name:    spec.Name.Name,
		Package: l.pkg.PkgPath,
		Markers: markers,
		Obj:     l.objectOf(spec.Name),
		Pos:     l.pkg.Fset.Position(spec.Name.Pos()),
	}
	l.roots = append(l.roots, el)
	l.byName[el.Name] = el

	switch t := spec.Type.(type) {
	case *ast.StructType:
		if t.Fields == nil {
			return nil
		}
		for _, fld := range t.Fields.List {
			names := fld.Names
			if names == nil {
				// embedded field
				if id := embeddedName(fld.Type); id != nil {
					names = []*ast.Ident{id}
				}
			}
			for _, n := range names {
				if _, err := l.newMember(file, el, pregen.Fields, n, fld.Doc); err != nil {
					return err
				}
			}
		}
	case *ast.InterfaceType:
		if t.Methods == nil {
			return nil
		}
		for _, m := range t.Methods.List {
			for _, n := range m.Names {
				if _, err := l.newMember(file, el, pregen.InterfaceMethods, n, m.Doc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *elementLoader) newMember(file *ast.File, parent *Element, kind pregen.ElementKind, id *ast.Ident, doc *ast.CommentGroup) (*Element, error) {
	markers, err := l.parseMarkers(file, doc)
	if err != nil {
		return nil, err
	}
	el := &Element{
		Kind:    kind,
		Name:    id.Name,
		Package: l.pkg.PkgPath,
		Parent:  parent,
		Markers: markers,
		Obj:     l.objectOf(id),
		Pos:     l.pkg.Fset.Position(id.Pos()),
	}
	parent.Members = append(parent.Members, el)
	return el, nil
}

func (l *elementLoader) objectOf(id *ast.Ident) types.Object {
	if l.pkg.TypesInfo == nil {
		return nil
	}
	return l.pkg.TypesInfo.ObjectOf(id)
}

func (l *elementLoader) parseMarkers(file *ast.File, doc *ast.CommentGroup) ([]Marker, error) {
	buf, lines := extractMarkerText(l.pkg.Fset, doc)
	if buf == nil {
		return nil, nil
	}
	adjust := func(p scanner.Position) token.Position {
		return lines.adjustPosition(p)
	}

	annos, perr := parser.ParseAnnotations("", buf)
	if perr != nil {
		return nil, NewErrorWithPosition(adjust(perr.Pos()), perr.Underlying())
	}
	markers := make([]Marker, len(annos))
	for i, a := range annos {
		pos := adjust(a.Pos)
		markerType, ok := l.resolveMarkerType(file, a.Type)
		if !ok {
			printf(l.messager, Warning, "%v: marker @%v: unknown package %q", pos, a.Type, a.Type.PackageAlias)
		}
		v, err := convertExpression(a.Value, func(n parser.ExpressionNode) token.Position {
			return adjust(n.Pos())
		})
		if err != nil {
			return nil, err
		}
		markers[i] = Marker{Type: markerType, Value: v, Pos: pos}
	}
	return markers, nil
}

// resolveMarkerType resolves a marker identifier to its qualified identity,
// using the file's imports to resolve the package alias. Blank imports are
// matched by package name, so annotation-only imports work.
func (l *elementLoader) resolveMarkerType(file *ast.File, id parser.Identifier) (string, bool) {
	if id.PackageAlias == "" {
		return l.pkg.PkgPath + "." + id.Name, true
	}
	for _, imp := range file.Imports {
		impPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		var name string
		if imp.Name != nil && imp.Name.Name != "_" && imp.Name.Name != "." {
			name = imp.Name.Name
		} else if p := l.pkg.Imports[impPath]; p != nil && p.Name != "" {
			name = p.Name
		} else {
			name = path.Base(impPath)
		}
		if name == id.PackageAlias {
			return impPath + "." + id.Name, true
		}
	}
	return id.String(), false
}

func receiverTypeName(expr ast.Expr) string {
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.ParenExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

func embeddedName(expr ast.Expr) *ast.Ident {
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.SelectorExpr:
			return t.Sel
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t
		default:
			return nil
		}
	}
}

// lineStarts maps each line of extracted marker text to its position in the
// original source.
type lineStarts []token.Position

func (a lineStarts) adjustPosition(pos scanner.Position) token.Position {
	if pos.Line < 1 || pos.Line > len(a) {
		if len(a) == 0 {
			return token.Position{}
		}
		return a[len(a)-1]
	}
	tok := a[pos.Line-1]
	tok.Column += pos.Column - 1
	tok.Offset += pos.Column - 1
	return tok
}

// extractMarkerText returns the marker part of a doc comment: everything from
// the first line that starts with '@' to the end of the comment. It returns
// nil if the comment has no markers.
func extractMarkerText(fset *token.FileSet, doc *ast.CommentGroup) (*bytes.Buffer, lineStarts) {
	if doc == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	var lines lineStarts
	found := false
	for _, c := range doc.List {
		txt := c.Text
		if strings.HasPrefix(txt, "/*") {
			txt = strings.TrimSuffix(txt[2:], "*/")
		} else {
			txt = strings.TrimPrefix(txt, "//")
		}

		pos := fset.Position(c.Slash)
		// skip past opening "//" or "/*"
		pos.Offset += 2
		pos.Column += 2

		for _, line := range strings.Split(txt, "\n") {
			trimmed := strings.TrimSpace(line)
			if !found && trimmed != "" && trimmed[0] == '@' {
				found = true
			}
			if found {
				lines = append(lines, pos)
				buf.WriteString(line)
				buf.WriteByte('\n')
			}
			pos.Offset += len(line) + 1
			pos.Line++
			pos.Column = 1
		}
	}
	if !found {
		return nil, nil
	}
	return &buf, lines
}

// describePackageErrors turns package loading errors into a single error.
// Type errors are only reported: sources commonly refer to code that has not
// been generated yet.
func describePackageErrors(pkgs []*packages.Package, messager Messager) error {
	var fatal []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			if e.Kind == packages.TypeError {
				printf(messager, Warning, "%v", e)
				continue
			}
			fatal = append(fatal, e.Error())
		}
	})
	if len(fatal) == 0 {
		return nil
	}
	return errors.Errorf("could not load packages:\n\t%s", strings.Join(fatal, "\n\t"))
}

package main

import (
	"fmt"
	"go/token"
	"go/types"
	"strconv"
	"strings"
	"unicode"

	"github.com/jhump/gopoet"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kenvix/pregen/processor"
)

func init() {
	processor.RegisterGenerator(&validateGenerator{})
}

const (
	validateKind   = "validate"
	validateFile   = "validate.gen.go"
	isBlankTag     = "isBlank"
	validatePrefix = "Validate"
)

var (
	errorsNew     = gopoet.NewPackage("errors").Symbol("New")
	stringsTrim   = gopoet.NewPackage("strings").Symbol("TrimSpace")
	titleCaser    = cases.Title(language.Und, cases.NoLower)
	sentenceLower = cases.Lower(language.Und)
)

// validateGenerator generates a Validate<Type> function for every type with
// fields marked @pregen.NotEmpty. The functions are collected while the
// rounds run and written to a single file in the terminal round.
type validateGenerator struct {
	pending []validateTarget
	failed  bool
}

type validateTarget struct {
	root   *processor.Element
	checks []fieldCheck
}

type fieldCheck struct {
	field *processor.Element
	cond  string
}

func (g *validateGenerator) Kind() string {
	return validateKind
}

func (g *validateGenerator) SupportedMarkers() []string {
	return []string{processor.NotEmptyMarker}
}

// Init resets the state of an earlier execution.
func (g *validateGenerator) Init(*processor.Context) error {
	g.pending = nil
	g.failed = false
	return nil
}

func (g *validateGenerator) OnProcess(tasks *processor.TaskMap, _ []string, ctx *processor.Context) (bool, error) {
	ok := true
	tasks.Range(func(root *processor.Element, members []*processor.Element) bool {
		if !isExported(root.Name) {
			ctx.Printf(processor.Error, "%v: %s: type must be exported to be validated", root.Pos, root)
			ok = false
			return true
		}
		target := validateTarget{root: root}
		seen := map[*processor.Element]struct{}{}
		for _, m := range members {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			cond, err := emptyCondition(m)
			if err != nil {
				ctx.Printf(processor.Error, "%v: %s: %v", m.Pos, m, err)
				ok = false
				continue
			}
			target.checks = append(target.checks, fieldCheck{field: m, cond: cond})
		}
		g.pending = append(g.pending, target)
		return true
	})
	if !ok {
		g.failed = true
	}
	return ok, nil
}

func (g *validateGenerator) OnProcessingOver(_ *processor.TaskMap, _ []string, ctx *processor.Context) (bool, error) {
	if g.failed {
		return false, nil
	}
	if len(g.pending) == 0 {
		return true, nil
	}

	frags, err := ctx.Fragments(isBlankTag)
	if err != nil {
		return false, err
	}
	file, err := ctx.NewOutputFile(validateFile)
	if err != nil {
		return false, err
	}
	frags.AddTo(file)

	used := map[string]struct{}{}
	for _, target := range g.pending {
		name := validatorName(target.root, used)
		file.AddElement(g.validator(ctx, name, target))
	}
	if err := ctx.Write(file); err != nil {
		return false, err
	}
	return true, nil
}

// CreateFragments builds the shared helpers of generated validators.
func (g *validateGenerator) CreateFragments(tag string) processor.Fragments {
	switch tag {
	case isBlankTag:
		return processor.Fragments{isBlank}
	}
	return nil
}

func isBlank() *gopoet.FuncSpec {
	fn := gopoet.NewFunc(isBlankTag).
		AddArg("s", gopoet.StringType).
		AddResult("", gopoet.BoolType)
	fn.Printlnf("return %s(s) == \"\"", stringsTrim)
	return fn
}

func (g *validateGenerator) validator(ctx *processor.Context, name string, target validateTarget) *gopoet.FuncSpec {
	root := target.root
	fn := gopoet.NewFunc(name).
		SetComment(fmt.Sprintf("%s returns an error if a required field of v is empty.", name)).
		AddArg("v", gopoet.PointerType(gopoet.NamedType(ctx.TargetSymbol(root)))).
		AddResult("", gopoet.ErrorType)

	fn.Println("if v == nil {")
	fn.Printlnf("return %s(%q)", errorsNew, ctx.ErrorPrompt(root, humanize(root.Name)+" is missing"))
	fn.Println("}")
	for _, c := range target.checks {
		fn.Printlnf("if %s {", c.cond)
		fn.Printlnf("return %s(%q)", errorsNew, ctx.ErrorPrompt(c.field, humanize(c.field.Name)+" cannot be empty"))
		fn.Println("}")
	}
	fn.Println("return nil")
	return fn
}

// validatorName returns the name of the validator for root. A name already
// used is prefixed with more elements of the package path, and numbered once
// the path runs out.
func validatorName(root *processor.Element, used map[string]struct{}) string {
	base := titleCaser.String(root.Name)
	name := validatePrefix + base
	elems := strings.Split(root.Package, "/")
	for i := len(elems) - 1; i >= 0; i-- {
		if _, ok := used[name]; !ok {
			break
		}
		base = titleCaser.String(identPart(elems[i])) + base
		name = validatePrefix + base
	}
	for n := 2; ; n++ {
		if _, ok := used[name]; !ok {
			break
		}
		name = validatePrefix + base + strconv.Itoa(n)
	}
	used[name] = struct{}{}
	return name
}

// identPart drops the characters of a path element that cannot appear in an
// identifier.
func identPart(elem string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, elem)
}

// emptyCondition returns the Go expression that is true when the field of v
// is empty.
func emptyCondition(field *processor.Element) (string, error) {
	if field.Kind.IsRoot() || field.Obj == nil {
		return "", fmt.Errorf("@pregen.NotEmpty needs a type-checked field")
	}
	if _, ok := field.Obj.(*types.Var); !ok {
		return "", fmt.Errorf("@pregen.NotEmpty can only be used on fields, not %s", field.Kind)
	}
	if !isExported(field.Name) {
		return "", fmt.Errorf("@pregen.NotEmpty field must be exported")
	}
	ref := "v." + field.Name
	switch t := field.Obj.Type().Underlying().(type) {
	case *types.Basic:
		switch {
		case t.Info()&types.IsString != 0:
			return isBlankTag + "(" + ref + ")", nil
		case t.Info()&types.IsBoolean != 0:
			return "!" + ref, nil
		case t.Info()&types.IsNumeric != 0:
			return ref + " == 0", nil
		}
	case *types.Slice, *types.Map, *types.Chan:
		return "len(" + ref + ") == 0", nil
	case *types.Pointer, *types.Interface, *types.Signature:
		return ref + " == nil", nil
	}
	return "", fmt.Errorf("@pregen.NotEmpty is not supported for type %s", field.Obj.Type())
}

// humanize turns an identifier like "UserName" into "user name".
func humanize(ident string) string {
	var words []string
	start := 0
	runes := []rune(ident)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return sentenceLower.String(strings.Join(words, " "))
}

func isExported(name string) bool {
	return token.IsExported(name)
}

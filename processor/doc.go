// Package processor contains the runtime library used by code generators that
// are driven by comment markers.
//
// This package defines an interface, Generator, which is implemented by things
// that decide what code to emit for marked members of types:
//
//    OnProcess(tasks *TaskMap, markers []string, ctx *Context) (bool, error)
//    OnProcessingOver(tasks *TaskMap, markers []string, ctx *Context) (bool, error)
//
// A generator is run by a Processor, which owns everything but the decision of
// what to emit: it captures the host's services, filters elements by
// namespace, collects the members carrying supported markers into a TaskMap,
// caches reusable code fragments and writes output files into the
// "generated" package of the target application.
//
// If a hook returns an error, processing has failed and the error should
// indicate why. Errors about marker values should be constructed with
// processor.NewErrorWithPosition so that they can report locations in the
// source code. A hook that returns false reports a failed round instead: the
// host keeps running and reports all failed rounds at the end.
//
// Rounds
//
// A Processor sees at least two rounds. The first carries all root elements;
// the terminal round carries none and has ProcessingOver set. In the terminal
// round, OnProcessingOver runs after OnProcess has succeeded, which makes it
// the place to write anything accumulated during earlier rounds.
//
// Generator Registration
//
// Generator implementations can be registered with this package using the
// RegisterGenerator function. All registered generators can later be queried
// with the AllRegisteredGenerators function. The pregen program (included in
// this repo) runs all registered generators, including its built-in
// validation generator.
//
// Generator Invocation
//
// The package includes functions and types used to invoke generators. Key
// among them is processor.Config. This struct defines the packages that will
// be processed, the options, the generators that will be invoked and the
// output factory (which controls where generated output files are actually
// written).
//
// After a processor.Config is constructed, its Execute method is used to
// actually invoke the configured generators. This loads the packages with
// golang.org/x/tools/go/packages, extracts markers from doc comments and then
// runs the rounds.
//
// There are also some "shortcut" functions in this package: Process and
// ProcessAll. These create a processor.Config using the arguments given and
// "typical" values for other settings and then call the resulting config's
// Execute method. ProcessAll invokes all registered generators.
//
// Markers
//
// Markers are written in doc comments, starting at the first line that begins
// with '@':
//
//    // User is a registered user.
//    //
//    // @pregen.ErrorPrompt("user is invalid")
//    type User struct {
//        // @pregen.NotEmpty
//        Name string
//    }
//
// The package alias is resolved through the imports of the file, so marker
// packages are commonly imported for their side effects only:
//
//    import _ "github.com/kenvix/pregen"
//
// A marker's identity is its package import path and name joined by a dot,
// e.g. "github.com/kenvix/pregen.NotEmpty". Values are kept untyped, as
// MarkerValue; it is up to the generator to interpret them.
//
// Fragments
//
// Generators that emit the same helper code for many elements can build it
// once per tag and have it cached, by implementing FragmentFactory or
// ContextFragmentFactory and calling Context.Fragments. The cache is keyed by
// the generator's kind, so processors of the same kind that share a
// FragmentCache share fragments too. A Fragment returns a new FuncSpec every
// time it is called; use Fragments.AddTo to put them into an output file.
package processor

package processor

import "sync"

var (
	registryLock         sync.Mutex
	registeredGenerators []Generator
)

// RegisterGenerator registers the given generator. Generators typically
// register themselves in their package's init function.
func RegisterGenerator(g Generator) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registeredGenerators = append(registeredGenerators, g)
}

// AllRegisteredGenerators returns the list of all registered generators, in
// registration order.
func AllRegisteredGenerators() []Generator {
	registryLock.Lock()
	defer registryLock.Unlock()
	gens := make([]Generator, len(registeredGenerators))
	copy(gens, registeredGenerators)
	return gens
}

// Package isolate runs registered units of work in a re-executed copy of
// the host binary and returns their outcome over a private channel. A
// crash of the work takes down the worker only.
//
// Binaries using the package must call Init first thing in main, and
// register their work in init functions so that the worker sees the same
// registry as the parent.
package isolate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docker/docker/pkg/reexec"
)

// workerEntry is the argv[0] under which the host binary acts as worker.
const workerEntry = "sysproc-isolated-worker"

// WorkFunc is a unit of work. Input and output are opaque; an error is
// returned to the parent as an Err outcome carrying its message. The
// context is cancelled when the worker receives an interrupt or terminate
// signal.
type WorkFunc func(ctx context.Context, input []byte) ([]byte, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]WorkFunc{}
)

func init() {
	reexec.Register(workerEntry, workerMain)
}

// Register makes fn callable under name. It panics if the name is taken.
func Register(name string, fn WorkFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("isolated work %q is already registered", name))
	}

	registry[name] = fn
}

// Registered returns the names of all registered work, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func lookup(name string) (WorkFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	fn, ok := registry[name]
	return fn, ok
}

// Init runs the worker if the process was started as one, and never
// returns in that case. Otherwise it returns false.
func Init() bool {
	return reexec.Init()
}

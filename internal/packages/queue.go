package packages

import (
	"context"
	"fmt"

	"github.com/conneroisu/jah/internal/config"
	"github.com/conneroisu/jah/internal/logging"
)

// Entry is one external package in the build queue: the runtime or a
// library, with the bundle it is written into.
type Entry struct {
	Package *Package
	// Output is the bundle filename the package is packed into.
	Output string
	// MountOverride replaces the package's own mount when set.
	MountOverride string
}

// Mount returns the mount point of the entry. Without an override it is the
// package's configured mount, or /<package name>.
func (e *Entry) Mount() (string, error) {
	if e.MountOverride != "" {
		return config.NormalizeMount(e.MountOverride), nil
	}

	cfg, err := e.Package.Config()
	if err != nil {
		return "", err
	}
	if cfg.Mount != "" {
		return cfg.Mount, nil
	}

	return config.NormalizeMount(cfg.Name), nil
}

// Queue is the ordered set of external packages of a build. It is filled
// by NewQueue and read-only afterwards.
type Queue struct {
	primary  *Package
	runtime  *Package
	entries  []*Entry
	index    map[string]*Entry
	external map[string]string
	logger   logging.Logger
}

// NewQueue builds the queue for primary: the runtime first (unless primary
// is the runtime), then every declared library in declared order. A library
// that cannot be located aborts with ErrLibraryNotFound.
func NewQueue(primary, runtime *Package, locator *Locator, logger logging.Logger) (*Queue, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	q := &Queue{
		primary:  primary,
		runtime:  runtime,
		index:    make(map[string]*Entry),
		external: make(map[string]string),
		logger:   logger.WithComponent("queue"),
	}

	cfg, err := primary.Config()
	if err != nil {
		return nil, err
	}

	if runtime != nil && !primary.Same(runtime) {
		rcfg, err := runtime.Config()
		if err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
		q.Add(runtime, q.outputFor(cfg, rcfg.Name), "")
	}

	for _, lib := range cfg.Libs {
		if locator == nil {
			return nil, fmt.Errorf("no locator for library %q", lib.Name)
		}
		root, err := locator.Find(lib.Name)
		if err != nil {
			return nil, err
		}
		pkg, err := Open(locator.Fs, root)
		if err != nil {
			return nil, err
		}
		libCfg, err := pkg.Config()
		if err != nil {
			return nil, err
		}
		if !libCfg.IsLib {
			q.logger.Warn(context.Background(), nil, "Package is not marked as a library", "library", lib.Name, "path", root)
		}

		q.Add(pkg, q.outputFor(cfg, lib.Name), lib.Mount)
	}

	return q, nil
}

func (q *Queue) outputFor(cfg *config.Config, name string) string {
	if out, ok := cfg.Externalize[name]; ok {
		q.external[name] = out

		return out
	}

	return cfg.MainFilename
}

// Add appends pkg with its target bundle. Re-adding a queued root is a
// no-op and reports false.
func (q *Queue) Add(pkg *Package, output, mount string) bool {
	key := pkg.Key()
	if _, ok := q.index[key]; ok {
		return false
	}

	e := &Entry{Package: pkg, Output: output, MountOverride: mount}
	q.entries = append(q.entries, e)
	q.index[key] = e

	q.logger.Debug(context.Background(), "Queued package", "path", pkg.Root, "output", output)

	return true
}

// Entries returns the queued packages in insertion order.
func (q *Queue) Entries() []*Entry {
	return append([]*Entry(nil), q.entries...)
}

// Primary returns the package being built.
func (q *Queue) Primary() *Package {
	return q.primary
}

// Runtime returns the runtime queue entry, or nil when the primary package
// is the runtime itself.
func (q *Queue) Runtime() *Entry {
	if q.runtime == nil {
		return nil
	}

	return q.index[q.runtime.Key()]
}

// IsRuntime reports whether the package being built is the runtime.
func (q *Queue) IsRuntime() bool {
	return q.primary.Same(q.runtime)
}

// NamesPackage reports whether an externalize key names a queued package
// rather than a mount subtree.
func (q *Queue) NamesPackage(key string) bool {
	_, ok := q.external[key]

	return ok
}

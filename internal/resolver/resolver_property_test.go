//go:build property
// +build property

package resolver

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/logging"
	"github.com/conneroisu/jah/internal/packages"
)

func orderedResolver(fs afero.Fs, mountA, mountB string) (*Resolver, error) {
	files := map[string]string{
		"/proj/jah.json":                    `{libs: [{a: "/` + mountA + `"}, {b: "/` + mountB + `"}]}`,
		"/proj/package.json":                `{"name": "proj"}`,
		"/proj/node_modules/a/jah.json":     `{}`,
		"/proj/node_modules/a/package.json": `{"name": "a"}`,
		"/proj/node_modules/b/jah.json":     `{}`,
		"/proj/node_modules/b/package.json": `{"name": "b"}`,
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}

	primary, err := packages.Open(fs, "/proj")
	if err != nil {
		return nil, err
	}
	q, err := packages.NewQueue(primary, nil, &packages.Locator{Fs: fs, ProjectRoot: "/proj", Logger: logging.Nop()}, logging.Nop())
	if err != nil {
		return nil, err
	}

	return New(q, primary), nil
}

// TestResolverOrderProperties checks that a path under the first queued
// mount always resolves into the first package, wherever the file lives.
func TestResolverOrderProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("first queued mount wins", prop.ForAll(
		func(mountA, mountB, file string, inA bool) bool {
			if mountA == mountB {
				return true
			}
			fs := afero.NewMemMapFs()
			r, err := orderedResolver(fs, mountA, mountB)
			if err != nil {
				return false
			}

			name := file + ".js"
			_ = afero.WriteFile(fs, filepath.Join("/proj/node_modules/b/src", name), []byte("b"), 0o644)
			if inA {
				_ = afero.WriteFile(fs, filepath.Join("/proj/node_modules/a/src", name), []byte("a"), 0o644)
			}

			m, err := r.Resolve("/" + mountA + "/" + name)
			if !inA {
				return err != nil
			}

			return err == nil && m.File == filepath.Join("/proj/node_modules/a/src", name)
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.Bool(),
	))

	properties.Property("fallback resolves under the primary source path", prop.ForAll(
		func(file string, exists bool) bool {
			fs := afero.NewMemMapFs()
			r, err := orderedResolver(fs, "liba", "libb")
			if err != nil {
				return false
			}
			name := "zz" + file + ".js"
			if exists {
				_ = afero.WriteFile(fs, filepath.Join("/proj/src", name), []byte("x"), 0o644)
			}

			m, err := r.Resolve(name)
			if !exists {
				return err != nil
			}

			return err == nil && m.File == filepath.Join("/proj/src", name) && m.Mount == "/"+name
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

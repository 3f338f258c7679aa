// Package runtime ships the browser runtime of jah inside the binary. It is
// a regular package (config file, package.json, src/ tree) that every build
// mounts, plus the bootstrap header and loader footer of the bundle that
// carries it.
package runtime

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/packages"
)

const (
	// Name is the package name of the runtime.
	Name = "jah"
	// Namespace is the global object the bundles register into.
	Namespace = "__jah__"
	// Root is where the embedded runtime lives on its in-memory filesystem.
	Root = "/jah"
)

//go:embed all:files
var files embed.FS

//go:embed loader.js
var loader string

// Load returns the embedded runtime package on a fresh in-memory
// filesystem.
func Load() (*packages.Package, error) {
	memFs := afero.NewMemMapFs()

	err := fs.WalkDir(files, "files", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel("files", filepath.FromSlash(p))
		target := filepath.Join(Root, rel)
		if d.IsDir() {
			return memFs.MkdirAll(target, 0o755)
		}
		data, err := files.ReadFile(p)
		if err != nil {
			return err
		}

		return afero.WriteFile(memFs, target, data, 0o644)
	})
	if err != nil {
		return nil, fmt.Errorf("unpack embedded runtime: %w", err)
	}

	return packages.Open(memFs, Root)
}

// LoadDir returns an on-disk runtime checkout rooted at dir.
func LoadDir(fsys afero.Fs, dir string) (*packages.Package, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	return packages.Open(fsys, abs)
}

// Header initializes the resource registry. It runs before any
// registration of the bundle carrying the runtime.
func Header(assetURL, mainModule string) string {
	return fmt.Sprintf("if (typeof %[1]s == \"undefined\") window.%[1]s = {resources: {}, assetURL: %[2]s, mainModule: %[3]s};\n"+
		"%[1]s.image = function (src) { var img = new Image(); img.src = src; return img; };\n",
		Namespace, literal(assetURL), literal(mainModule))
}

// Footer is the module loader. It resolves require() calls against the
// registry and starts the main module once the window has loaded.
func Footer() string {
	return loader
}

// AssetURL joins the resource URL prefix and the asset path the way the
// header records it.
func AssetURL(resourceURL, assetPath string) string {
	if resourceURL == "" {
		return assetPath
	}

	return strings.TrimSuffix(resourceURL, "/") + "/" + path.Clean(assetPath)
}

func literal(s string) string {
	b, _ := json.Marshal(s)

	return string(b)
}

// Package packages models the packages that take part in a build: the
// primary project, the built-in runtime and every linked library. It holds
// the library locator and the build queue.
package packages

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
)

// ConfigFileNames are the config file names probed in a package root, in
// priority order.
var ConfigFileNames = []string{config.FileName, "jah.yml", "jah.yaml"}

// Package is one package root on some filesystem. Its config is loaded on
// first use and cached; a Package is safe for concurrent use.
type Package struct {
	Root       string
	ConfigFile string
	Fs         afero.Fs

	config func() (*config.Config, error)
}

// New returns the package whose config file is file.
func New(fs afero.Fs, file string) *Package {
	p := &Package{
		Root:       filepath.Dir(file),
		ConfigFile: file,
		Fs:         fs,
	}
	p.config = sync.OnceValues(func() (*config.Config, error) {
		return config.Load(p.Fs, p.ConfigFile)
	})

	return p
}

// Open returns the package rooted at root, probing ConfigFileNames.
func Open(fs afero.Fs, root string) (*Package, error) {
	file, ok := FindConfigFile(fs, root)
	if !ok {
		return nil, jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "no config file in package", nil).WithFile(root)
	}

	return New(fs, file), nil
}

// FindConfigFile returns the first config file present in dir.
func FindConfigFile(fs afero.Fs, dir string) (string, bool) {
	for _, name := range ConfigFileNames {
		file := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fs, file); ok {
			return file, true
		}
	}

	return "", false
}

// Config returns the loaded config of the package.
func (p *Package) Config() (*config.Config, error) {
	return p.config()
}

// Key identifies the package across filesystems.
func (p *Package) Key() string {
	return p.Fs.Name() + ":" + p.Root
}

// Same reports whether p and other are the same package root.
func (p *Package) Same(other *Package) bool {
	return p != nil && other != nil && p.Key() == other.Key()
}

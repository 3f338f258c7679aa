package packages

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/logging"
)

// DependencyDir is the directory name libraries are installed under.
const DependencyDir = "node_modules"

// Locator resolves a library name to the root directory of that library.
type Locator struct {
	Fs afero.Fs
	// ProjectRoot holds the project's own dependency directory.
	ProjectRoot string
	// HomeDir holds the user-global ~/.node_modules directory.
	HomeDir string
	// InstallPrefix holds <prefix>/lib/node_modules.
	InstallPrefix string
	// RuntimeRoot is where the jah runtime lives on disk. When it sits inside
	// a dependency directory the locator walks up through the packages that
	// depend on it. Empty disables the walk.
	RuntimeRoot string

	Logger logging.Logger
}

// NewLocator returns a locator for projectRoot on the OS environment: the
// user's home directory and the install prefix of the running executable.
func NewLocator(fs afero.Fs, projectRoot, runtimeRoot string, logger logging.Logger) *Locator {
	home, _ := os.UserHomeDir()

	var prefix string
	if exe, err := os.Executable(); err == nil {
		prefix = filepath.Join(filepath.Dir(exe), "..")
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &Locator{
		Fs:            fs,
		ProjectRoot:   projectRoot,
		HomeDir:       home,
		InstallPrefix: prefix,
		RuntimeRoot:   runtimeRoot,
		Logger:        logger.WithComponent("locator"),
	}
}

// Candidates lists the directories searched for name, in priority order.
func (l *Locator) Candidates(name string) []string {
	var paths []string

	if l.ProjectRoot != "" {
		paths = append(paths, filepath.Join(l.ProjectRoot, DependencyDir, name))
	}
	if l.HomeDir != "" {
		paths = append(paths, filepath.Join(l.HomeDir, "."+DependencyDir, name))
	}
	if l.InstallPrefix != "" {
		paths = append(paths, filepath.Join(l.InstallPrefix, "lib", DependencyDir, name))
	}

	if l.RuntimeRoot == "" {
		return paths
	}

	parentModules := filepath.Dir(l.RuntimeRoot)
	parentPackage := filepath.Dir(parentModules)
	for filepath.Base(parentModules) == DependencyDir {
		if ok, _ := afero.Exists(l.Fs, filepath.Join(parentPackage, config.MetadataFileName)); !ok {
			break
		}
		paths = append(paths,
			filepath.Join(parentModules, name),
			parentPackage,
		)

		parentModules = filepath.Dir(parentPackage)
		parentPackage = filepath.Dir(parentModules)
	}

	return paths
}

// Find returns the root of the first candidate holding a config file and a
// package.json that declares name.
func (l *Locator) Find(name string) (string, error) {
	ctx := context.Background()
	candidates := l.Candidates(name)

	for _, dir := range candidates {
		if _, ok := FindConfigFile(l.Fs, dir); !ok {
			continue
		}
		declared, err := config.ReadPackageName(l.Fs, dir)
		if err != nil {
			l.Logger.Warn(ctx, err, "Skipping library candidate", "path", dir)
			continue
		}
		if declared != name {
			l.Logger.Debug(ctx, "Library name mismatch", "path", dir, "declared", declared, "wanted", name)
			continue
		}

		l.Logger.Debug(ctx, "Found library", "library", name, "path", dir)

		return dir, nil
	}

	return "", jaherrors.NewLibraryNotFoundError(name, candidates)
}

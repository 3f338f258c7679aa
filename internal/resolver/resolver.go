// Package resolver maps virtual mount paths onto physical files. The bundler
// and the dev server share it, so a path valid against a build is valid
// against the live server.
package resolver

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/packages"
)

// MountMatch is a resolved virtual path.
type MountMatch struct {
	// File is the physical path on Fs.
	File string
	// Mount is the virtual path the file is registered under.
	Mount string
	Fs    afero.Fs
	// Entry is the queue entry that matched, nil for the primary project.
	Entry *packages.Entry
	IsDir bool
}

// Allow returns the extension whitelist governing the match: the one of the
// package the file was found in, or fallback for the primary project.
func (m *MountMatch) Allow(fallback func(string) bool) func(string) bool {
	if m.Entry != nil {
		if cfg, err := m.Entry.Package.Config(); err == nil {
			return cfg.Allows
		}
	}

	return fallback
}

// Resolver resolves virtual paths against a build queue and the primary
// project.
type Resolver struct {
	queue   *packages.Queue
	primary *packages.Package
}

// New returns a resolver over queue, falling back to primary.
func New(queue *packages.Queue, primary *packages.Package) *Resolver {
	return &Resolver{queue: queue, primary: primary}
}

// Resolve maps virtualPath to a file. Queue entries are tried in insertion
// order and the first whose mount prefixes the path wins, even when a later
// entry would hold a longer matching mount. Paths matching no entry resolve
// under the primary project's source path. A match whose file does not
// exist yields ErrMountNotFound.
func (r *Resolver) Resolve(virtualPath string) (*MountMatch, error) {
	vp := config.NormalizeMount(virtualPath)

	match, err := r.match(vp)
	if err != nil {
		return nil, err
	}

	info, err := match.Fs.Stat(match.File)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jaherrors.NewMountNotFoundError(vp)
		}

		return nil, jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "unable to stat mounted file", err).WithFile(match.File)
	}
	match.IsDir = info.IsDir()

	return match, nil
}

func (r *Resolver) match(vp string) (*MountMatch, error) {
	if r.queue != nil {
		for _, e := range r.queue.Entries() {
			mount, err := e.Mount()
			if err != nil {
				return nil, err
			}
			rest, ok := underMount(vp, mount)
			if !ok {
				continue
			}
			cfg, err := e.Package.Config()
			if err != nil {
				return nil, err
			}

			return &MountMatch{
				File:  joinSource(cfg.SourcePath, rest),
				Mount: path.Join(mount, rest),
				Fs:    e.Package.Fs,
				Entry: e,
			}, nil
		}
	}

	cfg, err := r.primary.Config()
	if err != nil {
		return nil, err
	}

	for _, extra := range extraPaths(cfg) {
		if rest, ok := underMount(vp, extra.mount); ok && extra.mount != "/" {
			return &MountMatch{
				File:  joinSource(extra.dir, rest),
				Mount: path.Join(extra.mount, rest),
				Fs:    r.primary.Fs,
			}, nil
		}
	}

	return &MountMatch{
		File:  joinSource(cfg.SourcePath, vp),
		Mount: vp,
		Fs:    r.primary.Fs,
	}, nil
}

// underMount reports whether vp lies at or below mount, on a path segment
// boundary, and returns the remainder.
func underMount(vp, mount string) (string, bool) {
	if mount == "/" {
		return vp, true
	}
	if vp == mount {
		return "/", true
	}
	if strings.HasPrefix(vp, mount+"/") {
		return vp[len(mount):], true
	}

	return "", false
}

func joinSource(sourcePath, rest string) string {
	return filepath.Join(sourcePath, filepath.FromSlash(rest))
}

type extraPath struct {
	dir   string
	mount string
}

// extraPaths returns the legacy paths map of a project as absolute source
// directories, longest mount first.
func extraPaths(cfg *config.Config) []extraPath {
	out := make([]extraPath, 0, len(cfg.Paths))
	for dir, mount := range cfg.Paths {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Dir, dir)
		}
		out = append(out, extraPath{dir: dir, mount: config.NormalizeMount(mount)})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].mount) != len(out[j].mount) {
			return len(out[i].mount) > len(out[j].mount)
		}

		return out[i].mount < out[j].mount
	})

	return out
}

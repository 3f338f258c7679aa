package resolver

import (
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/packages"
)

// Tree is a source directory exposed under a mount.
type Tree struct {
	Fs     afero.Fs
	Dir    string
	Mount  string
	Config *config.Config
	// Entry is the queue entry owning the tree, nil for the primary project.
	Entry *packages.Entry
}

// WalkFunc is called for every directory and admitted file of a tree.
// Returning filepath.SkipDir for a directory skips its contents.
type WalkFunc func(file, mount string, isDir bool) error

// Walk visits root depth first in name order, skipping dotfiles and files
// the allow filter rejects. A nil filter admits everything. root may be a
// single file.
func Walk(fsys afero.Fs, root, mount string, allow func(ext string) bool, fn WalkFunc) error {
	info, err := fsys.Stat(root)
	if err != nil {
		return jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "unable to read source path", err).WithFile(root)
	}
	if !info.IsDir() {
		if allow == nil || allow(Ext(root)) {
			return fn(root, mount, false)
		}

		return nil
	}

	return walkDir(fsys, root, mount, allow, fn)
}

func walkDir(fsys afero.Fs, dir, mount string, allow func(ext string) bool, fn WalkFunc) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "unable to list directory", err).WithFile(dir)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		file := filepath.Join(dir, name)
		childMount := path.Join(mount, norm.NFC.String(name))

		if entry.IsDir() {
			if err := fn(file, childMount, true); err != nil {
				if errors.Is(err, fs.SkipDir) {
					continue
				}

				return err
			}
			if err := walkDir(fsys, file, childMount, allow, fn); err != nil {
				return err
			}

			continue
		}

		if allow != nil && !allow(Ext(name)) {
			continue
		}
		if err := fn(file, childMount, false); err != nil {
			return err
		}
	}

	return nil
}

// Ext returns the lower-case extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Trees returns every mounted source tree: queue entries in order, then the
// primary project and its legacy extra paths.
func (r *Resolver) Trees() ([]Tree, error) {
	var trees []Tree

	if r.queue != nil {
		for _, e := range r.queue.Entries() {
			cfg, err := e.Package.Config()
			if err != nil {
				return nil, err
			}
			mount, err := e.Mount()
			if err != nil {
				return nil, err
			}
			trees = append(trees, Tree{Fs: e.Package.Fs, Dir: cfg.SourcePath, Mount: mount, Config: cfg, Entry: e})
		}
	}

	cfg, err := r.primary.Config()
	if err != nil {
		return nil, err
	}
	trees = append(trees, Tree{Fs: r.primary.Fs, Dir: cfg.SourcePath, Mount: "/", Config: cfg})

	extras := extraPaths(cfg)
	for i := len(extras) - 1; i >= 0; i-- {
		trees = append(trees, Tree{Fs: r.primary.Fs, Dir: extras[i].dir, Mount: extras[i].mount, Config: cfg})
	}

	return trees, nil
}

// Mounts lists the mount path of every file of every tree, in walk order.
func (r *Resolver) Mounts() ([]string, error) {
	trees, err := r.Trees()
	if err != nil {
		return nil, err
	}

	var mounts []string
	for _, t := range trees {
		err := Walk(t.Fs, t.Dir, t.Mount, t.Config.Allows, func(_, mount string, isDir bool) error {
			if !isDir {
				mounts = append(mounts, mount)
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return mounts, nil
}

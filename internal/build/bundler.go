// Package build assembles the bundles of a jah project and writes them,
// together with the public files and the remote assets, into the build
// directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/logging"
	"github.com/conneroisu/jah/internal/mimetypes"
	"github.com/conneroisu/jah/internal/packages"
	"github.com/conneroisu/jah/internal/resolver"
	"github.com/conneroisu/jah/internal/runtime"
	"github.com/conneroisu/jah/internal/template"
	"github.com/conneroisu/jah/internal/wrap"
)

// PublicDir is the directory of a project mirrored into the build root.
const PublicDir = "public"

// Options configures a Bundler.
type Options struct {
	// BuildDir is the absolute directory everything is written below.
	BuildDir string
	// Output receives the build. Defaults to the primary package's Fs.
	Output  afero.Fs
	Logger  logging.Logger
	Metrics *BuildMetrics
}

// Bundler builds one project: its queue of external packages plus the
// primary package.
type Bundler struct {
	queue    *packages.Queue
	resolver *resolver.Resolver
	primary  *packages.Package
	cfg      *config.Config
	wrapper  *wrap.Wrapper
	buildDir string
	out      afero.Fs
	logger   logging.Logger
	metrics  *BuildMetrics
}

// Artifact is one file written by a build.
type Artifact struct {
	Name string
	Path string
	Size int64
}

// Result describes a finished build.
type Result struct {
	Bundles  []Artifact
	Copies   []CopyJob
	Duration time.Duration
}

// NewBundler returns a bundler for the queue's primary package.
func NewBundler(queue *packages.Queue, opts Options) (*Bundler, error) {
	primary := queue.Primary()
	cfg, err := primary.Config()
	if err != nil {
		return nil, err
	}
	if opts.BuildDir == "" {
		return nil, jaherrors.NewValidationError(jaherrors.ErrCodeInvalidPath, "build directory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	out := opts.Output
	if out == nil {
		out = primary.Fs
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewBuildMetrics()
	}

	return &Bundler{
		queue:    queue,
		resolver: resolver.New(queue, primary),
		primary:  primary,
		cfg:      cfg,
		wrapper:  wrap.New(cfg.PackResources),
		buildDir: opts.BuildDir,
		out:      out,
		logger:   logger.WithComponent("bundler"),
		metrics:  metrics,
	}, nil
}

// Resolver returns the resolver the bundler reads mounts through.
func (b *Bundler) Resolver() *resolver.Resolver {
	return b.resolver
}

// Metrics returns the build counters.
func (b *Bundler) Metrics() *BuildMetrics {
	return b.metrics
}

// bundleSet keeps bundle texts in creation order.
type bundleSet struct {
	names []string
	text  map[string]*strings.Builder
}

func newBundleSet() *bundleSet {
	return &bundleSet{text: make(map[string]*strings.Builder)}
}

func (s *bundleSet) get(name string) *strings.Builder {
	sb, ok := s.text[name]
	if !ok {
		sb = &strings.Builder{}
		s.text[name] = sb
		s.names = append(s.names, name)
	}

	return sb
}

func (s *bundleSet) Map() map[string]string {
	m := make(map[string]string, len(s.names))
	for _, name := range s.names {
		m[name] = s.text[name].String()
	}

	return m
}

// Packages assembles every bundle in memory, keyed by bundle filename.
func (b *Bundler) Packages() (map[string]string, error) {
	set, err := b.assemble()
	if err != nil {
		return nil, err
	}

	return set.Map(), nil
}

func (b *Bundler) assemble() (*bundleSet, error) {
	set := newBundleSet()
	if name := b.runtimeBundle(); name != "" {
		set.get(name)
	}
	set.get(b.cfg.MainFilename)

	for _, e := range b.queue.Entries() {
		cfg, err := e.Package.Config()
		if err != nil {
			return nil, err
		}
		mount, err := e.Mount()
		if err != nil {
			return nil, err
		}

		code, err := b.buildTree(e.Package.Fs, cfg.SourcePath, mount, cfg.Allows, nil)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", cfg.Name, err)
		}
		if rt := b.queue.Runtime(); rt != nil && rt == e {
			code = b.header() + code + runtime.Footer()
		}
		set.get(e.Output).WriteString(moduleize(code))
	}

	exts, err := b.externals()
	if err != nil {
		return nil, err
	}

	code, err := b.buildProject(exts)
	if err != nil {
		return nil, err
	}
	if b.queue.IsRuntime() {
		code = b.header() + code + runtime.Footer()
	}
	set.get(b.cfg.MainFilename).WriteString(moduleize(code))

	for _, ext := range exts {
		code, err := b.buildTree(ext.match.Fs, ext.match.File, ext.match.Mount, b.allowFor(ext.match), nil)
		if err != nil {
			return nil, err
		}
		set.get(ext.output).WriteString(moduleize(code))
	}

	return set, nil
}

// buildProject walks the primary package with the externalized subtrees
// left out.
func (b *Bundler) buildProject(exts []external) (string, error) {
	skip := skipped(exts)
	trees, err := b.resolver.Trees()
	if err != nil {
		return "", err
	}

	var parts []string
	for _, t := range trees {
		if t.Entry != nil {
			continue
		}
		code, err := b.buildTree(t.Fs, t.Dir, t.Mount, t.Config.Allows, skip)
		if err != nil {
			return "", err
		}
		if code != "" {
			parts = append(parts, code)
		}
	}

	return strings.Join(parts, "\n"), nil
}

// external is an externalize target resolved to a mounted file or
// directory, and the bundle it goes to.
type external struct {
	output string
	match  *resolver.MountMatch
}

// externals resolves the externalize keys that name subtrees rather than
// packages. Keys that resolve to nothing are left out.
func (b *Bundler) externals() ([]external, error) {
	var exts []external
	for _, key := range b.cfg.ExternalizeKeys() {
		if b.queue.NamesPackage(key) {
			continue
		}
		match, err := b.resolveSubtree(key)
		if err != nil {
			if errors.Is(err, jaherrors.ErrMountNotFound) {
				b.logger.Debug(context.Background(), "Externalized path not found", "mount", key)

				continue
			}

			return nil, err
		}
		exts = append(exts, external{output: b.cfg.Externalize[key], match: match})
	}

	return exts, nil
}

// skipped matches exactly the mounts that externals routes to other
// bundles, so nothing is dropped from every bundle.
func skipped(exts []external) func(mount string, isDir bool) bool {
	return func(mount string, isDir bool) bool {
		for _, ext := range exts {
			if ext.match.Mount == mount && ext.match.IsDir == isDir {
				return true
			}
		}

		return false
	}
}

// resolveSubtree resolves an externalize key. A key without an extension
// that resolves to nothing is retried as a script.
func (b *Bundler) resolveSubtree(key string) (*resolver.MountMatch, error) {
	key = config.NormalizeMount(key)
	match, err := b.resolver.Resolve(key)
	if err == nil || !errors.Is(err, jaherrors.ErrMountNotFound) || path.Ext(key) != "" {
		return match, err
	}

	return b.resolver.Resolve(key + "." + config.ScriptExtension)
}

func (b *Bundler) allowFor(match *resolver.MountMatch) func(string) bool {
	return match.Allow(b.cfg.Allows)
}

// buildTree wraps every file below root and joins the registrations.
func (b *Bundler) buildTree(fsys afero.Fs, root, mount string, allow func(string) bool, skip func(string, bool) bool) (string, error) {
	var regs []string

	err := resolver.Walk(fsys, root, mount, allow, func(file, m string, isDir bool) error {
		if skip != nil && skip(m, isDir) {
			b.logger.Debug(context.Background(), "Skipping externalized path", "mount", m)
			if isDir {
				return filepath.SkipDir
			}

			return nil
		}
		if isDir {
			return nil
		}

		res, err := b.wrapper.Wrap(fsys, file, m, "")
		if err != nil {
			return err
		}
		regs = append(regs, res.Registration(false))

		return nil
	})
	if err != nil {
		return "", err
	}

	return strings.Join(regs, "\n"), nil
}

func (b *Bundler) header() string {
	return runtime.Header(runtime.AssetURL(b.cfg.ResourceURL, b.cfg.AssetPath), b.cfg.MainModule)
}

// moduleize scopes code in an immediately invoked function.
func moduleize(code string) string {
	return "(function(){\n" + code + "\n})();"
}

// runtimeBundle names the bundle carrying the runtime, or "" when there is
// no runtime in the build.
func (b *Bundler) runtimeBundle() string {
	if rt := b.queue.Runtime(); rt != nil {
		return rt.Output
	}
	if b.queue.IsRuntime() {
		return b.cfg.MainFilename
	}

	return ""
}

// BundleNames lists the bundles a build writes, runtime bundle first. It
// does not read any source file.
func (b *Bundler) BundleNames() []string {
	set := newBundleSet()
	if name := b.runtimeBundle(); name != "" {
		set.get(name)
	}
	set.get(b.cfg.MainFilename)
	for _, e := range b.queue.Entries() {
		set.get(e.Output)
	}
	exts, err := b.externals()
	if err != nil {
		b.logger.Warn(context.Background(), err, "Unable to resolve externalized paths")
	}
	for _, ext := range exts {
		set.get(ext.output)
	}

	return set.names
}

// ScriptSources returns the script URLs of the bundles, relative to the
// build root.
func (b *Bundler) ScriptSources() []string {
	names := b.BundleNames()
	srcs := make([]string, len(names))
	for i, name := range names {
		srcs[i] = path.Join(b.cfg.Output.Script, name)
	}

	return srcs
}

// ScriptHTML renders the script includes of a production build.
func (b *Bundler) ScriptHTML(ctx context.Context) (string, error) {
	var sb strings.Builder
	if err := template.Scripts(b.ScriptSources()).Render(ctx, &sb); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// Build writes the bundles, mirrors the public directory and copies the
// remote assets. Copies run one at a time and the first failure aborts the
// build.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	op := logging.StartOperation(b.logger, "build")

	result, err := b.build(ctx)
	if err != nil {
		op.EndWithError(ctx, err)
		b.metrics.RecordBuild(nil, time.Since(start), err)

		return nil, err
	}
	result.Duration = time.Since(start)
	op.End(ctx)
	b.metrics.RecordBuild(result, result.Duration, nil)

	return result, nil
}

func (b *Bundler) build(ctx context.Context) (*Result, error) {
	set, err := b.assemble()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	scriptDir := filepath.Join(b.buildDir, filepath.FromSlash(b.cfg.Output.Script))
	for _, name := range set.names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(scriptDir, filepath.FromSlash(name))
		text := set.text[name].String()
		if err := b.write(target, []byte(text)); err != nil {
			return nil, err
		}
		b.logger.Info(ctx, "Wrote bundle", "bundle", name, "bytes", len(text))
		result.Bundles = append(result.Bundles, Artifact{Name: name, Path: target, Size: int64(len(text))})
	}

	copies := NewCopyQueue(b.out, b.logger)
	if err := b.queuePublic(copies); err != nil {
		return nil, err
	}
	if err := b.queueAssets(copies); err != nil {
		return nil, err
	}

	done, err := copies.Run(ctx)
	result.Copies = done
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (b *Bundler) write(target string, data []byte) error {
	if err := b.out.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return jaherrors.NewIOError(jaherrors.ErrCodeWriteFailed, "unable to create output directory", err).WithFile(target)
	}
	if err := afero.WriteFile(b.out, target, data, 0o644); err != nil {
		return jaherrors.NewIOError(jaherrors.ErrCodeWriteFailed, "unable to write bundle", err).WithFile(target)
	}

	return nil
}

// queuePublic schedules the public directory mirror. Template files are
// rendered with the script includes and written without their extension.
func (b *Bundler) queuePublic(q *CopyQueue) error {
	dir := filepath.Join(b.cfg.Dir, PublicDir)
	if ok, _ := afero.DirExists(b.primary.Fs, dir); !ok {
		b.logger.Debug(context.Background(), "No public directory", "path", dir)

		return nil
	}

	render := func(ctx context.Context, data []byte) ([]byte, error) {
		out, err := template.New(string(data)).Substitute(ctx, template.Values{
			"scripts": template.Scripts(b.ScriptSources()),
		})

		return []byte(out), err
	}

	return afero.Walk(b.primary.Fs, dir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		job := CopyJob{Kind: KindPublic, SrcFs: b.primary.Fs, Src: file, Dst: filepath.Join(b.buildDir, rel)}
		if template.IsTemplate(file) {
			job.Kind = KindTemplate
			job.Dst = template.Target(job.Dst)
			job.Render = render
		}
		q.Add(job)

		return nil
	})
}

// queueAssets schedules a copy of every remote resource to
// <build>/<assetPath>/<mount>.
func (b *Bundler) queueAssets(q *CopyQueue) error {
	trees, err := b.resolver.Trees()
	if err != nil {
		return err
	}
	assetDir := filepath.Join(b.buildDir, filepath.FromSlash(b.cfg.AssetPath))

	for _, t := range trees {
		err := resolver.Walk(t.Fs, t.Dir, t.Mount, t.Config.Allows, func(file, mount string, isDir bool) error {
			if isDir || !b.wrapper.IsRemote(file, mimetypes.Guess(file)) {
				return nil
			}
			q.Add(CopyJob{
				Kind:  KindAsset,
				SrcFs: t.Fs,
				Src:   file,
				Dst:   filepath.Join(assetDir, filepath.FromSlash(strings.TrimPrefix(mount, "/"))),
			})

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

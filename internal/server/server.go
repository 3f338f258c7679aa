// Package server is the jah development server. Every request resolves and
// wraps exactly one file with the same resolver and wrapper the bundler
// uses, so nothing is ever written to a build directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	goruntime "runtime"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/jah/internal/config"
	"github.com/conneroisu/jah/internal/events"
	"github.com/conneroisu/jah/internal/logging"
	"github.com/conneroisu/jah/internal/packages"
	"github.com/conneroisu/jah/internal/resolver"
	"github.com/conneroisu/jah/internal/runtime"
	"github.com/conneroisu/jah/internal/validation"
	"github.com/conneroisu/jah/internal/watcher"
	"github.com/conneroisu/jah/internal/websocket"
	"github.com/conneroisu/jah/internal/wrap"
)

// Routes under the runtime namespace.
const (
	NamespacePrefix  = "/" + runtime.Namespace
	ModulesPrefix    = NamespacePrefix + "/modules"
	AssetsPrefix     = NamespacePrefix + "/assets"
	HeaderPath       = NamespacePrefix + "/header.js"
	FooterPath       = NamespacePrefix + "/footer.js"
	LiveReloadPath   = NamespacePrefix + "/livereload"
	LiveReloadScript = NamespacePrefix + "/livereload.js"
)

// Event names triggered on the server's registry.
const (
	SourceWatcher = "watcher"
	EventChange   = "change"
)

const defaultDebounce = 200 * time.Millisecond

// Options configures a Server.
type Options struct {
	Host string
	Port int
	// Watch enables live reload.
	Watch bool
	// Open launches a browser once the server listens.
	Open          bool
	DebounceDelay time.Duration
	Logger        logging.Logger
}

// Revision counts source changes seen by the watcher.
type Revision struct {
	N     int
	Paths []string
}

// Server is the development server of one project.
type Server struct {
	queue    *packages.Queue
	primary  *packages.Package
	cfg      *config.Config
	resolver *resolver.Resolver
	wrapper  *wrap.Wrapper
	opts     Options
	logger   logging.Logger

	hub      *websocket.Hub
	events   *events.Registry[string]
	revision *events.Cell[Revision]

	mu           sync.Mutex
	httpServer   *http.Server
	listener     net.Listener
	ready        chan struct{}
	shutdownOnce sync.Once
}

var errStopped = errors.New("server stopped")

// New returns a server for the queue's primary package.
func New(queue *packages.Queue, opts Options) (*Server, error) {
	primary := queue.Primary()
	cfg, err := primary.Config()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = defaultDebounce
	}

	s := &Server{
		queue:    queue,
		primary:  primary,
		cfg:      cfg,
		resolver: resolver.New(queue, primary),
		wrapper:  wrap.New(cfg.PackResources),
		opts:     opts,
		logger:   opts.Logger.WithComponent("server"),
		events:   events.NewRegistry[string](),
		revision: events.NewCell(Revision{}),
		ready:    make(chan struct{}),
	}

	if opts.Watch {
		s.hub = websocket.NewHub(websocket.OriginValidatorFunc(s.allowedOrigin), opts.Logger)
		s.revision.OnBeforeChange(func(c *events.Change[Revision]) {
			if s.hub.IsShutdown() {
				c.Prevent()
			}
		})
		s.revision.OnChange(func(c events.Change[Revision]) {
			s.hub.Broadcast(websocket.Message{Type: websocket.TypeReload, Revision: c.New.N, Paths: c.New.Paths})
		})
	}

	s.events.Listen(SourceWatcher, EventChange, func(args ...any) {
		paths, _ := args[0].([]string)
		s.revision.Update(func(r Revision) Revision {
			return Revision{N: r.N + 1, Paths: paths}
		})
	})

	return s, nil
}

// Events returns the registry the watcher reports changes on.
func (s *Server) Events() *events.Registry[string] {
	return s.events
}

// Revision returns the current source revision.
func (s *Server) Revision() Revision {
	return s.revision.Get()
}

// Ready is closed once the server listens.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Start listens and serves until ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()
	close(s.ready)

	addr := "http://" + ln.Addr().String()
	s.logger.Info(ctx, "Serving project", "url", addr, "project", s.cfg.Name, "watch", s.opts.Watch)
	if s.opts.Open {
		go s.openBrowser(ctx, addr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return errStopped
	})
	if s.opts.Watch {
		g.Go(func() error {
			return s.watch(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStopped) {
		return err
	}

	return nil
}

// Shutdown stops the listener and disconnects live reload clients.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.hub != nil {
			if hubErr := s.hub.Shutdown(ctx); hubErr != nil {
				err = hubErr
			}
		}

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv != nil {
			if srvErr := srv.Shutdown(ctx); srvErr != nil {
				err = srvErr
			}
		}
		s.logger.Info(ctx, "Server stopped")
	})

	return err
}

// watch runs the source watcher until ctx is done.
func (s *Server) watch(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.opts.DebounceDelay, s.opts.Logger)
	if err != nil {
		return fmt.Errorf("file watcher: %w", err)
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddHandler(s.handleChanges)

	roots, err := s.watchRoots()
	if err != nil {
		_ = fw.Stop()

		return err
	}
	for _, root := range roots {
		if err := fw.AddRecursive(root); err != nil {
			s.logger.Warn(ctx, err, "Unable to watch directory", "path", root)
		}
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()

		return err
	}
	s.logger.Debug(ctx, "Watching sources", "directories", len(fw.WatchList()))

	<-ctx.Done()

	return fw.Stop()
}

// watchRoots lists the on-disk directories that feed responses: every
// source tree plus the public directory. In-memory trees such as the
// embedded runtime never change.
func (s *Server) watchRoots() ([]string, error) {
	trees, err := s.resolver.Trees()
	if err != nil {
		return nil, err
	}

	var roots []string
	seen := map[string]bool{}
	add := func(fsys afero.Fs, dir string) {
		if _, ok := fsys.(*afero.OsFs); !ok || seen[dir] {
			return
		}
		seen[dir] = true
		roots = append(roots, dir)
	}
	for _, t := range trees {
		add(t.Fs, t.Dir)
	}
	add(s.primary.Fs, publicDir(s.cfg))

	return roots, nil
}

func (s *Server) handleChanges(ctx context.Context, changes []watcher.ChangeEvent) error {
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
		s.logger.Debug(ctx, "Source changed", "path", c.Path, "type", c.Type.String())
	}
	s.events.Trigger(SourceWatcher, EventChange, paths)

	return nil
}

func (s *Server) allowedOrigin(origin string) bool {
	host := s.opts.Host
	port := s.opts.Port
	if addr := s.Addr(); addr != "" {
		if _, p, err := net.SplitHostPort(addr); err == nil {
			port, _ = strconv.Atoi(p)
		}
	}

	return validation.ValidateOrigin(origin, validation.LocalOrigins(host, port)) == nil
}

func (s *Server) openBrowser(ctx context.Context, addr string) {
	if err := validation.ValidateURL(addr); err != nil {
		s.logger.Warn(ctx, err, "Not opening browser")
		return
	}

	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", addr)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", addr)
	case "darwin":
		cmd = exec.Command("open", addr)
	default:
		s.logger.Warn(ctx, nil, "Opening a browser is not supported", "os", goruntime.GOOS)
		return
	}
	if err := cmd.Start(); err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}

// ScriptSources returns the dev script list: the header, one module URL
// per mounted file, the footer and, with live reload, its client.
func (s *Server) ScriptSources() ([]string, error) {
	mounts, err := s.resolver.Mounts()
	if err != nil {
		return nil, err
	}

	srcs := make([]string, 0, len(mounts)+3)
	srcs = append(srcs, HeaderPath)
	for _, m := range mounts {
		srcs = append(srcs, (&url.URL{Path: ModulesPrefix + m}).EscapedPath())
	}
	srcs = append(srcs, FooterPath)
	if s.opts.Watch {
		srcs = append(srcs, LiveReloadScript)
	}

	return srcs, nil
}

package server

import (
	"bufio"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/mimetypes"
	"github.com/conneroisu/jah/internal/resolver"
	"github.com/conneroisu/jah/internal/runtime"
	"github.com/conneroisu/jah/internal/template"
	"github.com/conneroisu/jah/internal/validation"
)

//go:embed livereload.js
var liveReloadClient string

const (
	publicDirName = "public"
	indexFile     = "index.html"
	notFoundBody  = "File not found"
)

func publicDir(cfg *config.Config) string {
	return filepath.Join(cfg.Dir, publicDirName)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /public", s.handleIndex)
	mux.HandleFunc("GET /public/", s.handlePublic)
	mux.HandleFunc("GET "+ModulesPrefix+"/", s.handleModule)
	mux.HandleFunc("GET "+AssetsPrefix+"/", s.handleAsset)
	mux.HandleFunc("GET "+HeaderPath, s.handleHeader)
	mux.HandleFunc("GET "+FooterPath, s.handleFooter)
	if s.hub != nil {
		mux.Handle("GET "+LiveReloadPath, s.hub)
		mux.HandleFunc("GET "+LiveReloadScript, s.handleLiveReloadScript)
	}
	mux.HandleFunc("/", s.handleNotFound)

	return s.logRequests(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.servePublic(w, r, indexFile)
}

func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	s.servePublic(w, r, strings.TrimPrefix(r.URL.Path, "/"+publicDirName+"/"))
}

// servePublic serves public/<rel>, or renders public/<rel>.template with
// the dev script list.
func (s *Server) servePublic(w http.ResponseWriter, r *http.Request, rel string) {
	if rel == "" {
		rel = indexFile
	}
	if err := validation.ValidateRequestPath("/" + rel); err != nil {
		s.logger.Warn(r.Context(), err, "Rejected request path", "path", r.URL.Path)
		s.handleNotFound(w, r)
		return
	}

	fs := s.primary.Fs
	file := filepath.Join(publicDir(s.cfg), filepath.FromSlash(rel))

	if info, err := fs.Stat(file); err == nil && !info.IsDir() {
		s.serveFile(w, r, fs, file, info.ModTime())
		return
	}

	tmpl := file + template.Extension
	data, err := afero.ReadFile(fs, tmpl)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	srcs, err := s.ScriptSources()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	out, err := template.New(string(data)).Substitute(r.Context(), template.Values{
		"scripts": template.Scripts(srcs),
	})
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType(file))
	_, _ = w.Write([]byte(out))
}

// handleModule answers with the tight registration of one mounted file.
func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	vp := strings.TrimPrefix(r.URL.Path, ModulesPrefix)
	match, ok := s.resolve(w, r, vp)
	if !ok {
		return
	}

	res, err := s.wrapper.Wrap(match.Fs, match.File, match.Mount, "")
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", mimetypes.Script)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(res.Registration(true)))
}

// handleAsset answers with the raw bytes of one mounted file.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	vp := strings.TrimPrefix(r.URL.Path, AssetsPrefix)
	match, ok := s.resolve(w, r, vp)
	if !ok {
		return
	}

	info, err := match.Fs.Stat(match.File)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.serveFile(w, r, match.Fs, match.File, info.ModTime())
}

func (s *Server) handleHeader(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", mimetypes.Script)
	_, _ = w.Write([]byte(runtime.Header(AssetsPrefix, s.cfg.MainModule)))
}

func (s *Server) handleFooter(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", mimetypes.Script)
	_, _ = w.Write([]byte(runtime.Footer()))
}

func (s *Server) handleLiveReloadScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", mimetypes.Script)
	_, _ = w.Write([]byte(liveReloadClient))
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundBody))
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// resolve maps a virtual path to a mounted file, answering 404 itself for
// invalid paths, unmounted paths, directories and files whose extension the
// owning package does not whitelist.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, vp string) (*resolver.MountMatch, bool) {
	if err := validation.ValidateRequestPath(vp); err != nil {
		s.logger.Warn(r.Context(), err, "Rejected request path", "path", r.URL.Path)
		s.handleNotFound(w, r)
		return nil, false
	}

	match, err := s.resolver.Resolve(vp)
	if err != nil {
		if errors.Is(err, jaherrors.ErrMountNotFound) {
			s.logger.Debug(r.Context(), "Mount not found", "path", vp)
			s.handleNotFound(w, r)
			return nil, false
		}
		s.serverError(w, r, err)
		return nil, false
	}
	if match.IsDir {
		s.handleNotFound(w, r)
		return nil, false
	}
	if allow := match.Allow(s.cfg.Allows); !allow(resolver.Ext(match.File)) {
		s.logger.Debug(r.Context(), "Extension not whitelisted", "path", vp)
		s.handleNotFound(w, r)
		return nil, false
	}

	return match, true
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, fs afero.Fs, file string, modTime time.Time) {
	f, err := fs.Open(file)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(file))
	http.ServeContent(w, r, filepath.Base(file), modTime, f)
}

func contentType(file string) string {
	mime := mimetypes.Guess(file)
	if strings.HasPrefix(mime, "text/") {
		return mime + "; charset=utf-8"
	}

	return mime
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection to the live reload websocket.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

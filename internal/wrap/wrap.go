// Package wrap turns one physical file into a registration in the runtime
// resource registry: a module factory for scripts, an inline literal for
// packed assets, or a remote stub for assets fetched at runtime.
package wrap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/mimetypes"
)

const (
	// FactoryOpen starts every module factory. The parameters are the only
	// bindings a module gets besides the registry itself.
	FactoryOpen = "function (exports, require, resource, module, __filename, __dirname) {"
	// FactoryClose ends every module factory.
	FactoryClose = "}"

	registry = "__jah__.resources"
)

// Loader selects how the runtime fetches a remote resource.
type Loader string

const (
	LoaderText   Loader = "text"
	LoaderImage  Loader = "image"
	LoaderScript Loader = "script"
)

// LoaderFor picks the loader variant for a MIME type.
func LoaderFor(mimetype string) Loader {
	major, minor, _ := strings.Cut(mimetype, "/")
	switch {
	case major == "image":
		return LoaderImage
	case strings.HasSuffix(minor, "javascript"):
		return LoaderScript
	default:
		return LoaderText
	}
}

// Resource is one wrapped file.
type Resource struct {
	Mount    string
	MimeType string
	Category mimetypes.Category
	Remote   bool
	// Loader is set for remote resources only.
	Loader Loader

	source  []byte
	payload string
}

// Source returns the raw bytes of a module; nil for assets.
func (r *Resource) Source() []byte {
	return r.source
}

// Data returns the expression stored as the registry entry's data. Tight
// modules carry no padding around the source.
func (r *Resource) Data(tight bool) string {
	if r.Category != mimetypes.CategoryScript || r.Remote {
		return r.payload
	}

	body := string(r.source)
	if !tight {
		body = "\n" + body + "\n"
	}

	return FactoryOpen + body + FactoryClose
}

// Registration returns the statement registering the resource under its
// mount. Tight mode drops the padding and the trailing banner.
func (r *Resource) Registration(tight bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s[%s] = {data: %s, mimetype: %s, remote: %t",
		registry, literal(r.Mount), r.Data(tight), literal(r.MimeType), r.Remote)
	if r.Remote {
		fmt.Fprintf(&b, ", loader: %s", literal(string(r.Loader)))
	}
	b.WriteString("};")

	if !tight && r.Category == mimetypes.CategoryScript {
		b.WriteString(" // END: " + r.Mount + "\n\n")
	}

	return b.String()
}

// Wrapper wraps files under one pack policy.
type Wrapper struct {
	Policy config.PackPolicy
}

// New returns a wrapper for the given pack policy.
func New(policy config.PackPolicy) *Wrapper {
	return &Wrapper{Policy: policy}
}

// IsRemote reports whether a file with this name and MIME type is left out
// of the bundle. Scripts never are.
func (w *Wrapper) IsRemote(file, mimetype string) bool {
	if mimetypes.Classify(mimetype) == mimetypes.CategoryScript {
		return false
	}

	return !w.Policy.Packs(filepath.Ext(file))
}

// Wrap reads file from fsys and wraps it under mount. An empty mimetype is
// guessed from the file name.
func (w *Wrapper) Wrap(fsys afero.Fs, file, mount, mimetype string) (*Resource, error) {
	if mimetype == "" {
		mimetype = mimetypes.Guess(file)
	}
	r := &Resource{
		Mount:    mount,
		MimeType: mimetype,
		Category: mimetypes.Classify(mimetype),
	}

	if w.IsRemote(file, mimetype) {
		r.Remote = true
		r.Loader = LoaderFor(mimetype)
		r.payload = "__jah__.assetURL + " + literal(mount)

		return r, nil
	}

	data, err := afero.ReadFile(fsys, file)
	if err != nil {
		return nil, jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "unable to read resource", err).WithFile(file)
	}

	switch r.Category {
	case mimetypes.CategoryScript:
		r.source = data
	case mimetypes.CategoryText:
		r.payload = textLiteral(data)
	case mimetypes.CategoryImage:
		r.payload = "__jah__.image(" + literal("data:"+mimetype+";base64,"+base64.StdEncoding.EncodeToString(data)) + ")"
	default:
		r.payload = literal(base64.StdEncoding.EncodeToString(data))
	}

	return r, nil
}

// literal renders s as a JavaScript string literal.
func literal(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}

	return string(b)
}

// textLiteral renders text as a JavaScript string literal. Bytes that are
// not valid UTF-8 become \u00XX escapes, so each keeps its value as a
// char code instead of collapsing to U+FFFD.
func textLiteral(data []byte) string {
	if utf8.Valid(data) {
		return literal(string(data))
	}

	var b strings.Builder
	b.WriteByte('"')
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, `\u%04x`, data[0])
		} else {
			s := literal(string(data[:size]))
			b.WriteString(s[1 : len(s)-1])
		}
		data = data[size:]
	}
	b.WriteByte('"')

	return b.String()
}

// Package template substitutes ${name} placeholders in page templates. The
// bundler and the dev server render public/*.template files through it, so
// both produce the same markup.
package template

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
)

// Extension marks a file rendered before it is served or mirrored.
const Extension = ".template"

var placeholder = regexp.MustCompile(`\$\{(\w+)\}`)

// Values maps placeholder names to the components rendered in their place.
type Values map[string]templ.Component

// Template is a parsed page template.
type Template struct {
	text string
}

// New returns a template over text.
func New(text string) *Template {
	return &Template{text: text}
}

// Substitute renders every placeholder that has a value. Unknown
// placeholders are left as they are.
func (t *Template) Substitute(ctx context.Context, values Values) (string, error) {
	var renderErr error

	out := placeholder.ReplaceAllStringFunc(t.text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		c, ok := values[name]
		if !ok || renderErr != nil {
			return m
		}

		var buf bytes.Buffer
		if err := c.Render(ctx, &buf); err != nil {
			renderErr = err

			return m
		}

		return buf.String()
	})
	if renderErr != nil {
		return "", renderErr
	}

	return out, nil
}

// Text is a value rendered verbatim.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)

		return err
	})
}

// Scripts renders one deferred script include per source, in order.
func Scripts(srcs []string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		for i, src := range srcs {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := html.Render(w, scriptNode(src)); err != nil {
				return err
			}
		}

		return nil
	})
}

func scriptNode(src string) *html.Node {
	return &html.Node{
		Type: html.ElementNode,
		Data: "script",
		Attr: []html.Attribute{
			{Key: "src", Val: src},
			{Key: "type", Val: "text/javascript"},
			{Key: "defer"},
		},
	}
}

// IsTemplate reports whether name is a template companion file.
func IsTemplate(name string) bool {
	return strings.HasSuffix(name, Extension)
}

// Target returns the name a template renders to.
func Target(name string) string {
	return strings.TrimSuffix(name, Extension)
}

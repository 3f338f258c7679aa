package template

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	tmpl := New("<head>${scripts}</head><p>${title} ${missing}</p>")

	out, err := tmpl.Substitute(context.Background(), Values{
		"scripts": Scripts([]string{"game/jah.js", "game/game.js"}),
		"title":   Text("Hi"),
	})
	require.NoError(t, err)

	assert.Equal(t,
		`<head><script src="game/jah.js" type="text/javascript" defer=""></script>`+"\n"+
			`<script src="game/game.js" type="text/javascript" defer=""></script></head><p>Hi ${missing}</p>`,
		out)
}

func TestScriptsEscapesSource(t *testing.T) {
	out, err := New("${scripts}").Substitute(context.Background(), Values{
		"scripts": Scripts([]string{`/a.js?x="1"&y=2`}),
	})
	require.NoError(t, err)

	assert.Equal(t, `<script src="/a.js?x=&#34;1&#34;&amp;y=2" type="text/javascript" defer=""></script>`, out)
}

func TestSubstituteError(t *testing.T) {
	failing := templ.ComponentFunc(func(context.Context, io.Writer) error {
		return errors.New("boom")
	})

	_, err := New("${x}").Substitute(context.Background(), Values{"x": failing})
	assert.EqualError(t, err, "boom")
}

func TestTemplateNames(t *testing.T) {
	assert.True(t, IsTemplate("index.html.template"))
	assert.False(t, IsTemplate("index.html"))
	assert.Equal(t, "index.html", Target("index.html.template"))
}

package wrap

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jah/internal/config"
	"github.com/conneroisu/jah/internal/mimetypes"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	return fs
}

func TestWrapModule(t *testing.T) {
	fs := memFs(t, map[string]string{"/src/main.js": "exports.x = 1"})

	r, err := New(config.PackPolicy{All: true}).Wrap(fs, "/src/main.js", "/main.js", "")
	require.NoError(t, err)

	assert.Equal(t, mimetypes.Script, r.MimeType)
	assert.False(t, r.Remote)
	assert.Equal(t,
		`__jah__.resources["/main.js"] = {data: function (exports, require, resource, module, __filename, __dirname) {`+
			"\nexports.x = 1\n"+
			`}, mimetype: "application/javascript", remote: false}; // END: /main.js`+"\n\n",
		r.Registration(false))
	assert.Equal(t,
		`__jah__.resources["/main.js"] = {data: function (exports, require, resource, module, __filename, __dirname) {exports.x = 1}, mimetype: "application/javascript", remote: false};`,
		r.Registration(true))
}

func TestWrapModuleRoundTrip(t *testing.T) {
	sources := []string{
		"",
		"var a = '}';\n",
		"// comment only",
		"function f() {\n\treturn \"\\u2028\"\n}\n\n",
		"\xff\xfe not utf8",
	}

	for _, src := range sources {
		fs := memFs(t, map[string]string{"/m.js": src})
		r, err := New(config.PackPolicy{}).Wrap(fs, "/m.js", "/m.js", "")
		require.NoError(t, err)

		for _, tight := range []bool{true, false} {
			data := r.Data(tight)
			require.True(t, strings.HasPrefix(data, FactoryOpen))
			require.True(t, strings.HasSuffix(data, FactoryClose))
			body := strings.TrimSuffix(strings.TrimPrefix(data, FactoryOpen), FactoryClose)
			if !tight {
				body = strings.TrimSuffix(strings.TrimPrefix(body, "\n"), "\n")
			}
			assert.Equal(t, src, body)
		}
		assert.Equal(t, []byte(src), r.Source())
	}
}

func TestWrapAssets(t *testing.T) {
	png := "\x89PNG\r\n"
	fs := memFs(t, map[string]string{
		"/src/level.txt": "line \"one\"\n",
		"/src/logo.png":  png,
		"/src/music.ogg": "OggS",
	})
	w := New(config.PackPolicy{All: true})

	txt, err := w.Wrap(fs, "/src/level.txt", "/level.txt", "")
	require.NoError(t, err)
	assert.Equal(t, `__jah__.resources["/level.txt"] = {data: "line \"one\"\n", mimetype: "text/plain", remote: false};`, txt.Registration(false))

	img, err := w.Wrap(fs, "/src/logo.png", "/logo.png", "")
	require.NoError(t, err)
	assert.Equal(t, mimetypes.CategoryImage, img.Category)
	assert.Equal(t, `__jah__.image("data:image/png;base64,`+base64.StdEncoding.EncodeToString([]byte(png))+`")`, img.Data(false))

	bin, err := w.Wrap(fs, "/src/music.ogg", "/music.ogg", "")
	require.NoError(t, err)
	assert.Equal(t, `"`+base64.StdEncoding.EncodeToString([]byte("OggS"))+`"`, bin.Data(true))
}

func TestWrapTextKeepsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"latin-1 text", "/src/a.txt", "caf\xe9", `"caf\u00e9"`},
		{"mixed with valid runes", "/src/menu.csv", "na\xefve,\"\xa3\",\u2615\n", `"na\u00efve,\"\u00a3\",` + "\u2615" + `\n"`},
		{"valid utf-8 untouched", "/src/b.txt", "caf\u00e9", `"caf` + "\u00e9" + `"`},
	}

	w := New(config.PackPolicy{All: true})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memFs(t, map[string]string{tt.file: tt.content})

			res, err := w.Wrap(fs, tt.file, "/x", "")
			require.NoError(t, err)
			assert.Equal(t, mimetypes.CategoryText, res.Category)
			assert.Equal(t, tt.want, res.Data(true))
			assert.NotContains(t, res.Data(true), "\ufffd")
		})
	}
}

func TestWrapRemotePolicy(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/src/logo.png": "png",
		"/src/main.js":  "js",
		"/src/a.json":   "{}",
	})
	w := New(config.PackPolicy{Extensions: []string{"png", "js"}})

	png, err := w.Wrap(fs, "/src/logo.png", "/logo.png", "")
	require.NoError(t, err)
	assert.False(t, png.Remote)

	js, err := w.Wrap(fs, "/src/main.js", "/main.js", "")
	require.NoError(t, err)
	assert.False(t, js.Remote)

	jsonRes, err := w.Wrap(fs, "/src/a.json", "/a.json", "")
	require.NoError(t, err)
	assert.True(t, jsonRes.Remote)
	assert.Equal(t, LoaderText, jsonRes.Loader)
	assert.Equal(t,
		`__jah__.resources["/a.json"] = {data: __jah__.assetURL + "/a.json", mimetype: "application/json", remote: true, loader: "text"};`,
		jsonRes.Registration(false))
}

func TestScriptsNeverRemote(t *testing.T) {
	w := New(config.PackPolicy{Extensions: nil})

	assert.False(t, w.IsRemote("/a/main.js", mimetypes.Script))
	assert.True(t, w.IsRemote("/a/logo.png", "image/png"))
}

func TestRemoteDoesNotReadFile(t *testing.T) {
	w := New(config.PackPolicy{})

	r, err := w.Wrap(afero.NewMemMapFs(), "/missing.png", "/missing.png", "")
	require.NoError(t, err)
	assert.True(t, r.Remote)
	assert.Equal(t, LoaderImage, r.Loader)
}

func TestWrapMissingFile(t *testing.T) {
	_, err := New(config.PackPolicy{All: true}).Wrap(afero.NewMemMapFs(), "/missing.js", "/missing.js", "")
	assert.Error(t, err)
}

func TestLoaderFor(t *testing.T) {
	assert.Equal(t, LoaderImage, LoaderFor("image/png"))
	assert.Equal(t, LoaderScript, LoaderFor("application/javascript"))
	assert.Equal(t, LoaderText, LoaderFor("text/plain"))
	assert.Equal(t, LoaderText, LoaderFor("application/octet-stream"))
}

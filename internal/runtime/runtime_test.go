package runtime

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	pkg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Root, pkg.Root)
	assert.Equal(t, "/jah/jah.json", pkg.ConfigFile)

	cfg, err := pkg.Config()
	require.NoError(t, err)
	assert.Equal(t, Name, cfg.Name)
	assert.Equal(t, "/jah", cfg.Mount)
	assert.True(t, cfg.IsLib)
	assert.Equal(t, "/jah/src", cfg.SourcePath)

	for _, f := range []string{"index.js", "events.js", "remote_resources.js"} {
		ok, err := afero.Exists(pkg.Fs, "/jah/src/"+f)
		require.NoError(t, err)
		assert.True(t, ok, f)
	}
}

func TestLoadIsolated(t *testing.T) {
	a, err := Load()
	require.NoError(t, err)
	b, err := Load()
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(a.Fs, "/jah/src/extra.js", []byte("x"), 0o644))
	ok, _ := afero.Exists(b.Fs, "/jah/src/extra.js")
	assert.False(t, ok)
}

func TestHeader(t *testing.T) {
	h := Header("/__jah__/assets", "main")

	assert.Equal(t,
		"if (typeof __jah__ == \"undefined\") window.__jah__ = {resources: {}, assetURL: \"/__jah__/assets\", mainModule: \"main\"};\n"+
			"__jah__.image = function (src) { var img = new Image(); img.src = src; return img; };\n",
		h)
}

func TestFooterRunsMainModule(t *testing.T) {
	f := Footer()

	assert.Contains(t, f, "require(jah.mainModule)")
	assert.Contains(t, f, "modules[key]")
}

func TestAssetURL(t *testing.T) {
	assert.Equal(t, "game/assets", AssetURL("", "game/assets"))
	assert.Equal(t, "http://cdn.test/game/assets", AssetURL("http://cdn.test", "game/assets/"))
}

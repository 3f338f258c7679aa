package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jah/internal/build"
	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/logging"
	"github.com/conneroisu/jah/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	return out.String(), err
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		file := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
		require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	}

	return dir
}

func TestBuildCommand(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"jah.json":                   `{}`,
		"package.json":               `{"name": "game"}`,
		"src/main.js":                "exports.start = function () {};",
		"public/index.html.template": "<html>${scripts}</html>",
		"public/site.css":            "body {}",
	})

	out, err := execute(t, "build", "--config", filepath.Join(dir, "jah.json"), "--build-dir", "out", "--watch=false")
	require.NoError(t, err)
	assert.Contains(t, out, "game.js")
	assert.Contains(t, out, "Built 1 bundle(s)")

	bundle, err := os.ReadFile(filepath.Join(dir, "out", "game", "game.js"))
	require.NoError(t, err)
	assert.Contains(t, string(bundle), `__jah__.resources["/main.js"]`)
	assert.Contains(t, string(bundle), `__jah__.resources["/jah/index.js"]`)

	index, err := os.ReadFile(filepath.Join(dir, "out", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `src="game/game.js"`)
	assert.FileExists(t, filepath.Join(dir, "out", "site.css"))
}

func TestBuildCommandMissingConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "build", "--config", filepath.Join(dir, "jah.json"), "--build-dir", "out", "--watch=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project config not found")
}

func TestOpenProjectMissingLibrary(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/jah.json", []byte(`{libs: ["cocos2d"]}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/src/main.js", []byte("1;"), 0o644))

	_, err := openProject(fs, &config.Settings{ConfigFile: "/proj/jah.json", BuildDir: "build"}, logging.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, jaherrors.ErrLibraryNotFound), err.Error())
}

func TestOpenProject(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/jah.json", []byte(`{}`), 0o644))

	p, err := openProject(fs, &config.Settings{ConfigFile: "/proj/jah.json", BuildDir: "build"}, logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, p.queue.Runtime())
	assert.Equal(t, "/proj", p.queue.Primary().Root)
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &build.Result{
		Bundles: []build.Artifact{
			{Name: "jah.js", Path: "/p/build/game/jah.js", Size: 512},
			{Name: "game.js", Path: "/p/build/game/game.js", Size: 3 * 1024},
		},
		Copies:   make([]build.CopyJob, 4),
		Duration: 1500 * time.Microsecond,
	})

	text := out.String()
	assert.Contains(t, text, "jah.js   512 B")
	assert.Contains(t, text, "game.js  3.0 KiB")
	assert.Contains(t, text, "Built 2 bundle(s), copied 4 file(s) in 2ms")
}

func TestRebuildSharesMetrics(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/jah.json", []byte(`{}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/package.json", []byte(`{"name": "game"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/src/main.js", []byte("exports.start = 1;"), 0o644))

	p, err := openProject(fs, &config.Settings{ConfigFile: "/proj/jah.json", BuildDir: "/proj/build"}, logging.Nop())
	require.NoError(t, err)

	reload := func() (*project, error) { return p, nil }
	broken := func() (*project, error) { return nil, errors.New("bad config") }

	var out bytes.Buffer
	metrics := build.NewBuildMetrics()
	_, err = buildOnce(context.Background(), &out, p, metrics)
	require.NoError(t, err)

	rebuild(context.Background(), &out, p, metrics, reload)
	rebuild(context.Background(), &out, p, metrics, broken)

	snap := metrics.GetSnapshot()
	assert.Equal(t, int64(3), snap.TotalBuilds)
	assert.Equal(t, int64(2), snap.SuccessfulBuilds)
	assert.Equal(t, int64(1), snap.FailedBuilds)
	assert.Equal(t, int64(2), snap.BundlesWritten)
	assert.Equal(t, "bad config", snap.LastError)
	assert.Contains(t, out.String(), "Builds: 2 (100% successful), 2 bundle(s)")
	assert.Contains(t, out.String(), "Builds: 3 (67% successful), 2 bundle(s)")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.size))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--format", "json", "--short=false")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Get().Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	out, err = execute(t, "version", "--format", "text", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Get().Short()+"\n", out)

	_, err = execute(t, "version", "--format", "xml", "--short=false")
	require.Error(t, err)
}

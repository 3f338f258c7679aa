package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jaherrors "github.com/conneroisu/jah/internal/errors"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func TestParseLenientDialect(t *testing.T) {
	data := []byte(`{
		// line comment
		mainModule: "game", /* block comment */
		sourcePath: "lib",
		resourceURL: "http://cdn.example.com:8080/x",
		libs: ["cocos2d", "box2d",],
	}`)

	raw, err := Parse(data, ".json")
	require.NoError(t, err)

	assert.Equal(t, "game", raw["mainModule"])
	assert.Equal(t, "lib", raw["sourcePath"])
	// a colon inside a string value survives
	assert.Equal(t, "http://cdn.example.com:8080/x", raw["resourceURL"])
	assert.Equal(t, []any{"cocos2d", "box2d"}, raw["libs"])
}

func TestParseYAML(t *testing.T) {
	raw, err := Parse([]byte("mainModule: app\npack_resources: [png]\n"), ".yml")
	require.NoError(t, err)

	assert.Equal(t, "app", raw["mainModule"])
	assert.Equal(t, []any{"png"}, raw["pack_resources"])
}

func TestParseAliases(t *testing.T) {
	raw, err := Parse([]byte(`{mainModuleName: "a", packResourcesPolicy: false, resourceURLPrefix: "/r"}`), ".json")
	require.NoError(t, err)

	assert.Equal(t, "a", raw["mainModule"])
	assert.Equal(t, false, raw["pack_resources"])
	assert.Equal(t, "/r", raw["resourceURL"])
	assert.NotContains(t, raw, "mainModuleName")
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{mainModule: }`), ".json")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	defaults := map[string]any{
		"mainModule":  "main",
		"sourcePath":  "src",
		"externalize": map[string]any{"jah": "jah.js"},
	}
	override := map[string]any{
		"sourcePath":  "lib",
		"externalize": map[string]any{"/geo": "geo.js"},
	}

	merged := Merge(defaults, override)

	assert.Equal(t, "main", merged["mainModule"])
	assert.Equal(t, "lib", merged["sourcePath"])
	assert.Equal(t, map[string]any{"jah": "jah.js", "/geo": "geo.js"}, merged["externalize"])
	// inputs are left untouched
	assert.Equal(t, map[string]any{"jah": "jah.js"}, defaults["externalize"])
}

func TestLoadDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/proj/jah.json":     `{}`,
		"/proj/package.json": `{"name": "My Game"}`,
	})

	cfg, err := Load(fs, "/proj/jah.json")
	require.NoError(t, err)

	assert.Equal(t, "/proj/jah.json", cfg.File)
	assert.Equal(t, "/proj", cfg.Dir)
	assert.Equal(t, "My Game", cfg.Name)
	assert.Equal(t, "/proj/src", cfg.SourcePath)
	assert.Equal(t, "my_game", cfg.Output.Script)
	assert.Equal(t, "my_game/assets", cfg.AssetPath)
	assert.Equal(t, "my_game.js", cfg.MainFilename)
	assert.Equal(t, "main", cfg.MainModule)
	assert.True(t, cfg.PackResources.All)
	assert.Nil(t, cfg.Extensions)
	assert.Empty(t, cfg.Externalize)
	assert.True(t, cfg.Allows("png"))
}

func TestLoadNormalization(t *testing.T) {
	tests := []struct {
		name   string
		config string
		check  func(t *testing.T, cfg *Config)
	}{
		{
			name:   "absolute source path kept",
			config: `{sourcePath: "/elsewhere/src"}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/elsewhere/src", cfg.SourcePath)
			},
		},
		{
			name:   "pack list always includes scripts",
			config: `{pack_resources: ["PNG", ".txt"]}`,
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.PackResources.All)
				assert.Equal(t, []string{"png", "txt", "js"}, cfg.PackResources.Extensions)
				assert.True(t, cfg.PackResources.Packs(".js"))
				assert.False(t, cfg.PackResources.Packs("jpg"))
			},
		},
		{
			name:   "pack false keeps scripts",
			config: `{pack_resources: false}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"js"}, cfg.PackResources.Extensions)
				assert.False(t, cfg.PackResources.Packs("png"))
			},
		},
		{
			name:   "output object",
			config: `{output: {script: "out/js", resources: "out/res"}}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "out/js", cfg.Output.Script)
				assert.Equal(t, "out/res", cfg.AssetPath)
				assert.Equal(t, "js.js", cfg.MainFilename)
			},
		},
		{
			name:   "output dot",
			config: `{output: "."}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "main.js", cfg.MainFilename)
				assert.Equal(t, "assets", cfg.AssetPath)
			},
		},
		{
			name:   "libs mixed forms",
			config: `{libs: ["cocos2d", {geometry: "/geo/"}]}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []Lib{{Name: "cocos2d"}, {Name: "geometry", Mount: "/geo"}}, cfg.Libs)
			},
		},
		{
			name:   "extensions whitelist",
			config: `{extensions: [".JS", "png"], mount: "lib/"}`,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Allows("js"))
				assert.False(t, cfg.Allows("txt"))
				assert.Equal(t, "/lib", cfg.Mount)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFiles(t, fs, map[string]string{
				"/proj/jah.json":     tt.config,
				"/proj/package.json": `{"name": "proj"}`,
			})

			cfg, err := Load(fs, "/proj/jah.json")
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		sentinel error
	}{
		{"malformed", `{mainModule: "a",, }`, jaherrors.ErrConfigParse},
		{"bad pack policy", `{pack_resources: "png"}`, jaherrors.ErrConfigInvalid},
		{"traversal in output", `{output: "../../etc"}`, jaherrors.ErrConfigInvalid},
		{"absolute externalize target", `{externalize: {"/geo": "/tmp/geo.js"}}`, jaherrors.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFiles(t, fs, map[string]string{"/proj/jah.json": tt.config})

			_, err := Load(fs, "/proj/jah.json")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestLoadMissingPackageJSONUsesDirName(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/work/space-shooter/jah.json": `{}`})

	cfg, err := Load(fs, "/work/space-shooter/jah.json")
	require.NoError(t, err)

	assert.Equal(t, "space-shooter", cfg.Name)
	assert.Equal(t, "space-shooter.js", cfg.MainFilename)
}

func TestNormalizeMount(t *testing.T) {
	assert.Equal(t, "/", NormalizeMount(""))
	assert.Equal(t, "/", NormalizeMount("/"))
	assert.Equal(t, "/lib/foo", NormalizeMount("lib/foo/"))
	// decomposed e-acute becomes the composed form
	assert.Equal(t, "/caf\u00e9", NormalizeMount("/cafe\u0301"))
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, s *Settings)
	}{
		{
			name: "defaults",
			setup: func() {
				viper.Reset()
				SetDefaults()
			},
			check: func(t *testing.T, s *Settings) {
				assert.Equal(t, "jah.json", s.ConfigFile)
				assert.Equal(t, "127.0.0.1", s.Host)
				assert.Equal(t, 4000, s.Port)
				assert.Equal(t, "build", s.BuildDir)
			},
		},
		{
			name: "overrides",
			setup: func() {
				viper.Reset()
				SetDefaults()
				viper.Set("port", 8080)
				viper.Set("watch", true)
				viper.Set("runtime", "/opt/jah")
			},
			check: func(t *testing.T, s *Settings) {
				assert.Equal(t, 8080, s.Port)
				assert.True(t, s.Watch)
				assert.Equal(t, "/opt/jah", s.Runtime)
			},
		},
		{
			name: "invalid port",
			setup: func() {
				viper.Reset()
				SetDefaults()
				viper.Set("port", 70000)
			},
			expectError: true,
		},
		{
			name: "dangerous host",
			setup: func() {
				viper.Reset()
				SetDefaults()
				viper.Set("host", "localhost; rm -rf /")
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func() {
				viper.Reset()
				SetDefaults()
				viper.Set("log-level", "chatty")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			s, err := LoadSettings()
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestSettingsBuildPath(t *testing.T) {
	s := &Settings{ConfigFile: "/proj/jah.json", BuildDir: "build"}
	p, err := s.BuildPath()
	require.NoError(t, err)
	assert.Equal(t, "/proj/build", p)

	s.BuildDir = "/tmp/out"
	p, err = s.BuildPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", p)
}

// Package config loads the per-package build configuration (jah.json,
// jah.yml) and the command line settings of the jah tool.
//
// A project or library root holds a config file and a package.json. The
// config file is written in a lenient JSON dialect (comments, unquoted keys
// and trailing commas are accepted) or in YAML. Values are merged over the
// built-in defaults, normalized and decoded into a Config. A Config is
// immutable once Load returns.
package config

import (
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	jaherrors "github.com/conneroisu/jah/internal/errors"
)

const (
	// FileName is the default config file name of a package.
	FileName = "jah.json"
	// MetadataFileName holds the package name used for library identity.
	MetadataFileName = "package.json"
	// ScriptExtension is always packed, whatever the pack policy says.
	ScriptExtension = "js"
)

// Config is the decoded build configuration of one package.
type Config struct {
	// File is the absolute path of the config file.
	File string `json:"-"`
	// Dir is the directory holding the config file.
	Dir string `json:"-"`
	// Name is the package name declared in package.json.
	Name string `json:"-"`

	SourcePath    string            `json:"sourcePath"`
	Output        Output            `json:"output"`
	AssetPath     string            `json:"assetPath"`
	ResourceURL   string            `json:"resourceURL"`
	MainModule    string            `json:"mainModule"`
	MainFilename  string            `json:"mainFilename"`
	PackResources PackPolicy        `json:"pack_resources"`
	Extensions    []string          `json:"extensions"`
	Libs          []Lib             `json:"libs"`
	Externalize   map[string]string `json:"externalize"`
	Mount         string            `json:"mount"`
	IsLib         bool              `json:"is_lib"`
	Paths         map[string]string `json:"paths"`
}

// Output names the bundle directory and the remote asset directory,
// relative to the build directory.
type Output struct {
	Script    string `json:"script"`
	Resources string `json:"resources"`
}

// PackPolicy decides which resources are embedded in a bundle. Everything
// it does not pack is left remote and copied next to the bundle.
type PackPolicy struct {
	All        bool     `json:"all"`
	Extensions []string `json:"extensions"`
}

// Packs reports whether files with the given extension are embedded.
func (p PackPolicy) Packs(ext string) bool {
	if p.All {
		return true
	}
	ext = normalizeExt(ext)
	if ext == ScriptExtension {
		return true
	}

	return slices.Contains(p.Extensions, ext)
}

// Lib is one declared library, with an optional mount override.
type Lib struct {
	Name  string `json:"name"`
	Mount string `json:"mount"`
}

// Allows reports whether the extensions whitelist admits the extension.
// A nil whitelist admits everything.
func (c *Config) Allows(ext string) bool {
	if c.Extensions == nil {
		return true
	}

	return slices.Contains(c.Extensions, normalizeExt(ext))
}

// ExternalizeKeys returns the externalize map keys in a stable order.
func (c *Config) ExternalizeKeys() []string {
	keys := make([]string, 0, len(c.Externalize))
	for k := range c.Externalize {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// keyAliases maps the long key names onto the ones used in the config files
// of existing packages.
var keyAliases = map[string]string{
	"mainModuleName":      "mainModule",
	"resourceURLPrefix":   "resourceURL",
	"packResourcesPolicy": "pack_resources",
	"packResources":       "pack_resources",
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeName turns a package name into a safe output directory name.
func SanitizeName(name string) string {
	return strings.ToLower(unsafeName.ReplaceAllString(name, "_"))
}

// Defaults returns the built-in configuration for a package with the given
// name.
func Defaults(name string) map[string]any {
	output := SanitizeName(name)
	if output == "" {
		output = "."
	}

	return map[string]any{
		"mainModule":     "main",
		"resourceURL":    "",
		"sourcePath":     "src",
		"output":         output,
		"assetPath":      path.Join(output, "assets"),
		"externalize":    map[string]any{},
		"pack_resources": true,
	}
}

// Merge overlays override onto defaults. Keys absent from override keep
// their default value; map values are merged one level deep.
func Merge(defaults, override map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(override))
	for k, v := range defaults {
		out[k] = v
	}

	for k, v := range override {
		dm, dok := out[k].(map[string]any)
		om, ook := v.(map[string]any)
		if dok && ook {
			merged := make(map[string]any, len(dm)+len(om))
			for mk, mv := range dm {
				merged[mk] = mv
			}
			for mk, mv := range om {
				merged[mk] = mv
			}
			out[k] = merged

			continue
		}
		out[k] = v
	}

	return out
}

// Parse decodes config text. YAML is used for .yml and .yaml files, the
// lenient JSON dialect for everything else.
func Parse(data []byte, ext string) (map[string]any, error) {
	raw := map[string]any{}

	switch strings.ToLower(ext) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	for long, short := range keyAliases {
		if v, ok := raw[long]; ok {
			if _, exists := raw[short]; !exists {
				raw[short] = v
			}
			delete(raw, long)
		}
	}

	return raw, nil
}

// ReadPackageName returns the name declared in dir/package.json, or "" when
// the file is missing.
func ReadPackageName(fs afero.Fs, dir string) (string, error) {
	file := filepath.Join(dir, MetadataFileName)
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		if exists, _ := afero.Exists(fs, file); !exists {
			return "", nil
		}

		return "", jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "unable to read package metadata", err).WithFile(file)
	}

	var meta struct {
		Name string `json:"name"`
	}
	if err := json5.Unmarshal(data, &meta); err != nil {
		return "", jaherrors.NewConfigParseError(file, err)
	}

	return meta.Name, nil
}

// Load reads, merges and normalizes the config file at file. The path is
// made absolute so every derived path is absolute too.
func Load(fs afero.Fs, file string) (*Config, error) {
	file, err := filepath.Abs(file)
	if err != nil {
		return nil, jaherrors.ErrInvalidPath(file)
	}
	dir := filepath.Dir(file)

	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "unable to read config", err).WithFile(file)
	}

	raw, err := Parse(data, filepath.Ext(file))
	if err != nil {
		return nil, jaherrors.NewConfigParseError(file, err)
	}

	name, err := ReadPackageName(fs, dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(dir)
	}

	cfg, err := build(raw, Defaults(name))
	if err != nil {
		return nil, jaherrors.NewConfigInvalidError(file, "invalid config values", err)
	}
	cfg.File = file
	cfg.Dir = dir
	cfg.Name = name

	if !filepath.IsAbs(cfg.SourcePath) {
		cfg.SourcePath = filepath.Join(dir, cfg.SourcePath)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, jaherrors.NewConfigInvalidError(file, "invalid config values", err)
	}

	return cfg, nil
}

func build(raw, defaults map[string]any) (*Config, error) {
	merged := Merge(defaults, raw)

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			outputHook,
			packPolicyHook,
			libsHook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, err
	}

	if cfg.Output.Script == "" {
		cfg.Output.Script = "."
	}
	if _, set := raw["assetPath"]; !set {
		if cfg.Output.Resources != "" {
			cfg.AssetPath = cfg.Output.Resources
		} else if _, outputSet := raw["output"]; outputSet {
			cfg.AssetPath = path.Join(cfg.Output.Script, "assets")
		}
	}
	if cfg.MainFilename == "" {
		cfg.MainFilename = mainFilename(cfg.Output.Script)
	}

	cfg.PackResources = normalizePolicy(cfg.PackResources)
	if cfg.Extensions != nil {
		exts := make([]string, 0, len(cfg.Extensions))
		for _, e := range cfg.Extensions {
			exts = append(exts, normalizeExt(e))
		}
		cfg.Extensions = exts
	}
	if cfg.Mount != "" {
		cfg.Mount = NormalizeMount(cfg.Mount)
	}
	for i := range cfg.Libs {
		if cfg.Libs[i].Mount != "" {
			cfg.Libs[i].Mount = NormalizeMount(cfg.Libs[i].Mount)
		}
	}
	if cfg.Externalize == nil {
		cfg.Externalize = map[string]string{}
	}

	return &cfg, nil
}

func mainFilename(output string) string {
	base := path.Base(output)
	if output == "" || base == "." || base == "/" {
		return "main.js"
	}

	return base + ".js"
}

// NormalizeMount returns the mount in leading-slash form without a trailing
// slash, with the name in Unicode NFC.
func NormalizeMount(mount string) string {
	mount = norm.NFC.String(filepath.ToSlash(mount))
	mount = path.Clean("/" + mount)

	return mount
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func normalizePolicy(p PackPolicy) PackPolicy {
	if p.All {
		return PackPolicy{All: true}
	}
	exts := make([]string, 0, len(p.Extensions)+1)
	for _, e := range p.Extensions {
		e = normalizeExt(e)
		if e != "" && !slices.Contains(exts, e) {
			exts = append(exts, e)
		}
	}
	if !slices.Contains(exts, ScriptExtension) {
		exts = append(exts, ScriptExtension)
	}

	return PackPolicy{Extensions: exts}
}

func outputHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Output{}) {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return map[string]any{"script": s}, nil
	}

	return data, nil
}

func packPolicyHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(PackPolicy{}) {
		return data, nil
	}

	switch v := data.(type) {
	case bool:
		return map[string]any{"all": v}, nil
	case []any:
		return map[string]any{"all": false, "extensions": v}, nil
	case []string:
		return map[string]any{"all": false, "extensions": v}, nil
	case nil:
		return map[string]any{"all": true}, nil
	default:
		return nil, fmt.Errorf("pack_resources must be a boolean or a list of extensions, got %T", data)
	}
}

// libsHook accepts "name", {"name": "/mount"} entries, or one object
// mapping names to mounts.
func libsHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]Lib{}) {
		return data, nil
	}

	var entries []any
	switch v := data.(type) {
	case []any:
		entries = v
	case []string:
		for _, s := range v {
			entries = append(entries, s)
		}
	case map[string]any:
		entries = []any{v}
	case nil:
		return []any{}, nil
	default:
		return nil, fmt.Errorf("libs must be a list, got %T", data)
	}

	out := make([]any, 0, len(entries))
	for _, entry := range entries {
		switch e := entry.(type) {
		case string:
			out = append(out, map[string]any{"name": e})
		case map[string]any:
			names := make([]string, 0, len(e))
			for name := range e {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				mount, ok := e[name].(string)
				if !ok {
					return nil, fmt.Errorf("mount for library %q must be a string", name)
				}
				out = append(out, map[string]any{"name": name, "mount": mount})
			}
		default:
			return nil, fmt.Errorf("invalid libs entry %v", entry)
		}
	}

	return out, nil
}

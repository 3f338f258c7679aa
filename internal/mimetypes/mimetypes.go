// Package mimetypes guesses a MIME type from a file extension and sorts
// types into the categories the resource wrapper dispatches on.
package mimetypes

import (
	"path/filepath"
	"strings"
)

// Script is the MIME type of module sources.
const Script = "application/javascript"

// Default is used for unknown extensions.
const Default = "application/octet-stream"

// Category is how a resource is embedded.
type Category int

const (
	CategoryBinary Category = iota
	CategoryScript
	CategoryText
	CategoryImage
)

func (c Category) String() string {
	switch c {
	case CategoryScript:
		return "script"
	case CategoryText:
		return "text"
	case CategoryImage:
		return "image"
	default:
		return "binary"
	}
}

var types = map[string]string{
	"js":    Script,
	"json":  "application/json",
	"txt":   "text/plain",
	"html":  "text/html",
	"htm":   "text/html",
	"css":   "text/css",
	"xml":   "application/xml",
	"svg":   "image/svg+xml",
	"csv":   "text/csv",
	"md":    "text/markdown",
	"tmx":   "application/xml",
	"tsx":   "application/xml",
	"plist": "application/xml",
	"fnt":   "text/plain",
	"glsl":  "text/plain",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"bmp":   "image/bmp",
	"webp":  "image/webp",
	"ico":   "image/x-icon",
	"mp3":   "audio/mpeg",
	"ogg":   "audio/ogg",
	"wav":   "audio/wav",
	"mp4":   "video/mp4",
	"webm":  "video/webm",
	"ttf":   "font/ttf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"pdf":   "application/pdf",
	"zip":   "application/zip",
}

// Guess returns the MIME type for the extension of filename.
func Guess(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if t, ok := types[ext]; ok {
		return t
	}

	return Default
}

// Classify sorts a MIME type into its embedding category.
func Classify(mimetype string) Category {
	major, minor, _ := strings.Cut(mimetype, "/")

	switch {
	case strings.HasSuffix(minor, "javascript"):
		return CategoryScript
	case major == "image" && minor != "svg+xml":
		return CategoryImage
	case major == "text", minor == "json", minor == "xml", minor == "svg+xml":
		return CategoryText
	default:
		return CategoryBinary
	}
}

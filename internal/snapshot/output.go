package snapshot

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultPrefix starts generated file names.
const DefaultPrefix = "pdfsnap"

// PathResolver derives output file paths.
type PathResolver struct {
	// Dir receives generated file names when no output path is configured.
	Dir string
	// Prefix starts generated file names.
	Prefix string
	// Random returns the unique part of generated names.
	Random func() int64
}

// Resolve returns the absolute path of the single image, which is also the
// base for tile paths. ext includes the leading dot.
func (p PathResolver) Resolve(cfg RenderConfig, ext string) (string, error) {
	name := cfg.OutputFilename
	if strings.ContainsRune(name, 0) || strings.ContainsRune(cfg.OutputPath, 0) {
		return "", newError(KindConfigInvalid, nil, "InvalidOutputPath: %q", name)
	}

	if name != "" {
		local, err := localPath(name)
		if err != nil {
			return "", err
		}
		name = local
	}

	dir := cfg.OutputPath
	if dir == "" {
		dir = p.Dir
	}

	var path string
	switch {
	case name == "" || isDir(name):
		if name != "" {
			dir = name
		}
		path = filepath.Join(dir, p.generatedName(cfg.Page, ext))
	case filepath.IsAbs(name) || cfg.OutputPath == "":
		path = name
	default:
		path = filepath.Join(cfg.OutputPath, name)
	}

	if filepath.Ext(path) == "" {
		path += ext
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", newError(KindConfigInvalid, err, "InvalidOutputPath: %q", path)
	}
	return abs, nil
}

func (p PathResolver) generatedName(page int, ext string) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	random := p.Random
	if random == nil {
		random = rand.Int64
	}
	return fmt.Sprintf("%s-%d-%d%s", prefix, page, random(), ext)
}

// TilePath derives the path of tile i from the single image path.
func TilePath(base string, i int) string {
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-split-%d%s", strings.TrimSuffix(base, ext), i, ext)
}

// FileURI formats an absolute path as a file:// URL.
func FileURI(path string) string {
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	return (&url.URL{Scheme: "file", Path: slashed}).String()
}

// localPath turns an output name that may be a file:// URL into a path.
func localPath(name string) (string, error) {
	if !strings.Contains(name, "://") {
		return name, nil
	}
	u, err := url.Parse(name)
	if err != nil {
		return "", newError(KindConfigInvalid, err, "InvalidOutputPath: %q", name)
	}
	if !strings.EqualFold(u.Scheme, "file") || u.Path == "" {
		return "", newError(KindConfigInvalid, nil, "InvalidOutputPath: %q", name)
	}
	return filepath.FromSlash(u.Path), nil
}

func isDir(name string) bool {
	return strings.HasSuffix(name, "/") || strings.HasSuffix(name, string(filepath.Separator))
}

package catalog

import (
	"embed"
	"io/fs"
	"log/slog"
	"path"
)

//go:embed content/*.yaml
var builtin embed.FS

// Builtin exposes the manifests compiled into the binary.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtin, "content")
	if err != nil {
		panic(err)
	}
	return sub
}

// Discover parses every *.yaml manifest at the root of fsys. Invalid
// manifests are logged and skipped so one typo does not take the catalog
// down.
func Discover(fsys fs.FS, logger *slog.Logger) ([]*Content, error) {
	if logger == nil {
		logger = slog.Default()
	}

	matches, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}

	var found []*Content
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			logger.Warn("Failed to read content manifest", "file", name, "error", err)
			continue
		}

		c, err := ParseContent(data)
		if err != nil {
			logger.Warn("Skipping invalid content manifest", "file", path.Base(name), "error", err)
			continue
		}
		found = append(found, c)
	}

	return found, nil
}

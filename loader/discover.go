package loader

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SplitSearchPath splits a search-path value on the OS list separator,
// trimming blanks and dropping empty entries.
func SplitSearchPath(value string) []string {
	var out []string
	for _, p := range filepath.SplitList(value) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Discover returns the document files reachable from paths, in search-path
// order. A directory contributes its document files (non-recursive) in
// lexical order; a file is included when it has a document extension.
// Missing or unreadable entries are skipped.
func Discover(paths []string, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("search path entry does not exist", "path", p)
			} else {
				logger.Warn("cannot stat search path entry", "path", p, "error", err)
			}
			continue
		}

		if !info.IsDir() {
			if IsDocumentFile(p) {
				add(p)
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			logger.Warn("cannot list search path directory", "path", p, "error", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !IsDocumentFile(e.Name()) {
				continue
			}
			add(filepath.Join(p, e.Name()))
		}
	}
	return files
}

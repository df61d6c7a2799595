package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
)

// Options configures a Load call.
type Options struct {
	Family core.Family
	// Paths are search-path entries; files or directories.
	Paths  []string
	Logger *slog.Logger
}

// Result holds the documents loaded for one family, in merge order, plus
// diagnostics for every document that was skipped.
type Result struct {
	Documents   []layout.Document
	Diagnostics []layout.Diagnostic
}

// ParseError reports a document that could not be read or parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load discovers and parses every document for opts.Family. A document that
// fails to read or parse is logged, reported as a diagnostic and skipped;
// the rest still load. The returned documents are stably sorted by
// ascending priority, ties keeping discovery order.
// The only error returned is ctx.Err() when the context ends mid-batch.
func Load(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for _, path := range Discover(opts.Paths, logger) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		doc, code, err := LoadDocument(path, opts.Family)
		if err != nil {
			logger.Warn("skipping layout document", "family", opts.Family, "path", path, "error", err)
			res.Diagnostics = append(res.Diagnostics, layout.Diagnostic{
				Code:     code,
				Severity: layout.SeverityError,
				Message:  err.Error(),
				Source:   path,
			})
			continue
		}
		logger.Debug("loaded layout document",
			"family", opts.Family, "path", path, "priority", doc.Priority, "legacy", doc.Legacy)
		res.Documents = append(res.Documents, doc)
	}

	layout.StablePriorityOrder(res.Documents)
	return res, nil
}

// LoadDocument reads and parses a single document file. On failure it
// returns a *ParseError and the diagnostic code describing the failure.
func LoadDocument(path string, family core.Family) (layout.Document, string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from search path
	if err != nil {
		return layout.Document{}, layout.CodeUnreadable, &ParseError{Path: path, Err: err}
	}
	doc, err := ParseDocument(data, path, family)
	if err != nil {
		return layout.Document{}, layout.CodeParseFailed, &ParseError{Path: path, Err: err}
	}
	return doc, "", nil
}

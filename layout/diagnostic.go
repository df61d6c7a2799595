package layout

import (
	"fmt"

	"github.com/petal-labs/shelfwright/core"
)

// Diagnostic represents a non-fatal problem found while loading, validating
// or merging layout documents.
type Diagnostic struct {
	Code     string `json:"code"`             // e.g. "LD-001", "MG-001"
	Severity string `json:"severity"`         // "error" or "warning"
	Message  string `json:"message"`          // human-readable description
	Source   string `json:"source,omitempty"` // document path
	Path     string `json:"path,omitempty"`   // item path inside the document
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Diagnostic codes.
const (
	CodeParseFailed    = "LD-001" // document could not be parsed; skipped
	CodeUnreadable     = "LD-002" // document could not be read; skipped
	CodeInvalidKind    = "MG-001" // record kind is not a known node kind; record skipped
	CodeDuplicateID    = "DC-001" // two sibling records in one document share an id
	CodeNegativeOrder  = "DC-002" // negative sortOrder, treated as unset
	CodeKindNotAllowed = "DC-003" // kind used where it has no meaning (e.g. children on a separator)
)

// HasErrors returns true if any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

// Warnings returns only the warning-severity diagnostics.
func Warnings(diags []Diagnostic) []Diagnostic {
	var warns []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			warns = append(warns, d)
		}
	}
	return warns
}

// Validate checks a document for authoring mistakes that the merger would
// otherwise resolve silently:
//   - MG-001: record kind is not a known node kind
//   - DC-001: duplicate sibling ids within the document
//   - DC-002: negative sortOrder (warning)
//   - DC-003: children under a kind that cannot hold them (warning)
func (d Document) Validate() []Diagnostic {
	var diags []Diagnostic
	validateRecords(&diags, d.Source, d.Family, d.Items, "", "")
	return diags
}

func validateRecords(diags *[]Diagnostic, source string, family core.Family, records []Record, parent core.NodeKind, path string) {
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		top := path == ""
		recPath := fmt.Sprintf("items[%d]", i)
		if !top {
			recPath = fmt.Sprintf("%s.children[%d]", path, i)
		}

		kind, _, err := rec.resolveKind(fallbackKind(rec, parent, top, family))
		if err != nil {
			*diags = append(*diags, Diagnostic{
				Code:     CodeInvalidKind,
				Severity: SeverityError,
				Message:  err.Error(),
				Source:   source,
				Path:     recPath + ".kind",
			})
			continue
		}

		if rec.ID != "" {
			if first, dup := seen[rec.ID]; dup {
				*diags = append(*diags, Diagnostic{
					Code:     CodeDuplicateID,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("Duplicate id %q (first at index %d); records will be merged", rec.ID, first),
					Source:   source,
					Path:     recPath + ".id",
				})
			} else {
				seen[rec.ID] = i
			}
		}

		if rec.SortOrder != nil && *rec.SortOrder < 0 {
			*diags = append(*diags, Diagnostic{
				Code:     CodeNegativeOrder,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Negative sortOrder %d is treated as unset", *rec.SortOrder),
				Source:   source,
				Path:     recPath + ".sortOrder",
			})
		}

		if len(rec.Children) > 0 && (kind == core.NodeKindSeparator || kind == core.NodeKindLabel || kind == core.NodeKindVariant) {
			*diags = append(*diags, Diagnostic{
				Code:     CodeKindNotAllowed,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Children of %s records are ignored by hosts", kind),
				Source:   source,
				Path:     recPath + ".children",
			})
		}

		validateRecords(diags, source, family, rec.Children, kind, recPath)
	}
}

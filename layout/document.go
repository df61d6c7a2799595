// Package layout holds the document model for partial layout contributions
// and the operations that fold them into a canonical tree: merge, sort and
// structural validation.
package layout

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/petal-labs/shelfwright/core"
)

// Reserved identity of the container synthesized for legacy documents.
const (
	LegacyContainerID    = "extensions"
	LegacyContainerLabel = "Extensions"
)

// Top-level document keys.
const (
	keyMenus   = "menus"
	keyShelves = "shelves"
	keyLegacy  = "items"
)

// Document is one source's contribution to a layout family.
// It is built once at load time and never mutated afterwards.
type Document struct {
	Source   string      `json:"source,omitempty"`
	Priority int         `json:"sortOrder,omitempty"`
	Family   core.Family `json:"family"`
	Items    []Record    `json:"items"`
	// Legacy is set when the document was shimmed from the flat legacy shape.
	Legacy bool `json:"legacy,omitempty"`
}

// Record is a raw item record as authored in a document.
type Record struct {
	ID        string         `json:"id,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Type      string         `json:"type,omitempty"`
	Label     *string        `json:"label,omitempty"`
	Tooltip   *string        `json:"tooltip,omitempty"`
	Icon      *string        `json:"icon,omitempty"`
	Color     *string        `json:"color,omitempty"`
	SortOrder *int           `json:"sortOrder,omitempty"`
	Plugin    string         `json:"plugin,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Extra     map[string]any `json:"-"`
	Children  []Record       `json:"children,omitempty"`
}

var knownRecordKeys = map[string]bool{
	"id": true, "kind": true, "type": true, "label": true, "tooltip": true,
	"icon": true, "color": true, "sortOrder": true, "plugin": true,
	"arguments": true, "children": true,
}

// UnmarshalJSON decodes the known fields and collects every other key into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		if knownRecordKeys[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[key] = v
	}
	*r = Record(p)
	return nil
}

// MarshalJSON encodes the known fields and inlines Extra.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, known := knownRecordKeys[k]; !known {
			merged[k] = r.Extra[k]
		}
	}
	return json.Marshal(merged)
}

// resolveKind returns the record's declared node kind and item type.
// An explicit kind wins; otherwise a type naming a node kind is taken as
// the kind, and anything else stays an item type on the fallback kind.
func (r Record) resolveKind(fallback core.NodeKind) (core.NodeKind, string, error) {
	if r.Kind != "" {
		kind, err := core.ParseNodeKind(r.Kind)
		if err != nil {
			return "", "", err
		}
		return kind, r.Type, nil
	}
	if r.Type != "" {
		if kind, err := core.ParseNodeKind(r.Type); err == nil {
			return kind, "", nil
		}
	}
	return fallback, r.Type, nil
}

// fallbackKind returns the kind for a record without one. Top-level
// records become the family container; nested records follow the parent.
func fallbackKind(r Record, parent core.NodeKind, top bool, family core.Family) core.NodeKind {
	if top {
		return family.RootKind()
	}
	return parent.DefaultChildKind(len(r.Children) > 0)
}

// rawDocument is the on-disk document shape.
type rawDocument struct {
	SortOrder *int     `json:"sortOrder,omitempty"`
	Menus     []Record `json:"menus,omitempty"`
	Shelves   []Record `json:"shelves,omitempty"`
	Items     []Record `json:"items,omitempty"`
}

// DecodeDocument parses JSON document bytes for the given family.
// A document using the legacy flat "items" shape is wrapped into one
// container with the reserved id and label, so it merges exactly like
// its canonical equivalent.
func DecodeDocument(data []byte, source string, family core.Family) (Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Document{}, fmt.Errorf("parsing document: %w", err)
	}
	if probe == nil {
		return Document{}, fmt.Errorf("parsing document: top level must be an object")
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("parsing document: %w", err)
	}

	doc := Document{Source: source, Family: family}
	if raw.SortOrder != nil {
		doc.Priority = *raw.SortOrder
	}

	familyKey := keyMenus
	items := raw.Menus
	if family == core.FamilyShelf {
		familyKey = keyShelves
		items = raw.Shelves
	}

	_, hasFamily := probe[familyKey]
	_, hasLegacy := probe[keyLegacy]
	switch {
	case hasFamily:
		doc.Items = items
	case hasLegacy:
		doc.Items = []Record{ShimLegacy(family, raw.Items)}
		doc.Legacy = true
	default:
		return Document{}, fmt.Errorf("parsing document: no %q or %q list", familyKey, keyLegacy)
	}
	return doc, nil
}

// ShimLegacy wraps a flat legacy children list into the reserved top-level
// container record for the family.
func ShimLegacy(family core.Family, children []Record) Record {
	label := LegacyContainerLabel
	return Record{
		ID:       LegacyContainerID,
		Kind:     string(family.RootKind()),
		Label:    &label,
		Children: children,
	}
}

// StablePriorityOrder sorts documents by ascending priority while keeping
// the original order of documents with equal priority.
func StablePriorityOrder(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Priority < docs[j].Priority
	})
}

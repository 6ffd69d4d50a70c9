// Package maps orchestrates the generation of control maps for one image.
package maps

import "strings"

// Kind names a control map.
type Kind string

const (
	KindDepth        Kind = "depth"
	KindNormals      Kind = "normals"
	KindEdges        Kind = "edges"
	KindSegmentation Kind = "segmentation"
	KindFaceMask     Kind = "faceMask"
	KindHandsMask    Kind = "handsMask"
)

// AllKinds lists every kind the orchestrator knows.
var AllKinds = []Kind{KindDepth, KindNormals, KindEdges, KindSegmentation, KindFaceMask, KindHandsMask}

// DefaultKinds is the request used when none is given.
var DefaultKinds = []Kind{KindDepth, KindEdges, KindFaceMask, KindHandsMask}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKinds splits a comma-separated request into kinds, trimming
// whitespace and dropping empty tokens. Unknown tokens are kept; the
// orchestrator skips them. The result is never nil, so a request made only
// of blanks asks for nothing rather than for the defaults.
func ParseKinds(csv string) []Kind {
	kinds := []Kind{}
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		kinds = append(kinds, Kind(tok))
	}
	return kinds
}

// FormatKinds joins kinds with commas.
func FormatKinds(kinds []Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

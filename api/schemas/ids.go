package schemas

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Stable, content-derived identifiers. Short hex prefixes keep ids readable in
// logs while staying collision-safe at the scale of a single app's UI graph.

func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

// PageID derives the identifier for a page from its app and name.
func PageID(appID, name string) string {
	return shortHash(appID+":"+strings.TrimSpace(name), 16)
}

// IntentID derives the identifier for a registered intent.
func IntentID(appID, text string) string {
	return shortHash(appID+":"+strings.TrimSpace(text), 12)
}

// TransitionID derives the identifier for an edge from its source page and
// action signature, the same key the graph store indexes edges by.
func TransitionID(sourcePageID string, action Action) string {
	return shortHash(sourcePageID+"|"+action.Signature(), 12)
}

// Package confirm normalizes the explicit-confirmation flags accepted on
// protocol prepare steps. Only a small closed set of representations counts
// as confirmed; anything else fails closed.
package confirm

import (
	"encoding/json"
	"strings"
)

// Normalized reports whether v is an explicit truthy confirmation.
// Accepted: true, "true", "1", "yes", "y" (case-insensitive), numeric 1.
func Normalized(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y":
			return true
		}
		return false
	case float64: // JSON numbers decode to float64
		return t == 1
	case int:
		return t == 1
	case json.Number:
		return t.String() == "1"
	default:
		return false
	}
}

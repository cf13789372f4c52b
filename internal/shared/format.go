package shared

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalJSON serializes data to JSON, indented when pretty is set.
func MarshalJSON(data any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatDuration renders a duration in seconds as M:SS (or H:MM:SS past an hour).
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// VisibilityString renders a playlist visibility flag for display.
func VisibilityString(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// NormalizeTrackKey builds an identity key from a title and artist pair.
// Keys are case-insensitive with runs of whitespace collapsed, so cosmetic
// differences between catalogs produce the same key.
func NormalizeTrackKey(title, artist string) string {
	return normalizeText(title) + "|" + normalizeText(artist)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Package mode defines the supported search modes.
package mode

import "fmt"

// Mode selects the retrieval strategy for a search request.
type Mode string

const (
	// Semantic retrieves by embedding similarity only.
	Semantic Mode = "semantic"
	// Text retrieves via full-text search with a substring fallback.
	Text Mode = "text"
	// Hybrid runs Semantic and Text concurrently and fuses the ranked lists.
	Hybrid Mode = "hybrid"
	// Fuzzy retrieves via substring match only, with positional scores.
	Fuzzy Mode = "fuzzy"
)

// Parse validates a raw mode string. An empty string defaults to Hybrid.
func Parse(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return Hybrid, nil
	case Semantic, Text, Hybrid, Fuzzy:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown search mode %q", s)
	}
}

func (m Mode) String() string { return string(m) }

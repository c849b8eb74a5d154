package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	genreRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9 -]{1,49}$`)
	tagRegex   = regexp.MustCompile(`^[a-z0-9][a-z0-9 _-]{0,29}$`)
)

// Genres the library shows as filters. Other genres are accepted but only
// reachable through search.
var knownGenres = map[string]struct{}{
	"fantasy":    {},
	"scifi":      {},
	"mystery":    {},
	"romance":    {},
	"horror":     {},
	"thriller":   {},
	"adventure":  {},
	"historical": {},
	"literary":   {},
	"comedy":     {},
}

// NormalizeGenre lowercases and trims a genre. An empty genre is allowed.
func NormalizeGenre(genre string) (string, error) {
	genre = strings.ToLower(strings.TrimSpace(genre))
	if genre == "" {
		return "", nil
	}
	if !genreRegex.MatchString(genre) {
		return "", fmt.Errorf("genre must be 2-50 characters of letters, numbers, spaces, and hyphens")
	}
	return genre, nil
}

// IsKnownGenre reports whether genre is one of the library filters.
func IsKnownGenre(genre string) bool {
	_, ok := knownGenres[strings.ToLower(genre)]
	return ok
}

// ValidateTag checks an already lowercased and trimmed tag.
func ValidateTag(tag string) error {
	if !tagRegex.MatchString(tag) {
		return fmt.Errorf("tag %q must be 1-30 characters of letters, numbers, spaces, underscores, and hyphens", tag)
	}
	return nil
}

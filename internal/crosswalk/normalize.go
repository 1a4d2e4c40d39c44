package crosswalk

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameSuffixes lists generational suffixes stripped during player-name
// normalization. Providers disagree on whether to carry them.
var nameSuffixes = []string{
	" JR", " JR.", " SR", " SR.",
	" II", " III", " IV", " V",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// stripMarks removes diacritical marks after NFD decomposition, so that
// "São" and "Sao" normalize identically across providers.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes an entity name for cross-provider matching:
// trim, strip diacritics, uppercase, drop generational suffixes, fold
// punctuation, collapse whitespace.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}

	name = strings.ToUpper(name)

	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		".", "",
		",", "",
		"'", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// CompositeKey derives the deterministic fallback key from provider fields.
// It is a disambiguation aid for human curation only and never replaces a
// canonical identifier in published data.
func CompositeKey(name, team, position string) string {
	return NormalizeName(name) + "|" + strings.ToUpper(strings.TrimSpace(team)) +
		"|" + strings.ToUpper(strings.TrimSpace(position))
}

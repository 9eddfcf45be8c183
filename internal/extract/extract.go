// Package extract derives a geocoding candidate from a free-text item
// description.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// mapLinkRe matches map-service URL families, including shortened
	// goo.gl forms. The full matched URL is the candidate.
	mapLinkRe = regexp.MustCompile(`(?i)https?://(?:www\.)?(?:google\.[a-z.]{2,10}/maps|maps\.google\.[a-z.]{2,10}|maps\.app\.goo\.gl|goo\.gl/maps)\S*`)

	// coordPairRe matches a signed decimal latitude/longitude pair on one
	// line. Both components must carry a fractional part so integer runs
	// ("room 555, 1234") are not mistaken for coordinates.
	coordPairRe = regexp.MustCompile(`([-+]?\d{1,3}\.\d+)[ \t]*,[ \t]*([-+]?\d{1,3}\.\d+)`)
)

// minLineLen is the shortest first-line candidate worth sending to the
// geocoder, in runes.
const minLineLen = 4

// Candidate extracts a geocoding candidate from desc. Rules apply in
// priority order, first match wins, no fallback combination:
//
//  1. a map-service link, returned verbatim;
//  2. a decimal "lat,lng" pair with fractional parts, returned normalized
//     as "lat,lng";
//  3. the first non-empty line, if longer than three characters.
//
// ok is false when no rule matches. Candidate has no side effects.
func Candidate(desc string) (candidate string, ok bool) {
	if desc == "" {
		return "", false
	}
	desc = norm.NFC.String(desc)

	if url := mapLinkRe.FindString(desc); url != "" {
		// Strip sentence punctuation that the non-space run swallowed.
		url = strings.TrimRight(url, ".,);")
		return url, true
	}

	if m := coordPairRe.FindStringSubmatch(desc); m != nil {
		return m[1] + "," + m[2], true
	}

	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) >= minLineLen {
			return line, true
		}
		break
	}

	return "", false
}

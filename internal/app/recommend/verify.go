package recommend

import (
	"regexp"
	"strings"

	"github.com/satvikx/beats/internal/domain/track"
)

// Recommendation sources love remasters and live cuts of songs the
// user just heard. A candidate is rejected when it is the same song as
// a queued track: exact id match, or normalized-name match by the same
// artist. Covers (same name, different artist) are allowed.

var remasterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
	regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
	regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
	regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
	regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
	regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
}

var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
	regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
	regexp.MustCompile(`\s+-?\s*live$`),            // "- Live"
	regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
	regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
	regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeTrackName strips remaster and version decorations so
// alternate releases of one song compare equal.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

// isSameArtist compares main artists case-insensitively.
func isSameArtist(a, b track.Track) bool {
	if a.Artist == "" || b.Artist == "" {
		return false
	}
	return strings.EqualFold(a.Artist, b.Artist)
}

// isSameSong reports whether two tracks are versions of one song.
func isSameSong(a, b track.Track) bool {
	if a.ID == b.ID {
		return true
	}
	if normalizeTrackName(a.Title) != normalizeTrackName(b.Title) {
		return false
	}
	return isSameArtist(a, b)
}

// filterAgainstQueue drops candidates that duplicate a queued track or
// an earlier candidate.
func filterAgainstQueue(candidates, queue []track.Track) []track.Track {
	result := make([]track.Track, 0, len(candidates))

	for _, cand := range candidates {
		dup := false
		for _, q := range queue {
			if isSameSong(cand, q) {
				dup = true
				break
			}
		}
		if !dup {
			for _, kept := range result {
				if isSameSong(cand, kept) {
					dup = true
					break
				}
			}
		}
		if !dup {
			result = append(result, cand)
		}
	}

	return result
}

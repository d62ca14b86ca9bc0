package storage

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxSlugRunes = 80
	maxSlugBytes = 200
)

var (
	separatorRe = regexp.MustCompile(`[/\\]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
	disallowRe  = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s_.\-]+`)
)

// Slugify turns a title into a file-name-safe fragment: path separators become
// "-", characters outside letters, digits, space, "_", "-" and "." are dropped,
// whitespace becomes "_" and the result is capped at 80 runes. An empty result
// is replaced by "note-HHMMSS" taken from now.
func Slugify(title string, now time.Time) string {
	s := separatorRe.ReplaceAllString(title, "-")
	s = disallowRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = truncate(s)
	s = strings.Trim(s, "_. ")
	if s == "" {
		return "note-" + now.Format("150405")
	}
	return s
}

// truncate cuts s to maxSlugRunes runes and maxSlugBytes bytes on a rune boundary.
func truncate(s string) string {
	n, size := 0, 0
	for i, r := range s {
		rl := utf8.RuneLen(r)
		if n == maxSlugRunes || size+rl > maxSlugBytes {
			return s[:i]
		}
		n++
		size += rl
	}
	return s
}

// FileName composes "<YYYYMMDD_HHMMSS>_<slug>.md".
func FileName(title string, now time.Time) string {
	return now.Format("20060102_150405") + "_" + Slugify(title, now) + ".md"
}

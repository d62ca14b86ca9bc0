// Package frontmatter renders the YAML header block of a note.
package frontmatter

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	delim         = "---"
	defaultSource = "chat"
)

// Header is the metadata rendered at the top of a note.
type Header struct {
	Title   string
	Project string
	Source  string
	Turns   int
	Tags    []string
	Created time.Time
	// Extra is written after the fixed keys in sorted key order. Keys that are
	// not plain identifiers are skipped.
	Extra map[string]any
}

var (
	extraKeyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	bareRe     = regexp.MustCompile(`^\p{L}[\p{L}\p{N} _.()/+-]*$`)
	// Words a YAML 1.1 or 1.2 parser would not read back as a string.
	reservedWords = map[string]struct{}{
		"true": {}, "false": {}, "yes": {}, "no": {}, "on": {}, "off": {},
		"y": {}, "n": {}, "null": {}, "nan": {}, "inf": {},
	}
)

// Inject prepends a header block to body. A body that already starts with a
// header block is returned unchanged.
func Inject(body string, h Header) string {
	if HasHeader(body) {
		return body
	}

	created := h.Created
	if created.IsZero() {
		created = time.Now()
	}
	source := h.Source
	if source == "" {
		source = defaultSource
	}
	tags := h.Tags
	if tags == nil {
		tags = []string{}
	}

	var b strings.Builder
	b.WriteString(delim + "\n")
	writeField(&b, "title", Value(h.Title))
	writeField(&b, "project", Value(h.Project))
	writeField(&b, "created", Value(created.UTC().Format(time.RFC3339)))
	writeField(&b, "tags", encodeJSON(tags))
	writeField(&b, "source", Value(source))
	writeField(&b, "turns", strconv.Itoa(h.Turns))

	keys := make([]string, 0, len(h.Extra))
	for k := range h.Extra {
		if extraKeyRe.MatchString(k) && !isFixedKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, k, encodeJSON(h.Extra[k]))
	}

	b.WriteString(delim + "\n\n")
	b.WriteString(body)
	return b.String()
}

// HasHeader reports whether text opens with a "---" line that a later "---"
// line closes. Leading blank lines are ignored.
func HasHeader(text string) bool {
	text = strings.TrimLeft(text, "\r\n")
	first, rest, ok := strings.Cut(text, "\n")
	if !ok || strings.TrimRight(first, " \t\r") != delim {
		return false
	}
	for _, line := range strings.Split(rest, "\n") {
		if strings.TrimRight(line, " \t\r") == delim {
			return true
		}
	}
	return false
}

// Value encodes a string scalar. Plain words are left bare; anything a YAML
// parser could misread is written as a JSON string, which is valid YAML.
func Value(s string) string {
	if isBare(s) {
		return s
	}
	return encodeJSON(s)
}

func isBare(s string) bool {
	if s == "" || s != strings.TrimSpace(s) || !bareRe.MatchString(s) {
		return false
	}
	_, reserved := reservedWords[strings.ToLower(s)]
	return !reserved
}

func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return `""`
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func isFixedKey(k string) bool {
	switch k {
	case "title", "project", "created", "tags", "source", "turns":
		return true
	}
	return false
}

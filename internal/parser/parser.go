// Package parser splits model responses and stored notes into metadata and
// Markdown body.
package parser

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/chatnotes/internal/models"
)

// Section markers of the dual-output format the prompt asks the model for.
const (
	JSONMarker     = "====JSON===="
	MarkdownMarker = "====MARKDOWN===="
)

// UnparsedHeading opens the body produced for a malformed response.
const UnparsedHeading = "# Unparsed note"

// Outcome describes which branch ParseDualOutput took.
type Outcome string

const (
	// OutcomeStructured: both sections found and the JSON section decoded.
	OutcomeStructured Outcome = "structured"
	// OutcomeUnparsed: markers present but the sections were malformed.
	OutcomeUnparsed Outcome = "unparsed"
	// OutcomePlain: no markers at all; the whole text is the body.
	OutcomePlain Outcome = "plain"
)

var (
	tagRe      = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)
	backtickRe = regexp.MustCompile("`+")
)

// ParseDualOutput extracts (metadata, body) from a raw model response. It never
// fails: malformed input degrades to empty metadata and a wrapped body.
func ParseDualOutput(raw string) (models.NoteMetadata, string) {
	meta, body, _ := Classify(raw)
	return meta, body
}

// Classify is ParseDualOutput that also reports the branch taken.
func Classify(raw string) (models.NoteMetadata, string, Outcome) {
	trimmed := strings.TrimSpace(raw)

	ji := strings.Index(raw, JSONMarker)
	if ji < 0 {
		if strings.Contains(raw, MarkdownMarker) {
			return models.NoteMetadata{}, wrapUnparsed(trimmed), OutcomeUnparsed
		}
		return models.NoteMetadata{}, trimmed, OutcomePlain
	}

	afterJSON := raw[ji+len(JSONMarker):]
	mi := strings.Index(afterJSON, MarkdownMarker)
	if mi < 0 {
		return models.NoteMetadata{}, wrapUnparsed(trimmed), OutcomeUnparsed
	}

	meta, ok := decodeObject(afterJSON[:mi])
	if !ok {
		return models.NoteMetadata{}, wrapUnparsed(trimmed), OutcomeUnparsed
	}
	body := strings.TrimSpace(afterJSON[mi+len(MarkdownMarker):])
	return meta, body, OutcomeStructured
}

// decodeObject parses the JSON section. A ```json fence around it is tolerated.
func decodeObject(segment string) (models.NoteMetadata, bool) {
	s := strings.TrimSpace(segment)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimLeft(s, "`")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	if !strings.HasPrefix(s, "{") {
		return models.NoteMetadata{}, false
	}
	var meta models.NoteMetadata
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return models.NoteMetadata{}, false
	}
	return meta, true
}

// wrapUnparsed keeps the raw text visible inside a code block whose fence is
// longer than any backtick run in the text.
func wrapUnparsed(text string) string {
	longest := 0
	for _, run := range backtickRe.FindAllString(text, -1) {
		if len(run) > longest {
			longest = len(run)
		}
	}
	fence := strings.Repeat("`", max(3, longest+1))
	return UnparsedHeading + "\n\n" + fence + "\n" + text + "\n" + fence
}

// Document is a stored note split into its parts.
type Document struct {
	Frontmatter map[string]any
	Body        string
	Tags        []string
	Title       string
}

// ParseDocument splits a note file into YAML frontmatter and body. A missing or
// invalid header leaves Frontmatter nil and the whole content as body.
func ParseDocument(data []byte) *Document {
	fm, body := splitFrontmatter(data)
	return &Document{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}
}

// String returns a frontmatter value as a string, or "" when absent or not a string.
func (d *Document) String(key string) string {
	if d.Frontmatter == nil {
		return ""
	}
	s, _ := d.Frontmatter[key].(string)
	return s
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// extractTags collects the frontmatter tag list followed by inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if items, ok := fm[models.KeyTags].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle prefers the frontmatter title, then the first H1 heading.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm[models.KeyTitle].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

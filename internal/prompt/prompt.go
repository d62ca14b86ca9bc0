// Package prompt renders the instruction document sent to the model.
package prompt

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/chatnotes/internal/conversation"
)

// SystemPrompt is sent as the system message alongside the rendered template.
const SystemPrompt = `You turn chat conversations into study notes for a Markdown vault.
Always answer with exactly two sections, in this order:
====JSON====
{ ...metadata JSON object... }
====MARKDOWN====
...the Markdown note...
The JSON section must be a single valid JSON object.
The Markdown section should use headings, bullet lists and fenced code blocks.`

// Template is the note instruction document. The four {{...}} placeholders
// are substituted by Build.
const Template = `[SYSTEM]
You are a note-taking coach that turns raw chats into an excellent Obsidian-style study note.
Role: produce (A) a JSON meta summary (B) a polished Markdown note.
Be faithful to facts in the chat. Cite turn indices for evidence.

[CONTEXT]
Time: {{now_iso}}
Turns: {{turn_count}}
Weakness hints (heuristics from pre-pass):
{{weakness_hints_json}}

[INSTRUCTIONS]
1) Read the conversation. Identify concepts the user struggled with.
   - Use evidence: repeated questions, requests to explain again, "what does X mean", corrections.
   - Prefer concise names for concepts; add "why" + "remedy".
2) Create JSON with this exact schema:
{ "title": "...", "tags": ["..."], "takeaways": ["..."],
  "weak_points": [{"concept":"...","evidence_turns":[...],"why":"...","remedy":"..."}],
  "open_questions": ["..."], "actions": ["..."],
  "glossary": [{"term":"...","explain":"..."}] }
3) Create a Markdown note: summary, what was learned, weak points with a study guide,
   next actions as a checkbox list. Use short bullets. Write in the conversation's language.
4) Preserve equations and code fences. Do not hallucinate.
5) If something stays unclear, list it under "Open questions".
6) Output format:
====JSON====
<JSON here>
====MARKDOWN====
<Markdown here>

[CONVERSATION]
{{conversation_block}}`

// Builder renders Template for a conversation.
type Builder struct {
	// MaxConversationChars caps the transcript block, cutting at whole turns.
	// Zero means unlimited.
	MaxConversationChars int
}

// Build substitutes the placeholders in a single pass, so placeholder text
// inside the conversation itself is left alone.
func (b Builder) Build(turns []conversation.Turn, hints conversation.Hints, now time.Time) string {
	r := strings.NewReplacer(
		"{{now_iso}}", now.Format(time.RFC3339),
		"{{turn_count}}", strconv.Itoa(len(turns)),
		"{{weakness_hints_json}}", hintsJSON(hints),
		"{{conversation_block}}", b.block(turns),
	)
	return r.Replace(Template)
}

func (b Builder) block(turns []conversation.Turn) string {
	full := conversation.Block(turns)
	if b.MaxConversationChars <= 0 || utf8.RuneCountInString(full) <= b.MaxConversationChars {
		return full
	}
	var kept []string
	total := 0
	for _, line := range strings.Split(full, "\n") {
		n := utf8.RuneCountInString(line)
		if total+n > b.MaxConversationChars {
			break
		}
		kept = append(kept, line)
		total += n + 1
	}
	return strings.Join(kept, "\n")
}

func hintsJSON(h conversation.Hints) string {
	if h.ConfuseTurns == nil {
		h.ConfuseTurns = []int{}
	}
	if h.OKTurns == nil {
		h.OKTurns = []int{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(h)
	return strings.TrimRight(buf.String(), "\n")
}

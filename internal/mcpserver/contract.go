package mcpserver

// NoteFormat describes the notes chatnotes writes into the vault, so that
// MCP clients know what save_conversation produces and how to read it back.
const NoteFormat = `# chatnotes Note Format

Every note saved by chatnotes is a UTF-8 Markdown file with a YAML frontmatter
block at the very top.

## Location

` + "`" + `<vault>/<project>/<YYYYMMDD_HHMMSS>_<slug>.md` + "`" + `

- ` + "`" + `project` + "`" + ` defaults to "General" when the caller gives none.
- The slug is the note title with path separators turned into "-", punctuation
  removed and spaces turned into "_". Letters of any script are kept.
- Two saves with the same title in the same second share a file name; the later
  one wins.

## Frontmatter

` + "```" + `markdown
---
title: "벡터: 기초"
project: Math
created: "2025-03-14T00:26:53Z"
tags: ["math","linear-algebra"]
source: extension
turns: 6
takeaways: ["..."]
weak_points: [{"concept":"dot product","evidence_turns":[3],"why":"...","remedy":"..."}]
---
` + "```" + `

Rules:

1. ` + "`" + `title` + "`" + `, ` + "`" + `project` + "`" + `, ` + "`" + `created` + "`" + `, ` + "`" + `tags` + "`" + `, ` + "`" + `source` + "`" + ` and ` + "`" + `turns` + "`" + ` are always present, in that order.
2. Simple identifier-like values are written bare. Everything else is a JSON
   literal, which is also valid YAML.
3. Other keys come from the model's metadata (takeaways, weak_points,
   open_questions, actions, glossary) and follow in alphabetical order.
4. ` + "`" + `created` + "`" + ` is RFC 3339 in UTC.

## Body

The body follows the closing ` + "`" + `---` + "`" + ` after one blank line. It is the model's
Markdown note. When the model is unreachable, or its note is too short, the body is
the conversation transcript instead:

` + "```" + `markdown
### 👤 User
What is a vector?

---
### 🤖 Assistant
A quantity with magnitude and direction.
` + "```" + `

When the model ignored the ` + "`" + `====JSON====` + "`" + ` / ` + "`" + `====MARKDOWN====` + "`" + ` output format,
the body starts with ` + "`" + `# Unparsed note` + "`" + ` followed by the raw answer in a code fence.

## Raw saves

save_raw_conversation writes the transcript without calling the model. Its
title is always "Raw_Conversation".
`

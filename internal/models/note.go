// Package models defines the domain types shared by the note pipeline.
package models

import (
	"encoding/json"
	"time"
)

// Well-known metadata keys.
const (
	KeyTitle   = "title"
	KeyTags    = "tags"
	KeyProject = "project"
	KeySource  = "source"
	KeyCreated = "created"
	KeyTurns   = "turns"
)

// NoteMetadata is the structured half of a note: the well-known fields the
// pipeline reads and writes, plus whatever else the model emitted
// (takeaways, weak_points, open_questions, actions, glossary, ...).
type NoteMetadata struct {
	Title   string
	Tags    []string
	Project string
	Source  string
	Created string
	Turns   int

	// Extra holds every key that is not a well-known field, or a well-known
	// key whose value had an unexpected type.
	Extra map[string]any
}

// IsEmpty reports whether no field at all is set.
func (m NoteMetadata) IsEmpty() bool {
	return m.Title == "" && m.Tags == nil && m.Project == "" && m.Source == "" &&
		m.Created == "" && m.Turns == 0 && len(m.Extra) == 0
}

// Set stores v under key in Extra.
func (m *NoteMetadata) Set(key string, v any) {
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = v
}

// Map flattens the metadata into a single JSON-style object.
func (m NoteMetadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+6)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Title != "" {
		out[KeyTitle] = m.Title
	}
	if m.Tags != nil {
		out[KeyTags] = m.Tags
	}
	if m.Project != "" {
		out[KeyProject] = m.Project
	}
	if m.Source != "" {
		out[KeySource] = m.Source
	}
	if m.Created != "" {
		out[KeyCreated] = m.Created
	}
	if m.Turns != 0 {
		out[KeyTurns] = m.Turns
	}
	return out
}

// MarshalJSON renders the metadata as one flat object.
func (m NoteMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON splits a flat object into typed fields and Extra.
func (m *NoteMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = NoteMetadata{}
	for k, v := range raw {
		if m.assignKnown(k, v) {
			continue
		}
		var anyVal any
		if err := json.Unmarshal(v, &anyVal); err != nil {
			return err
		}
		m.Set(k, anyVal)
	}
	return nil
}

// assignKnown decodes a well-known key into its typed field. It returns false
// when key is not well-known or the value does not fit the field's type.
func (m *NoteMetadata) assignKnown(key string, v json.RawMessage) bool {
	switch key {
	case KeyTitle:
		return json.Unmarshal(v, &m.Title) == nil
	case KeyProject:
		return json.Unmarshal(v, &m.Project) == nil
	case KeySource:
		return json.Unmarshal(v, &m.Source) == nil
	case KeyCreated:
		return json.Unmarshal(v, &m.Created) == nil
	case KeyTags:
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil {
			return false
		}
		if tags == nil {
			tags = []string{}
		}
		m.Tags = tags
		return true
	case KeyTurns:
		var n float64
		if err := json.Unmarshal(v, &n); err != nil || n != float64(int(n)) {
			return false
		}
		m.Turns = int(n)
		return true
	}
	return false
}

// NoteFile is a lightweight listing entry for a Markdown file in the vault.
type NoteFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

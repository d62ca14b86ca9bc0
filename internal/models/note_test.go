package models

import (
	"encoding/json"
	"testing"
)

func TestNoteMetadata_UnmarshalSplitsKnownFields(t *testing.T) {
	var m NoteMetadata
	data := `{"title":"벡터 기초","tags":["math","linear-algebra"],"turns":4,"takeaways":["a vector has direction"],"project":"Math"}`
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatal(err)
	}
	if m.Title != "벡터 기초" || m.Project != "Math" || m.Turns != 4 {
		t.Errorf("meta = %+v", m)
	}
	if len(m.Tags) != 2 || m.Tags[1] != "linear-algebra" {
		t.Errorf("tags = %v", m.Tags)
	}
	if _, ok := m.Extra["takeaways"]; !ok {
		t.Errorf("extra = %v, want takeaways", m.Extra)
	}
	if _, ok := m.Extra[KeyTitle]; ok {
		t.Error("title should not land in Extra")
	}
}

func TestNoteMetadata_MistypedKnownKeyGoesToExtra(t *testing.T) {
	var m NoteMetadata
	if err := json.Unmarshal([]byte(`{"title":42,"turns":2.5,"tags":"math"}`), &m); err != nil {
		t.Fatal(err)
	}
	if m.Title != "" || m.Turns != 0 || m.Tags != nil {
		t.Errorf("typed fields should stay empty: %+v", m)
	}
	if m.Extra[KeyTitle] != float64(42) || m.Extra[KeyTurns] != 2.5 || m.Extra[KeyTags] != "math" {
		t.Errorf("extra = %v", m.Extra)
	}
}

func TestNoteMetadata_NullTagsBecomeEmpty(t *testing.T) {
	var m NoteMetadata
	if err := json.Unmarshal([]byte(`{"tags":null}`), &m); err != nil {
		t.Fatal(err)
	}
	if m.Tags == nil || len(m.Tags) != 0 {
		t.Errorf("tags = %#v, want empty non-nil slice", m.Tags)
	}
	if m.IsEmpty() {
		t.Error("metadata with explicit tags should not be empty")
	}
}

func TestNoteMetadata_MarshalFlat(t *testing.T) {
	m := NoteMetadata{Title: "T", Turns: 3}
	m.Set("llm_failed", true)

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "T" || got["turns"] != float64(3) || got["llm_failed"] != true {
		t.Errorf("got = %v", got)
	}
	if _, ok := got["project"]; ok {
		t.Error("unset fields should be omitted")
	}
}

func TestNoteMetadata_IsEmpty(t *testing.T) {
	if !(NoteMetadata{}).IsEmpty() {
		t.Error("zero value should be empty")
	}
	var m NoteMetadata
	m.Set("x", 1)
	if m.IsEmpty() {
		t.Error("metadata with extras should not be empty")
	}
}

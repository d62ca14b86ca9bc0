package noteservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/chatnotes/internal/apperr"
	"github.com/starford/chatnotes/internal/conversation"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/llm"
	"github.com/starford/chatnotes/internal/parser"
	"github.com/starford/chatnotes/internal/sse"
	"github.com/starford/chatnotes/internal/storage"
	"github.com/starford/chatnotes/internal/testutil"
)

const longSummary = "# 벡터\n\n벡터는 크기와 방향을 함께 가지는 양이다. 내적은 두 벡터가 얼마나 같은 방향을 향하는지 보여 주며, " +
	"정사영과 각도 계산에 쓰인다. 사용자는 내적의 기하학적 의미를 두 번 다시 물어보았다."

var turns = []conversation.Turn{
	{Role: conversation.RoleUser, Content: "What is a vector?"},
	{Role: conversation.RoleAssistant, Content: "A quantity with magnitude and direction."},
	{Role: conversation.RoleUser, Content: "Explain the dot product again?"},
}

type recorder struct {
	mu     sync.Mutex
	events []sse.NoteSaved
}

func (r *recorder) PublishNoteSaved(n sse.NoteSaved) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func dual(meta, body string) string {
	return "====JSON====\n" + meta + "\n====MARKDOWN====\n" + body
}

func newService(t *testing.T, gw Gateway, opts ...Option) (*Service, *storage.FS) {
	t.Helper()
	_, store := testutil.TestVault(t, storage.WithClock(func() time.Time { return testutil.FixedTime }))
	p := Pipeline{
		EnableWeaknessHints: true,
		QualityFloorChars:   80,
		DefaultProject:      "General",
		DefaultSource:       "extension",
	}
	opts = append([]Option{WithClock(func() time.Time { return testutil.FixedTime })}, opts...)
	return NewService(store, gw, p, opts...), store
}

func TestAnalyze_Structured(t *testing.T) {
	gw := testutil.Reply(dual(`{"title":"Vectors","tags":["math"],"weak_points":["dot product"]}`, longSummary))
	svc, store := newService(t, gw)

	a := svc.Analyze(context.Background(), Request{Project: "Math", Conversation: turns})
	if a.Meta.Title != "Vectors" || a.Markdown != longSummary {
		t.Errorf("analysis = %+v", a)
	}
	if a.Meta.Extra[MetaProtocol] != llm.ProtocolOpenAI {
		t.Errorf("protocol annotation missing: %#v", a.Meta.Extra)
	}
	if gw.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", gw.CallCount())
	}
	if !strings.Contains(gw.Calls[0], `{"confuse_turns":[3],"ok_turns":[]}`) {
		t.Errorf("prompt lacks extracted hints:\n%s", gw.Calls[0])
	}
	if !strings.Contains(gw.Calls[0], "[1][user] What is a vector?") {
		t.Errorf("prompt lacks the conversation block")
	}

	files, _ := store.List("")
	if len(files) != 0 {
		t.Errorf("Analyze wrote %d files", len(files))
	}
}

func TestAnalyze_CallerHintsOverride(t *testing.T) {
	gw := testutil.Reply(dual(`{}`, longSummary))
	svc, _ := newService(t, gw)
	hints := &conversation.Hints{ConfuseTurns: []int{2}, OKTurns: []int{1}}

	svc.Analyze(context.Background(), Request{Conversation: turns, WeaknessHints: hints})
	if !strings.Contains(gw.Calls[0], `{"confuse_turns":[2],"ok_turns":[1]}`) {
		t.Errorf("prompt should carry caller hints:\n%s", gw.Calls[0])
	}
}

func TestAnalyze_ShortSummaryFallsBackToTranscript(t *testing.T) {
	svc, _ := newService(t, testutil.Reply(dual(`{"title":"T"}`, "# Hi\n\n- ok")))
	a := svc.Analyze(context.Background(), Request{Conversation: turns})
	if !strings.Contains(a.Markdown, "### 👤 User\nWhat is a vector?") {
		t.Errorf("markdown = %q, want transcript", a.Markdown)
	}
	if a.Meta.Title != "T" {
		t.Errorf("metadata should survive the quality floor: %+v", a.Meta)
	}
}

func TestAnalyze_LLMFailure(t *testing.T) {
	gw := &testutil.FakeGateway{Result: llm.Result{
		Text: llm.FailureMarker + " primary: boom; fallback: boom",
		Err:  errors.New("primary: boom; fallback: boom"),
	}}
	svc, _ := newService(t, gw)

	a := svc.Analyze(context.Background(), Request{Conversation: turns})
	if a.Meta.Extra[MetaLLMFailed] != true {
		t.Errorf("meta = %#v, want llm_failed", a.Meta.Extra)
	}
	if s, _ := a.Meta.Extra[MetaLLMError].(string); !strings.HasPrefix(s, llm.FailureMarker) {
		t.Errorf("llm_error = %q", s)
	}
	if !strings.Contains(a.Markdown, "What is a vector?") {
		t.Errorf("markdown = %q, want transcript", a.Markdown)
	}
}

func TestAnalyze_EmptyConversationStillHasBody(t *testing.T) {
	gw := &testutil.FakeGateway{Result: llm.Result{Text: llm.FailureMarker, Err: errors.New("down")}}
	svc, _ := newService(t, gw)
	a := svc.Analyze(context.Background(), Request{})
	if a.Markdown != emptyTranscript {
		t.Errorf("markdown = %q", a.Markdown)
	}
}

func TestAnalyze_QualityFloorDisabled(t *testing.T) {
	_, store := testutil.TestVault(t)
	svc := NewService(store, testutil.Reply("short"), Pipeline{})
	if a := svc.Analyze(context.Background(), Request{Conversation: turns}); a.Markdown != "short" {
		t.Errorf("markdown = %q, want the model text", a.Markdown)
	}
}

func TestSaveAndAnalyze_WritesOneNote(t *testing.T) {
	gw := testutil.Reply(dual(`{"title":"벡터: 기초","tags":["math","벡터"],"weak_points":["내적"]}`, longSummary))
	db := testutil.TestDB(t)
	pub := &recorder{}
	svc, store := newService(t, gw, WithCatalog(db), WithPublisher(pub))

	res, err := svc.SaveAndAnalyze(context.Background(), Request{Project: "Math", Conversation: turns})
	if err != nil {
		t.Fatalf("SaveAndAnalyze: %v", err)
	}
	wantPath := filepath.Join(store.Root(), "Math", "20250314_092653_벡터_기초.md")
	if res.File != wantPath {
		t.Errorf("file = %q, want %q", res.File, wantPath)
	}
	if res.Meta.Extra[MetaSaved] != true || res.Meta.Extra[MetaFile] != wantPath {
		t.Errorf("meta = %#v", res.Meta.Extra)
	}
	if n, _ := res.Meta.Extra[MetaBodyLen].(int); n == 0 {
		t.Errorf("body_len = %#v", res.Meta.Extra[MetaBodyLen])
	}
	if res.Markdown != longSummary {
		t.Errorf("markdown = %q", res.Markdown)
	}

	data, err := os.ReadFile(res.File)
	if err != nil {
		t.Fatal(err)
	}
	doc := parser.ParseDocument(data)
	if doc.String("title") != "벡터: 기초" || doc.String("project") != "Math" || doc.String("source") != "extension" {
		t.Errorf("frontmatter = %#v", doc.Frontmatter)
	}
	if _, ok := doc.Frontmatter["weak_points"]; !ok {
		t.Error("model extras should be written to the frontmatter")
	}
	if _, ok := doc.Frontmatter[MetaProtocol]; ok {
		t.Error("pipeline annotations must not reach the frontmatter")
	}
	if doc.Body != longSummary {
		t.Errorf("body = %q", doc.Body)
	}

	rel, _ := store.Rel(res.File)
	row, _ := db.GetNote(rel)
	if row == nil || row.Project != "Math" {
		t.Errorf("catalog row = %+v", row)
	}
	if len(pub.events) != 1 || pub.events[0].Path != rel || pub.events[0].Mode != modeAnalyze {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestSaveAndAnalyze_DefaultTitleAndProject(t *testing.T) {
	svc, store := newService(t, testutil.Reply(longSummary))
	res, err := svc.SaveAndAnalyze(context.Background(), Request{Conversation: turns})
	if err != nil {
		t.Fatalf("SaveAndAnalyze: %v", err)
	}
	if filepath.Dir(res.File) != filepath.Join(store.Root(), "General") {
		t.Errorf("file = %q, want it under General", res.File)
	}
	if !strings.HasSuffix(res.File, "_Conversation_Note.md") {
		t.Errorf("file = %q", res.File)
	}
}

func TestSaveAndAnalyze_LLMDownStillSaves(t *testing.T) {
	gw := &testutil.FakeGateway{Result: llm.Result{Text: llm.FailureMarker + " x", Err: errors.New("x")}}
	svc, _ := newService(t, gw)

	res, err := svc.SaveAndAnalyze(context.Background(), Request{Project: "Math", Conversation: turns})
	if err != nil {
		t.Fatalf("SaveAndAnalyze: %v", err)
	}
	data, _ := os.ReadFile(res.File)
	if !strings.Contains(string(data), "What is a vector?") {
		t.Errorf("note should contain the transcript:\n%s", data)
	}
	if strings.Contains(string(data), "llm_failed") {
		t.Errorf("failure annotations leaked into the note:\n%s", data)
	}
}

func TestSaveAndAnalyze_FilesystemError(t *testing.T) {
	svc, store := newService(t, testutil.Reply(dual(`{"title":"T"}`, longSummary)))
	if err := os.WriteFile(filepath.Join(store.Root(), "Math"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := svc.SaveAndAnalyze(context.Background(), Request{Project: "Math", Conversation: turns})
	if !errors.Is(err, apperr.ErrFilesystem) {
		t.Fatalf("err = %v, want ErrFilesystem", err)
	}
	if res.Meta.Extra[MetaSaved] != false || res.Meta.Extra[MetaTargetFolder] != filepath.Join(store.Root(), "Math") {
		t.Errorf("meta = %#v", res.Meta.Extra)
	}
	if res.Meta.Extra[MetaSaveError] == nil || res.File != "" {
		t.Errorf("result = %+v", res)
	}
	if res.Meta.Title != "T" || res.Markdown != longSummary {
		t.Errorf("analysis should still be returned: %+v", res)
	}
}

func TestSaveRaw(t *testing.T) {
	gw := testutil.Reply("unused")
	svc, _ := newService(t, gw)

	res, err := svc.SaveRaw(context.Background(), Request{Project: "Math", Conversation: turns[:1]})
	if err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
	if gw.CallCount() != 0 {
		t.Error("SaveRaw must not call the model")
	}
	if !strings.HasSuffix(res.File, "_Raw_Conversation.md") {
		t.Errorf("file = %q", res.File)
	}
	data, _ := os.ReadFile(res.File)
	s := string(data)
	for _, want := range []string{"title: Raw_Conversation\n", "project: Math\n", "source: extension\n", "turns: 1\n", "What is a vector?"} {
		if !strings.Contains(s, want) {
			t.Errorf("note missing %q:\n%s", want, s)
		}
	}
}

func TestSaveRaw_EmptyConversation(t *testing.T) {
	svc, _ := newService(t, testutil.Reply(""))
	res, err := svc.SaveRaw(context.Background(), Request{Project: "P"})
	if err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
	data, _ := os.ReadFile(res.File)
	if !strings.HasSuffix(string(data), emptyTranscript) {
		t.Errorf("note = %q", data)
	}
}

func TestCatalogDisabled(t *testing.T) {
	svc, _ := newService(t, testutil.Reply(""))
	if _, err := svc.ListNotes(context.Background(), index.ListFilter{}); !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("ListNotes err = %v", err)
	}
	if _, err := svc.Search(context.Background(), "x", 5); !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("Search err = %v", err)
	}
}

func TestListAndSearchAfterSave(t *testing.T) {
	db := testutil.TestDB(t)
	svc, _ := newService(t, testutil.Reply(dual(`{"title":"Vectors","tags":["math"]}`, longSummary)), WithCatalog(db))
	if _, err := svc.SaveAndAnalyze(context.Background(), Request{Project: "Math", Conversation: turns}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListNotes(context.Background(), index.ListFilter{Project: "Math"})
	if err != nil || list.Total != 1 || list.Notes[0].Title != "Vectors" {
		t.Errorf("ListNotes = %+v, %v", list, err)
	}
	hits, err := svc.Search(context.Background(), "내적", 10)
	if err != nil || len(hits) != 1 {
		t.Errorf("Search = %+v, %v", hits, err)
	}
}

func TestTooThin(t *testing.T) {
	if !tooThin("## --- ``` #", 1) {
		t.Error("punctuation-only body should be thin")
	}
	if tooThin(strings.Repeat("가", 80), 80) {
		t.Error("80 runes should pass a floor of 80")
	}
	if !tooThin(strings.Repeat("a", 79), 80) {
		t.Error("79 chars should fail a floor of 80")
	}
	if tooThin("", 0) {
		t.Error("floor 0 disables the check")
	}
}

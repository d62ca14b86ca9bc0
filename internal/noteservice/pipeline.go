package noteservice

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/starford/chatnotes/internal/conversation"
	"github.com/starford/chatnotes/internal/frontmatter"
	"github.com/starford/chatnotes/internal/models"
	"github.com/starford/chatnotes/internal/parser"
	"github.com/starford/chatnotes/internal/prompt"
)

const (
	defaultNoteTitle = "Conversation_Note"
	rawNoteTitle     = "Raw_Conversation"
	emptyTranscript  = "_(empty conversation)_"

	modeAnalyze = "analyze"
	modeRaw     = "raw"
)

// Metadata keys the pipeline adds on top of what the model returned.
const (
	MetaLLMFailed    = "llm_failed"
	MetaLLMError     = "llm_error"
	MetaProtocol     = "llm_protocol"
	MetaSaved        = "saved"
	MetaFile         = "file"
	MetaBodyLen      = "body_len"
	MetaSaveError    = "save_error"
	MetaTargetFolder = "target_folder"
)

var floorStripper = strings.NewReplacer("#", "", "-", "", "`", "")

// Analysis is the model's note for a conversation.
type Analysis struct {
	Meta     models.NoteMetadata
	Markdown string
}

// SaveResult describes a note write. On failure File is empty and Meta
// carries saved=false with the error and target folder.
type SaveResult struct {
	File     string
	Meta     models.NoteMetadata
	Markdown string
}

// Analyze summarizes a conversation without touching the vault. It always
// returns usable content: model failures, malformed output and thin
// summaries all fall back to the conversation transcript.
func (s *Service) Analyze(ctx context.Context, r Request) Analysis {
	hints := s.hints(r)
	user := s.builder.Build(r.Conversation, hints, s.now())

	res := s.gateway.Chat(ctx, prompt.SystemPrompt, user)

	var (
		meta models.NoteMetadata
		body string
	)
	if res.Failed() {
		s.metrics.ObserveParse("llm_failed")
		s.logger.Warn("pipeline: model unavailable, using transcript",
			slog.Int("turns", len(r.Conversation)),
			slog.String("error", res.Err.Error()))
		meta.Set(MetaLLMFailed, true)
		meta.Set(MetaLLMError, res.Text)
	} else {
		var outcome parser.Outcome
		meta, body, outcome = parser.Classify(res.Text)
		s.metrics.ObserveParse(string(outcome))
		if outcome == parser.OutcomeUnparsed {
			s.logger.Warn("pipeline: model output did not follow the dual-output format",
				slog.String("protocol", res.Protocol))
		}
		meta.Set(MetaProtocol, res.Protocol)
	}

	switch {
	case res.Failed():
		body = transcript(r.Conversation)
	case strings.TrimSpace(body) == "" || tooThin(body, s.pipeline.QualityFloorChars):
		s.metrics.ObserveQualityFallback()
		s.logger.Info("pipeline: summary too short, using transcript",
			slog.Int("chars", utf8.RuneCountInString(body)))
		body = transcript(r.Conversation)
	}
	return Analysis{Meta: meta, Markdown: body}
}

// SaveAndAnalyze runs Analyze and writes the result to <vault>/<project>/.
// The returned error wraps apperr.ErrFilesystem or apperr.ErrWriteVerification;
// the SaveResult is filled in either way.
func (s *Service) SaveAndAnalyze(ctx context.Context, r Request) (SaveResult, error) {
	a := s.Analyze(ctx, r)
	project := s.project(r)

	title := a.Meta.Title
	if strings.TrimSpace(title) == "" {
		title = defaultNoteTitle
	}
	doc := frontmatter.Inject(a.Markdown, frontmatter.Header{
		Title:   title,
		Project: project,
		Source:  s.saveSource(r),
		Turns:   len(r.Conversation),
		Tags:    a.Meta.Tags,
		Created: s.now(),
		Extra:   modelExtra(a.Meta),
	})

	out := SaveResult{Meta: a.Meta, Markdown: a.Markdown}
	path, err := s.store.WriteNote(project, title, doc)
	s.metrics.ObserveSave(modeAnalyze, err == nil)
	if err != nil {
		s.logger.Error("pipeline: save failed", slog.String("project", project), slog.String("error", err.Error()))
		out.Meta.Set(MetaSaved, false)
		out.Meta.Set(MetaSaveError, err.Error())
		out.Meta.Set(MetaTargetFolder, filepath.Join(s.store.Root(), project))
		return out, err
	}

	s.logger.Info("pipeline: note saved", slog.String("file", path), slog.Int("len", utf8.RuneCountInString(doc)))
	out.File = path
	out.Meta.Set(MetaFile, path)
	out.Meta.Set(MetaSaved, true)
	out.Meta.Set(MetaBodyLen, utf8.RuneCountInString(doc))
	s.afterSave(path, doc, project, title, modeAnalyze)
	return out, nil
}

// SaveRaw writes the conversation transcript without calling the model.
func (s *Service) SaveRaw(_ context.Context, r Request) (SaveResult, error) {
	project := s.project(r)
	body := transcript(r.Conversation)
	doc := frontmatter.Inject(body, frontmatter.Header{
		Title:   rawNoteTitle,
		Project: project,
		Source:  s.saveSource(r),
		Turns:   len(r.Conversation),
		Created: s.now(),
	})

	path, err := s.store.WriteNote(project, rawNoteTitle, doc)
	s.metrics.ObserveSave(modeRaw, err == nil)
	if err != nil {
		s.logger.Error("pipeline: raw save failed", slog.String("project", project), slog.String("error", err.Error()))
		return SaveResult{Markdown: body}, err
	}
	s.logger.Info("pipeline: raw note saved", slog.String("file", path))
	s.afterSave(path, doc, project, rawNoteTitle, modeRaw)
	return SaveResult{File: path, Markdown: body}, nil
}

// tooThin reports whether body falls under the quality floor once Markdown
// punctuation is removed.
func tooThin(body string, floor int) bool {
	if floor <= 0 {
		return false
	}
	stripped := strings.TrimSpace(floorStripper.Replace(body))
	return utf8.RuneCountInString(stripped) < floor
}

func transcript(turns []conversation.Turn) string {
	if t := conversation.Transcript(turns); strings.TrimSpace(t) != "" {
		return t
	}
	return emptyTranscript
}

// modelExtra returns the free-form keys to carry into the frontmatter,
// leaving out the pipeline's own annotations.
func modelExtra(m models.NoteMetadata) map[string]any {
	out := make(map[string]any, len(m.Extra))
	for k, v := range m.Extra {
		switch k {
		case MetaLLMFailed, MetaLLMError, MetaProtocol:
			continue
		}
		out[k] = v
	}
	return out
}

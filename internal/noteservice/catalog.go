package noteservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/chatnotes/internal/apperr"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/sse"
)

// NoteList is one page of the catalog.
type NoteList struct {
	Notes []index.NoteRow `json:"notes"`
	Total int             `json:"total"`
}

// ListNotes returns catalog entries, newest first.
func (s *Service) ListNotes(_ context.Context, f index.ListFilter) (NoteList, error) {
	if s.catalog == nil {
		return NoteList{}, apperr.ErrUnavailable
	}
	rows, total, err := s.catalog.ListNotes(f)
	if err != nil {
		return NoteList{}, err
	}
	return NoteList{Notes: rows, Total: total}, nil
}

// Search runs a text search over the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.catalog == nil {
		return nil, apperr.ErrUnavailable
	}
	return s.catalog.Search(query, limit)
}

// afterSave indexes and announces a freshly written note. Failures here never
// undo the save.
func (s *Service) afterSave(abs, doc, project, title, mode string) {
	rel, err := s.store.Rel(abs)
	if err != nil {
		s.logger.Warn("pipeline: note outside vault", slog.String("file", abs))
		return
	}
	if s.catalog != nil {
		if err := index.IndexFile(s.catalog, rel, []byte(doc), time.Now()); err != nil {
			s.logger.Warn("pipeline: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
	if s.publisher != nil {
		s.publisher.PublishNoteSaved(sse.NoteSaved{Path: rel, Project: project, Title: title, Mode: mode})
	}
}

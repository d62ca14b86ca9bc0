// Package noteservice runs the conversation → note pipeline and serves the
// note catalog.
package noteservice

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/chatnotes/internal/conversation"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/llm"
	"github.com/starford/chatnotes/internal/observability"
	"github.com/starford/chatnotes/internal/prompt"
	"github.com/starford/chatnotes/internal/sse"
	"github.com/starford/chatnotes/internal/storage"
)

// Gateway sends one system/user prompt pair to a model. *llm.Gateway implements it.
type Gateway interface {
	Chat(ctx context.Context, system, user string) llm.Result
}

// Publisher receives an event for every note the pipeline writes. *sse.Broker implements it.
type Publisher interface {
	PublishNoteSaved(n sse.NoteSaved)
}

// Pipeline holds the tunable behaviour of the pipeline.
type Pipeline struct {
	// EnableWeaknessHints runs the hint extractor when the caller sent none.
	EnableWeaknessHints bool
	// QualityFloorChars is the minimum summary length before the raw
	// transcript is used instead. 0 disables the check.
	QualityFloorChars int
	// MaxPromptChars truncates the conversation block of the prompt. 0 means no limit.
	MaxPromptChars int
	DefaultProject string
	DefaultSource  string
}

// Service coordinates the model, the vault and the catalog.
type Service struct {
	store    storage.Provider
	gateway  Gateway
	pipeline Pipeline
	builder  prompt.Builder

	catalog   index.Catalog
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithCatalog indexes every saved note and enables ListNotes and Search.
func WithCatalog(c index.Catalog) Option { return func(s *Service) { s.catalog = c } }

// WithPublisher announces saved notes.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithMetrics records pipeline outcomes.
func WithMetrics(m *observability.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock overrides the clock used for prompts and frontmatter.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a note service.
func NewService(store storage.Provider, gateway Gateway, p Pipeline, opts ...Option) *Service {
	if strings.TrimSpace(p.DefaultProject) == "" {
		p.DefaultProject = "General"
	}
	s := &Service{
		store:    store,
		gateway:  gateway,
		pipeline: p,
		builder:  prompt.Builder{MaxConversationChars: p.MaxPromptChars},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Request is the input shared by all pipeline entry points.
type Request struct {
	Project      string
	Source       string
	Conversation []conversation.Turn
	// WeaknessHints, when set, replaces the extracted hints.
	WeaknessHints *conversation.Hints
}

func (s *Service) project(r Request) string {
	if p := strings.TrimSpace(r.Project); p != "" {
		return p
	}
	return s.pipeline.DefaultProject
}

func (s *Service) saveSource(r Request) string {
	if src := strings.TrimSpace(r.Source); src != "" {
		return src
	}
	return s.pipeline.DefaultSource
}

func (s *Service) hints(r Request) conversation.Hints {
	switch {
	case r.WeaknessHints != nil:
		return *r.WeaknessHints
	case s.pipeline.EnableWeaknessHints:
		return conversation.ExtractHints(r.Conversation)
	default:
		return conversation.Hints{ConfuseTurns: []int{}, OKTurns: []int{}}
	}
}

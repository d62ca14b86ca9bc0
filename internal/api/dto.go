package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chatnotes/internal/conversation"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/models"
	"github.com/starford/chatnotes/internal/noteservice"
)

// ConversationRequest is the request body shared by the conversation endpoints.
type ConversationRequest struct {
	Project      string              `json:"project,omitempty" example:"Math"`
	Source       string              `json:"source,omitempty" example:"extension"`
	Conversation []conversation.Turn `json:"conversation" validate:"required"`
	// WeaknessHints replaces the server-side hint detection when present.
	WeaknessHints *conversation.Hints `json:"weakness_hints,omitempty"`
}

// Validate checks the request shape and the role of every turn.
func (r ConversationRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Conversation, validation.NotNil),
		validation.Field(&r.Project, validation.Length(0, 200)),
		validation.Field(&r.Source, validation.Length(0, 100)),
	)
	if err != nil {
		return err
	}
	return conversation.Validate(r.Conversation)
}

func (r ConversationRequest) toService() noteservice.Request {
	return noteservice.Request{
		Project:       r.Project,
		Source:        r.Source,
		Conversation:  r.Conversation,
		WeaknessHints: r.WeaknessHints,
	}
}

// AnalyzeResponse is returned by POST /api/conversation/analyze.
type AnalyzeResponse struct {
	Meta     models.NoteMetadata `json:"meta" validate:"required"`
	Markdown string              `json:"markdown" validate:"required"`
}

// SaveResponse is returned by POST /api/conversation/save+analyze.
type SaveResponse struct {
	Status   string              `json:"status" example:"success" validate:"required"`
	File     string              `json:"file,omitempty" example:"/vault/Math/20250314_092653_Vectors.md"`
	Error    string              `json:"error,omitempty"`
	Meta     models.NoteMetadata `json:"meta"`
	Markdown string              `json:"markdown"`
}

// RawSaveResponse is returned by POST /api/conversation/save.
type RawSaveResponse struct {
	Status string `json:"status" example:"success" validate:"required"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	Vault string `json:"vault" example:"/home/me/ObsidianVaultDev"`
	Model string `json:"model" example:"llama3.1:8b-instruct-q4_K_M"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse = noteservice.NoteList

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

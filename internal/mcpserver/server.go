// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the chatnotes pipeline and catalog over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/chatnotes/internal/apperr"
	"github.com/starford/chatnotes/internal/conversation"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/noteservice"
)

const noteFormatURI = "chatnotes://note-format"

// Server wraps the MCP server with chatnotes tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

var turnItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"role":    map[string]any{"type": "string", "enum": []string{"user", "assistant", "system"}},
		"content": map[string]any{"type": "string"},
	},
	"required": []string{"role", "content"},
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"chatnotes",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("analyze_conversation",
		mcp.WithDescription("Summarize a conversation into note metadata and Markdown without saving anything."),
		mcp.WithArray("conversation", mcp.Required(), mcp.Items(turnItems),
			mcp.Description("Ordered chat turns, oldest first")),
		mcp.WithString("project", mcp.Description("Project name used as the vault folder")),
		mcp.WithObject("weakness_hints", mcp.Description(`Optional {"confuse_turns":[...],"ok_turns":[...]} overriding the built-in detection`)),
	), s.analyzeConversation)

	s.mcp.AddTool(mcp.NewTool("save_conversation",
		mcp.WithDescription("Summarize a conversation and save it as a note in <vault>/<project>/. "+
			"Read the note format via get_note_format or the "+noteFormatURI+" resource."),
		mcp.WithArray("conversation", mcp.Required(), mcp.Items(turnItems),
			mcp.Description("Ordered chat turns, oldest first")),
		mcp.WithString("project", mcp.Description("Project name used as the vault folder")),
		mcp.WithString("source", mcp.Description("Where the conversation came from")),
		mcp.WithObject("weakness_hints", mcp.Description(`Optional {"confuse_turns":[...],"ok_turns":[...]}`)),
	), s.saveConversation)

	s.mcp.AddTool(mcp.NewTool("save_raw_conversation",
		mcp.WithDescription("Save the conversation transcript as a note without calling the model."),
		mcp.WithArray("conversation", mcp.Required(), mcp.Items(turnItems),
			mcp.Description("Ordered chat turns, oldest first")),
		mcp.WithString("project", mcp.Description("Project name used as the vault folder")),
		mcp.WithString("source", mcp.Description("Where the conversation came from")),
	), s.saveRawConversation)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List saved notes, newest first."),
		mcp.WithString("project", mcp.Description("Only notes of this project")),
		mcp.WithString("tag", mcp.Description("Only notes carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the layout of the notes chatnotes writes."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format",
			mcp.WithResourceDescription("Layout of saved notes: location, frontmatter and body."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// request decodes the pipeline input shared by the conversation tools.
func request(req mcp.CallToolRequest) (noteservice.Request, error) {
	args := req.GetArguments()
	raw, ok := args["conversation"]
	if !ok {
		return noteservice.Request{}, errors.New(`required argument "conversation" not found`)
	}

	var r noteservice.Request
	if err := remarshal(raw, &r.Conversation); err != nil {
		return r, fmt.Errorf("conversation: %w", err)
	}
	if r.Conversation == nil {
		return r, errors.New("conversation: must be an array, got null")
	}
	if err := conversation.Validate(r.Conversation); err != nil {
		return r, err
	}
	if h, ok := args["weakness_hints"]; ok && h != nil {
		var hints conversation.Hints
		if err := remarshal(h, &hints); err != nil {
			return r, fmt.Errorf("weakness_hints: %w", err)
		}
		r.WeaknessHints = &hints
	}
	r.Project = req.GetString("project", "")
	r.Source = req.GetString("source", "")
	return r, nil
}

// remarshal converts a decoded JSON-RPC argument into a typed value.
func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) analyzeConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := request(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a := s.svc.Analyze(ctx, r)
	return jsonResult(map[string]any{"meta": a.Meta, "markdown": a.Markdown}), nil
}

func (s *Server) saveConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := request(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SaveAndAnalyze(ctx, r)
	if err != nil {
		out := jsonResult(map[string]any{"status": "error", "error": err.Error(), "meta": res.Meta, "markdown": res.Markdown})
		out.IsError = true
		return out, nil
	}
	return jsonResult(map[string]any{"status": "success", "file": res.File, "meta": res.Meta, "markdown": res.Markdown}), nil
}

func (s *Server) saveRawConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := request(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SaveRaw(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "success", "file": res.File}), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.ListNotes(ctx, index.ListFilter{
		Project: req.GetString("project", ""),
		Tag:     req.GetString("tag", ""),
		Limit:   req.GetInt("limit", 0),
		Offset:  req.GetInt("offset", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(catalogError(err)), nil
	}
	return jsonResult(list), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(catalogError(err)), nil
	}
	return jsonResult(results), nil
}

func catalogError(err error) string {
	if errors.Is(err, apperr.ErrUnavailable) {
		return "note catalog is disabled (index.enabled: false)"
	}
	return err.Error()
}

func (s *Server) getNoteFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}

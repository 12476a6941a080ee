package mcpadapter

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

const instructions = `Tools over one conversation with a context buffer. Add background with add_page,
add_video, add_document or set_notes, then call ask. Failed extractions are kept in the buffer
as their error text; show_context prints the buffer.`

// Tools exposes one process-wide session as MCP tools.
type Tools struct {
	svc       ports.AssistantService
	sessionID string
}

func NewTools(svc ports.AssistantService, sessionID string) *Tools {
	return &Tools{svc: svc, sessionID: sessionID}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
	)
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Ask the assistant a question. The whole conversation and the context buffer are sent to the model."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question")),
	), t.ask)
	s.AddTool(mcp.NewTool("add_page",
		mcp.WithDescription("Fetch a web page and append its visible text to the context buffer."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http or https address")),
	), t.addPage)
	s.AddTool(mcp.NewTool("add_video",
		mcp.WithDescription("Append the transcript of a YouTube video to the context buffer."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Video link containing v=<id>")),
	), t.addVideo)
	s.AddTool(mcp.NewTool("add_document",
		mcp.WithDescription("Read a local PDF, XLSX or text file and append its text to the context buffer."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path on the machine running the server")),
	), t.addDocument)
	s.AddTool(mcp.NewTool("set_notes",
		mcp.WithDescription("Replace the free-text notes at the start of the context buffer."),
		mcp.WithString("text", mcp.Required(), mcp.Description("New notes; empty clears them")),
	), t.setNotes)
	s.AddTool(mcp.NewTool("show_context",
		mcp.WithDescription("Show the context buffer, failed extractions included."),
	), t.showContext)
	s.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Clear the conversation and the context buffer."),
	), t.reset)
}

func (t *Tools) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reply, err := t.svc.Ask(ctx, t.sessionID, question)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("ask failed", err), nil
	}
	return mcp.NewToolResultText(reply.Text), nil
}

func (t *Tools) addPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return extractionResult(t.svc.AddPage(ctx, t.sessionID, pageURL))
}

func (t *Tools) addVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return extractionResult(t.svc.AddVideo(ctx, t.sessionID, videoURL))
}

func (t *Tools) addDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("open document", err), nil
	}
	defer file.Close()

	name := filepath.Base(path)
	return extractionResult(t.svc.AddDocument(ctx, t.sessionID, name, mime.TypeByExtension(filepath.Ext(name)), file))
}

func (t *Tools) setNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if _, err := t.svc.SetNotes(ctx, t.sessionID, text); err != nil {
		return mcp.NewToolResultErrorFromErr("set notes failed", err), nil
	}
	return mcp.NewToolResultText("notes updated"), nil
}

func (t *Tools) showContext(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.svc.Session(ctx, t.sessionID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("load session failed", err), nil
	}
	text := session.Context.String()
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultText("(context is empty)"), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (t *Tools) reset(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := t.svc.Reset(ctx, t.sessionID); err != nil {
		return mcp.NewToolResultErrorFromErr("reset failed", err), nil
	}
	return mcp.NewToolResultText("conversation and context cleared"), nil
}

// extractionResult reports a failed extraction as text: it was still appended to the buffer.
func extractionResult(result *domain.ExtractionResult, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultErrorFromErr("add context failed", err), nil
	}
	if result.Failed() {
		return mcp.NewToolResultText(result.Text), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added %s (%d characters)", result.Source, len([]rune(result.Text)))), nil
}

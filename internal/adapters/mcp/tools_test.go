package mcpadapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

type serviceFake struct {
	session   *domain.Session
	askErr    error
	askedWith string
	docName   string
	docMIME   string
}

func newServiceFake(id string) *serviceFake {
	return &serviceFake{session: domain.NewSession(id, time.Now())}
}

func (s *serviceFake) Session(context.Context, string) (*domain.Session, error) {
	return s.session.Clone(), nil
}

func (s *serviceFake) Ask(_ context.Context, id, question string) (*domain.Message, error) {
	s.askedWith = id
	if s.askErr != nil {
		return nil, s.askErr
	}
	s.session.AppendMessage(domain.RoleUser, question, time.Now())
	reply := s.session.AppendMessage(domain.RoleAssistant, "eco: "+question, time.Now())
	return &reply, nil
}

func (s *serviceFake) SetNotes(_ context.Context, _ string, text string) (*domain.Session, error) {
	s.session.Context.SetNotes(text)
	return s.session.Clone(), nil
}

func (s *serviceFake) AddDocument(_ context.Context, _ string, filename, mimeType string, body io.Reader) (*domain.ExtractionResult, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	s.docName, s.docMIME = filename, mimeType
	result := domain.ExtractionResult{Kind: domain.ExtractionOK, Source: domain.SourceDocument, Origin: filename, Text: string(raw)}
	s.session.Context.Append(result)
	return &result, nil
}

func (s *serviceFake) AddPage(_ context.Context, _ string, pageURL string) (*domain.ExtractionResult, error) {
	result := domain.ExtractionResult{Kind: domain.ExtractionError, Source: domain.SourcePage, Origin: pageURL, Text: "Erro ao acessar o site: refused"}
	s.session.Context.Append(result)
	return &result, nil
}

func (s *serviceFake) AddVideo(_ context.Context, _ string, videoURL string) (*domain.ExtractionResult, error) {
	result := domain.ExtractionResult{Kind: domain.ExtractionOK, Source: domain.SourceVideo, Origin: videoURL, Text: "transcrição"}
	s.session.Context.Append(result)
	return &result, nil
}

func (s *serviceFake) Reset(context.Context, string) (*domain.Session, error) {
	s.session.Reset(time.Now())
	return s.session.Clone(), nil
}

func callTool(t *testing.T, tools *Tools, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	srv := NewServer("context-assistant", "test", tools)
	tool := srv.GetTool(name)
	if tool == nil {
		t.Fatalf("tool %q is not registered", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s handler error = %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	return mcp.GetTextFromContent(res.Content[0])
}

func TestAskUsesProcessSession(t *testing.T) {
	svc := newServiceFake("mcp")
	tools := NewTools(svc, "mcp")

	res := callTool(t, tools, "ask", map[string]any{"question": "tudo bem?"})
	if res.IsError || resultText(t, res) != "eco: tudo bem?" {
		t.Fatalf("unexpected result %+v", res)
	}
	if svc.askedWith != "mcp" {
		t.Fatalf("expected process session, got %q", svc.askedWith)
	}
}

func TestAskMissingQuestionIsToolError(t *testing.T) {
	res := callTool(t, NewTools(newServiceFake("mcp"), "mcp"), "ask", map[string]any{})
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestAskServiceErrorIsToolError(t *testing.T) {
	svc := newServiceFake("mcp")
	svc.askErr = domain.WrapError(domain.ErrUpstream, "chat", errors.New("401 invalid api key"))

	res := callTool(t, NewTools(svc, "mcp"), "ask", map[string]any{"question": "oi"})
	if !res.IsError || !strings.Contains(resultText(t, res), "invalid api key") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestContextToolsBuildBuffer(t *testing.T) {
	svc := newServiceFake("mcp")
	tools := NewTools(svc, "mcp")

	callTool(t, tools, "set_notes", map[string]any{"text": "notas"})
	if text := resultText(t, callTool(t, tools, "add_video", map[string]any{"url": "https://youtu.be/watch?v=x"})); !strings.HasPrefix(text, "added video") {
		t.Fatalf("unexpected add_video text %q", text)
	}
	res := callTool(t, tools, "add_page", map[string]any{"url": "http://localhost:1"})
	if res.IsError || resultText(t, res) != "Erro ao acessar o site: refused" {
		t.Fatalf("failed extraction should be reported as text, got %+v", res)
	}

	if got := resultText(t, callTool(t, tools, "show_context", nil)); got != "notas\ntranscrição\nErro ao acessar o site: refused" {
		t.Fatalf("unexpected context %q", got)
	}

	callTool(t, tools, "reset", nil)
	if got := resultText(t, callTool(t, tools, "show_context", nil)); got != "(context is empty)" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestAddDocumentReadsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resumo.txt")
	if err := os.WriteFile(path, []byte("linha"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	svc := newServiceFake("mcp")

	res := callTool(t, NewTools(svc, "mcp"), "add_document", map[string]any{"path": path})
	if res.IsError {
		t.Fatalf("unexpected tool error %q", resultText(t, res))
	}
	if svc.docName != "resumo.txt" || !strings.HasPrefix(svc.docMIME, "text/plain") {
		t.Fatalf("unexpected document %q %q", svc.docName, svc.docMIME)
	}

	res = callTool(t, NewTools(svc, "mcp"), "add_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")})
	if !res.IsError {
		t.Fatalf("expected tool error for missing file")
	}
}

func TestServerRegistersEveryTool(t *testing.T) {
	srv := NewServer("context-assistant", "test", NewTools(newServiceFake("mcp"), "mcp"))
	for _, name := range []string{"ask", "add_page", "add_video", "add_document", "set_notes", "show_context", "reset"} {
		if srv.GetTool(name) == nil {
			t.Fatalf("tool %q missing", name)
		}
	}
}

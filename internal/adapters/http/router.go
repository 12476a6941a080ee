package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

// multipartOverhead is the room left for boundaries and part headers above the file limit.
const multipartOverhead = 1 << 20

type Router struct {
	svc            ports.AssistantService
	uploadMaxBytes int64
	validator      *openAPIValidator
}

func NewRouter(svc ports.AssistantService, uploadMaxBytes int64) (*Router, error) {
	validator, err := newOpenAPIValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		svc:            svc,
		uploadMaxBytes: uploadMaxBytes,
		validator:      validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{session_id}", rt.getSession)
	mux.HandleFunc("POST /v1/sessions/{session_id}/messages", rt.ask)
	mux.HandleFunc("PUT /v1/sessions/{session_id}/context/notes", rt.setNotes)
	mux.HandleFunc("POST /v1/sessions/{session_id}/context/document", rt.addDocument)
	mux.HandleFunc("POST /v1/sessions/{session_id}/context/page", rt.addPage)
	mux.HandleFunc("POST /v1/sessions/{session_id}/context/video", rt.addVideo)
	mux.HandleFunc("POST /v1/sessions/{session_id}/reset", rt.reset)

	return requestIDMiddleware(accessLogMiddleware(recoverMiddleware(rt.validator.middleware(mux))))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	annotateSession(r.Context(), id)
	session, err := rt.svc.Session(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}
	session, err := rt.svc.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Reply   *domain.Message `json:"reply"`
	Session sessionView     `json:"session"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := rt.svc.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := rt.svc.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Reply: reply, Session: newSessionView(session)})
}

type notesRequest struct {
	Text string `json:"text"`
}

func (rt *Router) setNotes(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}
	var req notesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := rt.svc.SetNotes(r.Context(), sessionID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

type extractionResponse struct {
	Result  *domain.ExtractionResult `json:"result"`
	Session sessionView              `json:"session"`
}

func (rt *Router) addDocument(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes+multipartOverhead)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		if status := mapErrorToHTTPStatus(err); status == http.StatusRequestEntityTooLarge {
			writeErrorMessage(w, r, status, fmt.Sprintf("document exceeds %d bytes", rt.uploadMaxBytes))
			return
		}
		writeErrorMessage(w, r, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	result, err := rt.svc.AddDocument(
		r.Context(),
		sessionID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	rt.writeExtraction(w, r, sessionID, result, err)
}

type linkRequest struct {
	URL string `json:"url"`
}

func (rt *Router) addPage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}
	var req linkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := rt.svc.AddPage(r.Context(), sessionID, req.URL)
	rt.writeExtraction(w, r, sessionID, result, err)
}

func (rt *Router) addVideo(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}
	var req linkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := rt.svc.AddVideo(r.Context(), sessionID, req.URL)
	rt.writeExtraction(w, r, sessionID, result, err)
}

// writeExtraction answers 200 for failed extractions too; the failure is in result.kind.
func (rt *Router) writeExtraction(w http.ResponseWriter, r *http.Request, sessionID string, result *domain.ExtractionResult, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := rt.svc.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, extractionResponse{Result: result, Session: newSessionView(session)})
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindSessionID(w, r)
	if !ok {
		return
	}
	session, err := rt.svc.Reset(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func bindSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var sessionID openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "session_id", r.PathValue("session_id"), &sessionID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, fmt.Sprintf("invalid session_id: %v", err))
		return "", false
	}
	annotateSession(r.Context(), sessionID.String())
	return sessionID.String(), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// sessionView is the wire shape of a session. Context is the whole buffer, failed
// extractions included.
type sessionView struct {
	ID        string                    `json:"id"`
	Messages  []domain.Message          `json:"messages"`
	Notes     string                    `json:"notes"`
	Context   string                    `json:"context"`
	Entries   []domain.ExtractionResult `json:"entries"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

func newSessionView(session *domain.Session) sessionView {
	view := sessionView{
		ID:        session.ID,
		Messages:  session.Messages,
		Notes:     session.Context.Notes,
		Context:   session.Context.String(),
		Entries:   session.Context.Entries,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
	if view.Messages == nil {
		view.Messages = []domain.Message{}
	}
	if view.Entries == nil {
		view.Entries = []domain.ExtractionResult{}
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("http_response_encode_failed", "status", status, "error", err)
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type SessionStore interface {
	CreateSession(candidateName, candidateEmail, language string) (*model.Session, error)
	GetSession(id string) (*model.Session, error)
	ListSessions() ([]model.Session, error)
	UpdateSession(id string, patch model.SessionPatch) (*model.Session, error)
	TerminateSession(id string) error
	SaveCode(ctx context.Context, id, code, language string) error
	GetCode(id string) (string, string, error)
}

type Runner interface {
	Run(ctx context.Context, code, language string) model.ExecutionResult
}

type CreateSessionRequest struct {
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
	Language       string `json:"language"`
}

type SaveCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger   zerolog.Logger
	sessions SessionStore
	runner   Runner
	*http.Server
}

type Config struct {
	Logger         *zerolog.Logger
	Sessions       SessionStore
	Runner         Runner
	MetricsHandler http.Handler
	ListenAddr     string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:   cfg.Logger.With().Str("component", "api-server").Logger(),
		sessions: cfg.Sessions,
		runner:   cfg.Runner,
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /api/sessions", srv.createSession)
	r.HandleFunc("GET /api/sessions", srv.listSessions)
	r.HandleFunc("GET /api/sessions/{id}", srv.getSession)
	r.HandleFunc("PUT /api/sessions/{id}", srv.updateSession)
	r.HandleFunc("POST /api/sessions/{id}/terminate", srv.terminateSession)
	r.HandleFunc("PUT /api/sessions/{id}/code", srv.saveCode)
	r.HandleFunc("GET /api/sessions/{id}/code", srv.getCode)
	r.HandleFunc("GET /api/questions", srv.getQuestions)
	r.HandleFunc("POST /api/execute", srv.execute)
	r.HandleFunc("GET /health", srv.health)
	r.HandleFunc("OPTIONS /", corsHandler)
	if cfg.MetricsHandler != nil {
		r.Handle("GET /metrics", cfg.MetricsHandler)
	}

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &GenericResponse{Message: "OK"})
}

func (srv *Server) createSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	var req CreateSessionRequest
	if !readBody(w, r, &req) {
		return
	}
	if req.CandidateName == "" {
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: "candidateName is required"})
		return
	}
	if req.Language == "" {
		req.Language = "python"
	}

	session, err := srv.sessions.CreateSession(req.CandidateName, req.CandidateEmail, req.Language)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to create session")
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (srv *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	sessions, err := srv.sessions.ListSessions()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (srv *Server) getSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	session, ok := srv.fetchSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (srv *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, ok := srv.fetchSession(w, r); !ok {
		return
	}
	var patch model.SessionPatch
	if !readBody(w, r, &patch) {
		return
	}
	session, err := srv.sessions.UpdateSession(r.PathValue("id"), patch)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (srv *Server) terminateSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, ok := srv.fetchSession(w, r); !ok {
		return
	}
	if err := srv.sessions.TerminateSession(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &GenericResponse{Message: "session terminated"})
}

func (srv *Server) saveCode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, ok := srv.fetchSession(w, r); !ok {
		return
	}
	var req SaveCodeRequest
	if !readBody(w, r, &req) {
		return
	}
	if err := srv.sessions.SaveCode(r.Context(), r.PathValue("id"), req.Code, req.Language); err != nil {
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &GenericResponse{Message: "OK"})
}

func (srv *Server) getCode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, ok := srv.fetchSession(w, r); !ok {
		return
	}
	code, language, err := srv.sessions.GetCode(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, model.CodePayload{Code: code, Language: language})
}

func (srv *Server) getQuestions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	language := r.URL.Query().Get("language")
	level := r.URL.Query().Get("level")
	writeJSON(w, http.StatusOK, questionsFor(language, level))
}

func (srv *Server) execute(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	var req ExecuteRequest
	if !readBody(w, r, &req) {
		return
	}
	result := srv.runner.Run(r.Context(), req.Code, req.Language)
	writeJSON(w, http.StatusOK, result)
}

func (srv *Server) fetchSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	session, err := srv.sessions.GetSession(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return nil, false
	}
	if session == nil {
		writeJSON(w, http.StatusNotFound, &GenericResponse{Error: "session not found"})
		return nil, false
	}
	return session, true
}

func readBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, _ := io.ReadAll(r.Body)
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.Unmarshal(body, v); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBytes(w, code, b)
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

// Package api implements the HTTP server exposing repository analysis over
// a small JSON API.
//
// Endpoints:
//
//	POST /api/v1/analyze           run the analysis pipeline, return the payload
//	POST /api/v1/diff              return one file's diff from a commit
//	GET  /api/v1/config/openai-key expose the configured summarizer key
//	GET  /healthz                  liveness probe
//
// All /api/v1 routes require the X-API-Key header when a server key is
// configured.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/gitscape/internal/config"
	"github.com/matzehuels/gitscape/pkg/diff"
	"github.com/matzehuels/gitscape/pkg/errors"
	"github.com/matzehuels/gitscape/pkg/pipeline"
)

// DiffSource fetches a commit's unified diff. *github.Client satisfies it.
type DiffSource interface {
	CommitDiff(ctx context.Context, owner, repo, sha string) (string, error)
}

// Server wires the pipeline runner and diff source into HTTP handlers.
type Server struct {
	runner *pipeline.Runner
	diffs  DiffSource
	cfg    config.Server
	openAI config.OpenAI
	logger *log.Logger
}

// NewServer creates the API server.
func NewServer(runner *pipeline.Runner, diffs DiffSource, cfg *config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		runner: runner,
		diffs:  diffs,
		cfg:    cfg.Server,
		openAI: cfg.OpenAI,
		logger: logger,
	}
}

// Router builds the chi router with all middleware and routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(cors(s.cfg.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/diff", s.handleDiff)
		r.Get("/config/openai-key", s.handleOpenAIKey)
	})

	return r
}

// analyzeRequest is the /analyze body. Limit 0 means the default page size.
type analyzeRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}

	result, err := s.runner.Execute(r.Context(), pipeline.Options{
		Owner:  req.Owner,
		Repo:   req.Repo,
		Limit:  req.Limit,
		Logger: s.logger,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if len(result.Layout.Nodes) == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeNoCommits, "no commits found in repository"))
		return
	}

	writeJSON(w, http.StatusOK, result.Layout)
}

// diffRequest is the /diff body. File is the path within the commit.
type diffRequest struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Commit string `json:"commit"`
	File   string `json:"file"`
}

// diffResponse carries one file's diff text.
type diffResponse struct {
	Content string `json:"content"`
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if req.Owner == "" || req.Repo == "" || req.Commit == "" || req.File == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "owner, repo, commit, and file are required"))
		return
	}

	full, err := s.diffs.CommitDiff(r.Context(), req.Owner, req.Repo, req.Commit)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeNetwork, err, "fetch diff for %s", req.Commit))
		return
	}

	chunk, ok := diff.Lookup(diff.Split(full), req.File)
	if !ok {
		writeJSON(w, http.StatusOK, diffResponse{Content: "No changes found for this file"})
		return
	}
	writeJSON(w, http.StatusOK, diffResponse{Content: chunk})
}

// openAIKeyResponse exposes the summarizer key to the frontend.
type openAIKeyResponse struct {
	Key string `json:"key"`
}

func (s *Server) handleOpenAIKey(w http.ResponseWriter, r *http.Request) {
	if s.openAI.APIKey == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInternal, "OpenAI API key not configured on server"))
		return
	}
	writeJSON(w, http.StatusOK, openAIKeyResponse{Key: s.openAI.APIKey})
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}

	var body errorBody
	body.Error.Code = string(errors.GetCode(err))
	if body.Error.Code == "" {
		body.Error.Code = string(errors.ErrCodeInternal)
	}
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

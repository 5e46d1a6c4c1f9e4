// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"

	"twig/internal/branch"
	"twig/internal/errors"
	"twig/internal/graph"
	"twig/internal/logging"
	"twig/internal/middleware"
	"twig/internal/object"
	"twig/internal/repo"

	"go.uber.org/zap"
)

// Reader is the read-only view of a repository the API serves.
type Reader interface {
	ListBranches() ([]*branch.Branch, error)
	Log() ([]graph.LogEntry, error)
	ResolveCommit(id string) (*object.Commit, error)
	Status() (*repo.Status, error)
}

type RepoHandler struct {
	repo   Reader
	logger *logging.Logger
}

func NewRepoHandler(r Reader, logger *logging.Logger) *RepoHandler {
	return &RepoHandler{repo: r, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *RepoHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := errors.As(err); ok {
		writeJSON(w, e.Code, e)
		return
	}
	h.logger.WithRequestID(r.Context()).Error("request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *RepoHandler) Branches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.repo.ListBranches()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (h *RepoHandler) Log(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.Log()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Commit serves one commit; the id may be abbreviated.
func (h *RepoHandler) Commit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	c, err := h.repo.ResolveCommit(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *RepoHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.repo.Status()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}

// NewRouter wires every endpoint behind the request-id, logging,
// recovery and compression middleware.
func NewRouter(h *RepoHandler, logger *logging.Logger, compression middleware.CompressionOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthCheck)
	mux.HandleFunc("GET /api/branches", h.Branches)
	mux.HandleFunc("GET /api/log", h.Log)
	mux.HandleFunc("GET /api/commits/{id}", h.Commit)
	mux.HandleFunc("GET /api/status", h.Status)

	return middleware.Chain(
		mux,
		middleware.Compress(compression),
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)
}

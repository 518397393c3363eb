package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archmap/internal/artifact"
	"archmap/internal/cache/memory"
	"archmap/internal/llmclient"
	"archmap/internal/organize"
	"archmap/internal/store"
)

// Service wires the run store, artifact store, and pipeline execution behind
// the HTTP surface.
type Service struct {
	Runs      *store.Store
	Artifacts artifact.Store
	LLM       llmclient.Client

	// RepoBase restricts analyzable repositories to subdirectories of this path.
	RepoBase string

	diagrams *memory.Cache[string, string]
	hub      *eventHub
}

func NewService(runs *store.Store, artifacts artifact.Store, llm llmclient.Client, repoBase string) *Service {
	return &Service{
		Runs:      runs,
		Artifacts: artifacts,
		LLM:       llm,
		RepoBase:  repoBase,
		diagrams:  memory.New[string, string](128, 10*time.Minute),
		hub:       newEventHub(),
	}
}

// BuildMux registers all HTTP routes.
func BuildMux(s *Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs", s.handleCreateRun)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/diagram", s.handleGetDiagram)
	mux.HandleFunc("GET /v1/runs/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.handleRunEvents)
	return mux
}

type createRunRequest struct {
	Repo   string   `json:"repo"`
	Path   string   `json:"path"`
	Exts   []string `json:"exts,omitempty"`
	Format string   `json:"format,omitempty"`
	Detail bool     `json:"detail,omitempty"`
}

type createRunResponse struct {
	RunID string `json:"run_id"`
}

func (s *Service) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	repoPath, err := s.resolveRepoPath(req.Path)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	repo := strings.TrimSpace(req.Repo)
	if repo == "" {
		repo = filepath.Base(repoPath)
	}

	runID := newRunID(repo)
	s.Runs.Put(store.Run{
		RunID:     runID,
		Repo:      repo,
		Status:    store.StatusPending,
		Format:    req.Format,
		Detail:    req.Detail,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	s.Runs.Save()

	go s.executeRun(runID, repo, repoPath, req)

	writeJSON(w, http.StatusAccepted, createRunResponse{RunID: runID})
}

func (s *Service) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Runs.List())
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.Runs.Get(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Service) handleGetDiagram(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if text, ok := s.diagrams.Get(runID); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
		return
	}
	run, ok := s.Runs.Get(runID)
	if !ok {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	if run.Status != store.StatusDone || run.Diagram == "" {
		httpError(w, http.StatusConflict, "run has no diagram yet")
		return
	}
	s.diagrams.Set(runID, run.Diagram)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(run.Diagram))
}

func (s *Service) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, ok := s.Runs.Get(runID); !ok {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	arts, err := s.Runs.ListArtifacts(runID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, arts)
}

// resolveRepoPath keeps analyzed paths under RepoBase.
func (s *Service) resolveRepoPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	base := strings.TrimSpace(s.RepoBase)
	if base == "" {
		return "", fmt.Errorf("repository base is not configured")
	}
	joined := filepath.Join(base, filepath.Clean("/"+path))
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	if abs != absBase && !strings.HasPrefix(abs, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the repository base")
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("no repository at %q", path)
	}
	return abs, nil
}

func newRunID(repo string) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	slug := organize.Slugify(repo)
	if slug == "" {
		slug = "run"
	}
	return fmt.Sprintf("%s-%d-%s", slug, time.Now().Unix(), hex.EncodeToString(b[:]))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

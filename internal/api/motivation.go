package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/motivate/internal/motivation"
	"github.com/kalambet/motivate/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Sessions is the per-user engine registry. Implemented by *session.Manager.
type Sessions interface {
	Generate(userID string, seed motivation.Seed, u motivation.Update) (motivation.State, error)
	State(userID string) (motivation.State, error)
	Explain(userID string) (string, error)
	Forget(userID string) bool
}

// RunJournal reads and prunes journaled runs. Implemented by *storage.Store.
type RunJournal interface {
	GetRun(id string) (storage.Run, error)
	ListRuns(userID string, limit, offset int) ([]storage.Run, error)
	CountRuns(userID string) (int, error)
	DeleteRuns(userID string) (int64, error)
}

type AppDeps struct {
	Sessions Sessions
	Runs     RunJournal   // optional; nil when the journal is disabled
	Metrics  http.Handler // optional; served on /metrics
	Token    string       // optional; empty disables bearer auth
}

// GenerateRequest is the body of POST /users/{id}/motivation. Seed is always
// validated but only applies when the user has no engine yet. A goals or
// challenges array that is present but empty clears the list; an omitted one
// keeps it.
type GenerateRequest struct {
	Seed *motivation.Seed `json:"seed,omitempty"`
	motivation.Update
}

type RunsResponse struct {
	Runs   []storage.Run `json:"runs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/users/{id}/motivation", handleGenerate(deps))
		r.Get("/users/{id}/state", handleGetState(deps))
		r.Get("/users/{id}/explain", handleExplain(deps))
		r.Get("/users/{id}/runs", handleListRuns(deps))
		r.Get("/users/{id}/runs/{runID}", handleGetRun(deps))
		r.Delete("/users/{id}", handleForget(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGenerate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var seed motivation.Seed
		if req.Seed != nil {
			seed = *req.Seed
		}
		state, err := deps.Sessions.Generate(userID, seed, req.Update)
		if err != nil {
			engineError(w, err)
			return
		}
		writeJSON(w, state)
	}
}

func handleGetState(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := deps.Sessions.State(chi.URLParam(r, "id"))
		if err != nil {
			engineError(w, err)
			return
		}
		writeJSON(w, state)
	}
}

func handleExplain(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")
		summary, err := deps.Sessions.Explain(userID)
		if err != nil {
			engineError(w, err)
			return
		}
		writeJSON(w, map[string]string{
			"userId":  userID,
			"summary": summary,
		})
	}
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Runs == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "run journal is disabled")
			return
		}
		userID := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		runs, err := deps.Runs.ListRuns(userID, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}
		total, err := deps.Runs.CountRuns(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count runs: %v", err)
			return
		}
		if runs == nil {
			runs = []storage.Run{}
		}

		writeJSON(w, RunsResponse{Runs: runs, Total: total, Limit: limit, Offset: offset})
	}
}

func handleGetRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Runs == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "run journal is disabled")
			return
		}
		run, err := deps.Runs.GetRun(chi.URLParam(r, "runID"))
		// A run belonging to another user is reported as missing.
		if errors.Is(err, storage.ErrNotFound) || (err == nil && run.UserID != chi.URLParam(r, "id")) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
			return
		}
		writeJSON(w, run)
	}
}

func handleForget(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")

		forgotten := deps.Sessions.Forget(userID)
		var deleted int64
		if deps.Runs != nil {
			n, err := deps.Runs.DeleteRuns(userID)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to delete runs: %v", err)
				return
			}
			deleted = n
		}
		if !forgotten && deleted == 0 {
			httpError(w, http.StatusNotFound, "not_found", "no motivation state for this user")
			return
		}

		writeJSON(w, map[string]any{
			"status":      "deleted",
			"runsDeleted": deleted,
		})
	}
}

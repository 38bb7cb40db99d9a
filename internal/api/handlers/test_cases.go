package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/tasks"
)

type TestCaseHandler struct {
	gen  *generation.Service
	jobs *tasks.Jobs
}

// NewTestCaseHandler accepts a nil jobs when no queue is configured. Async
// requests then run inline.
func NewTestCaseHandler(gen *generation.Service, jobs *tasks.Jobs) *TestCaseHandler {
	return &TestCaseHandler{gen: gen, jobs: jobs}
}

// Generate handles POST /api/generate-test-cases
func (h *TestCaseHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.GenerateTestCasesRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Async && h.jobs != nil {
		job, err := h.jobs.EnqueueGeneration(r.Context(), userID, req.Request)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	result, err := h.gen.Generate(r.Context(), userID, req.Request)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Latest handles GET /api/test-cases/latest
func (h *TestCaseHandler) Latest(w http.ResponseWriter, r *http.Request) {
	cases, err := h.gen.Latest(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTestCasesResponse(cases))
}

// SaveLatest handles PUT /api/test-cases/latest
func (h *TestCaseHandler) SaveLatest(w http.ResponseWriter, r *http.Request) {
	var req dto.SaveTestCasesRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.gen.SaveLatest(r.Context(), middleware.GetUserID(r.Context()), req.TestCases); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTestCasesResponse(req.TestCases))
}

// Job handles GET /api/test-cases/jobs/{id}
func (h *TestCaseHandler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, r, tasks.ErrJobNotFound)
		return
	}

	job, err := h.jobs.Status(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ImportXray handles POST /api/import-xray
func (h *TestCaseHandler) ImportXray(w http.ResponseWriter, r *http.Request) {
	var req dto.ImportXrayRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.gen.ImportToXray(r.Context(), middleware.GetUserID(r.Context()), req.SettingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ImportXrayResponse{
		Message: "Import to Xray started",
		JobID:   result.JobID,
	})
}

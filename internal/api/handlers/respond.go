package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/artifacts"
	"github.com/hugh/testforge/internal/auth"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/tasks"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// validator is implemented by every request DTO.
type validator interface {
	Validate() map[string]string
}

// decode reads a JSON body into v and runs its validation. It writes the 400
// itself and reports false when the request should stop.
func decode(w http.ResponseWriter, r *http.Request, v validator) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	if errs := v.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return false
	}
	return true
}

// writeError maps service errors onto status codes. Unknown errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		storeInvalid *store.ValidationError
		authInvalid  *auth.ValidationError
		upstream     *llm.ExternalServiceError
	)

	switch {
	case errors.As(err, &storeInvalid):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: storeInvalid.Fields})
	case errors.As(err, &authInvalid):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: authInvalid.Fields})

	case errors.Is(err, llm.ErrUnsupportedProvider),
		errors.Is(err, llm.ErrMissingAPIKey),
		errors.Is(err, llm.ErrMissingModel),
		errors.Is(err, agents.ErrEmptyTask),
		errors.Is(err, agents.ErrUnknownKind),
		errors.Is(err, jira.ErrNotRequirement),
		errors.Is(err, jira.ErrNoTestCases),
		errors.Is(err, generation.ErrNoJiraSettings):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})

	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
	case errors.Is(err, auth.ErrInactiveUser):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Account is inactive"})

	case errors.Is(err, artifacts.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No test cases found. Generate test cases first."})
	case errors.Is(err, jira.ErrIssueNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Jira issue not found"})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, agents.ErrNotFound),
		errors.Is(err, tasks.ErrJobNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})

	case errors.Is(err, store.ErrDuplicateName):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "A record with this name already exists"})
	case errors.Is(err, auth.ErrUsernameTaken):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Username is already taken"})
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Email is already registered"})
	case errors.Is(err, auth.ErrUserExists):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
	case errors.Is(err, agents.ErrNotRunning):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Execution is not running"})

	case errors.As(err, &upstream):
		slog.WarnContext(r.Context(), "upstream call failed",
			"provider", upstream.Provider,
			"status", upstream.StatusCode,
			"path", r.URL.Path,
		)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{
			Error:   upstream.Error(),
			Details: map[string]string{"provider": upstream.Provider},
		})

	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/llm"
)

// Generator runs one test case generation.
type Generator interface {
	Generate(ctx context.Context, userID uuid.UUID, req generation.Request) (*generation.Result, error)
}

// SessionPurger deletes sessions that can no longer authenticate.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

type Handler struct {
	generator Generator
	sessions  SessionPurger
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(generator Generator, sessions SessionPurger, logger *slog.Logger) *Handler {
	return &Handler{
		generator: generator,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGenerateTestCases, h.HandleGenerateTestCases)
	mux.HandleFunc(TypeSessionCleanup, h.HandleSessionCleanup)
}

func (h *Handler) HandleGenerateTestCases(ctx context.Context, t *asynq.Task) error {
	var payload GenerateTestCasesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("starting test case generation",
		"user_id", payload.UserID,
		"requirement", payload.Request.RequirementKey,
		"setting", payload.Request.SettingID,
	)

	result, err := h.generator.Generate(ctx, payload.UserID, payload.Request)
	if err != nil {
		h.logger.Error("test case generation failed", "user_id", payload.UserID, "error", err)
		if !retryable(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if w := t.ResultWriter(); w != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	h.logger.Info("completed test case generation",
		"user_id", payload.UserID,
		"requirement", result.RequirementKey,
		"count", len(result.TestCases),
	)
	return nil
}

// retryable reports whether a failed run might succeed unchanged. Only
// upstream failures qualify.
func retryable(err error) bool {
	var ext *llm.ExternalServiceError
	return errors.As(err, &ext)
}

func (h *Handler) HandleSessionCleanup(ctx context.Context, t *asynq.Task) error {
	purged, err := h.sessions.PurgeExpiredSessions(ctx, h.now())
	if err != nil {
		return fmt.Errorf("purging sessions: %w", err)
	}
	h.logger.Info("session cleanup completed", "purged", purged)
	return nil
}

package dto

import (
	"net/url"
	"strconv"
	"time"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

func NewList[T any](items []T) ListResponse {
	if items == nil {
		items = []T{}
	}
	return ListResponse{Data: items, Total: len(items)}
}

// IncludeSecrets reports whether the caller asked for unmasked secrets.
func IncludeSecrets(q url.Values) bool {
	v, _ := strconv.ParseBool(q.Get("include_secrets"))
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

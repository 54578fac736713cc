package graphql

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql"

	"givingchain/pkg/requestcontext"
)

// Handler serves the schema over POST /graphql.
type Handler struct {
	schema graphql.Schema
	logger *slog.Logger
}

func NewHandler(schema graphql.Schema, logger *slog.Logger) *Handler {
	return &Handler{schema: schema, logger: logger}
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        r.Context(),
	})

	if len(result.Errors) > 0 {
		h.logger.WarnContext(r.Context(), "graphql errors",
			"errors", result.Errors,
			"operation", req.OperationName,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write graphql response", "error", err)
	}
}

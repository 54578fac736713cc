package graphql_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"givingchain/internal/graphql"
	"givingchain/internal/platform/middleware"
)

func (s *SchemaSuite) handler() http.Handler {
	logger := slog.New(slog.DiscardHandler)
	return middleware.RequestID(graphql.NewHandler(s.schema, logger))
}

func (s *SchemaSuite) TestHandlerServesQuery() {
	body := `{"query": "{ getTrackables { did trackables { name } } }"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handler().ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))
	s.NotEmpty(rec.Header().Get("X-Request-Id"))

	var result struct {
		Data struct {
			GetTrackables struct {
				DID        string           `json:"did"`
				Trackables []map[string]any `json:"trackables"`
			} `json:"getTrackables"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Empty(result.Errors)
	s.NotEmpty(result.Data.GetTrackables.DID)
	s.Empty(result.Data.GetTrackables.Trackables)
}

func (s *SchemaSuite) TestHandlerRejectsGet() {
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	rec := httptest.NewRecorder()

	s.handler().ServeHTTP(rec, req)

	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *SchemaSuite) TestHandlerRejectsBadBody() {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	s.handler().ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

package blob_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givingchain/internal/blob"
	"givingchain/internal/identity"
	"givingchain/internal/keyring"
)

func newBlobRouter(t *testing.T) (chi.Router, *blob.InMemoryStore) {
	t.Helper()
	store := blob.NewInMemoryStore()
	router := chi.NewRouter()
	blob.NewHandler(store, slog.New(slog.DiscardHandler)).Register(router)
	return router, store
}

func authedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	key, err := keyring.Generate()
	require.NoError(t, err)
	actor := identity.Actor{DID: key.DID(), Username: "uploader", Key: key}
	return req.WithContext(identity.WithActor(req.Context(), actor))
}

func TestBlobUploadAndFetch(t *testing.T) {
	router, _ := newBlobRouter(t)

	req := authedRequest(t, http.MethodPost, "/blobs", "fake image bytes")
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Ref string `json:"ref"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.Ref, blob.Scheme))

	fetch := httptest.NewRequest(http.MethodGet, "/blobs/"+strings.TrimPrefix(created.Ref, blob.Scheme), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, fetch)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fake image bytes", rec.Body.String())
}

func TestBlobUploadRequiresAuth(t *testing.T) {
	router, _ := newBlobRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/blobs", strings.NewReader("bytes"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBlobUploadRejectsEmptyBody(t *testing.T) {
	router, _ := newBlobRouter(t)

	req := authedRequest(t, http.MethodPost, "/blobs", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlobFetchUnknownRef(t *testing.T) {
	router, _ := newBlobRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/blobs/deadbeef", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package blob

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"givingchain/internal/identity"
	dErrors "givingchain/pkg/domain-errors"
	"givingchain/pkg/platform/sentinel"
)

// maxUploadBytes caps a single image upload.
const maxUploadBytes = 8 << 20

// Handler exposes upload and fetch endpoints over a blob Store, so clients
// can attach images to trackables by reference instead of inlining them.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts the blob routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/blobs", h.handleUpload)
	r.Get("/blobs/{ref}", h.handleFetch)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !identity.ActorFrom(ctx).Authenticated() {
		writeError(w, dErrors.New(dErrors.CodeUnauthenticated, "login required"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeError(w, dErrors.Wrap(dErrors.CodeBadRequest, "read upload", err))
		return
	}
	if len(data) == 0 {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "empty upload"))
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "upload too large"))
		return
	}

	ref, err := h.store.Upload(ctx, r.Header.Get("Content-Type"), data)
	if err != nil {
		h.logger.ErrorContext(ctx, "blob upload failed", "error", err)
		writeError(w, dErrors.Wrap(dErrors.CodeUnavailable, "blob upload failed", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"ref": ref})
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := Scheme + chi.URLParam(r, "ref")

	contentType, data, err := h.store.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, dErrors.New(dErrors.CodeNotFound, "blob not found"))
			return
		}
		h.logger.ErrorContext(ctx, "blob fetch failed", "ref", ref, "error", err)
		writeError(w, dErrors.Wrap(dErrors.CodeUnavailable, "blob fetch failed", err))
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(dErrors.CodeOf(err)))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

package wsapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/apperr"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/version"
)

// VersionAPI exposes C5 Version Store operations over plain JSON HTTP,
// alongside the WebSocket surface Hub serves. Grounded on the teacher's
// handleViewportQuery/handleSpatialStats handlers in root main.go: small,
// free-standing functions over a *Server-equivalent receiver, no router
// framework.
type VersionAPI struct {
	store *version.Store
}

func NewVersionAPI(store *version.Store) *VersionAPI {
	return &VersionAPI{store: store}
}

func (v *VersionAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}
	versions, err := v.store.List(r.Context(), documentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (v *VersionAPI) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		DocumentID  string `json:"documentId"`
		Content     string `json:"content"`
		UserID      string `json:"userId"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	created, err := v.store.Create(r.Context(), req.DocumentID, req.Content, req.UserID, req.Description)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (v *VersionAPI) HandleRevert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		DocumentID    string `json:"documentId"`
		VersionNumber int    `json:"versionNumber"`
		UserID        string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	reverted, err := v.store.Revert(r.Context(), req.DocumentID, req.VersionNumber, req.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reverted)
}

func (v *VersionAPI) HandleDiff(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")
	toParam := r.URL.Query().Get("to")
	if documentID == "" || toParam == "" {
		http.Error(w, "documentId and to are required", http.StatusBadRequest)
		return
	}
	to, err := strconv.Atoi(toParam)
	if err != nil {
		http.Error(w, "to must be an integer version number", http.StatusBadRequest)
		return
	}

	var from *int
	if fromParam := r.URL.Query().Get("from"); fromParam != "" {
		f, err := strconv.Atoi(fromParam)
		if err != nil {
			http.Error(w, "from must be an integer version number", http.StatusBadRequest)
			return
		}
		from = &f
	}

	diff, err := v.store.Diff(r.Context(), documentID, to, from)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNoChanges):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrDocumentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

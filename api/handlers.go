package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"pokemon-battle-server/auth"
	"pokemon-battle-server/game"
	"pokemon-battle-server/matcherrors"
	"pokemon-battle-server/storage"
)

// TokenValidator is the part of auth.Validator the handlers need.
type TokenValidator interface {
	Validate(token string) (jwt.MapClaims, error)
}

// StateReader loads the committed state of a session.
type StateReader interface {
	Get(ctx context.Context, id string) (*game.GameState, error)
}

const defaultLeaderboardLimit = 20

// Handler holds dependencies for API handlers.
type Handler struct {
	Sessions     StateReader
	HistoryStore storage.HistoryStore
	Tokens       TokenValidator
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(sessions StateReader, history storage.HistoryStore, tokens TokenValidator) *Handler {
	return &Handler{
		Sessions:     sessions,
		HistoryStore: history,
		Tokens:       tokens,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions/{id}", h.Session)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
	mux.HandleFunc("/api/history", h.History)
	mux.HandleFunc("/healthz", Healthz)
}

// CORS sets CORS headers on the response. Call before writing body.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// allowGet answers preflight requests and rejects anything but GET.
// It reports whether the handler should go on.
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if CORS(w, r) {
		return false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// extractUserID validates the Authorization header and returns the user ID, or empty string on failure.
func (h *Handler) extractUserID(r *http.Request) string {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" || h.Tokens == nil {
		return ""
	}
	claims, err := h.Tokens.Validate(token)
	if err != nil {
		slog.Debug("rejected bearer token", "tag", "api", "err", err)
		return ""
	}
	return auth.UserIDFromClaims(claims)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "tag", "api", "err", err)
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// Session returns the current state of one session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	state, err := h.Sessions.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, matcherrors.ErrSessionNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load session", "tag", "api", "id", r.PathValue("id"), "err", err)
		http.Error(w, "failed to load game", http.StatusInternalServerError)
		return
	}
	writeJSON(w, state)
}

// History returns the game history for the authenticated user.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	list := []storage.GameRecord{}
	if h.HistoryStore != nil {
		var err error
		list, err = h.HistoryStore.ListByUserID(r.Context(), userID)
		if err != nil {
			slog.Error("list history", "tag", "api", "err", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, list)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Entries          []storage.LeaderboardEntry `json:"entries"`
	CurrentUserEntry *storage.LeaderboardEntry  `json:"current_user_entry"`
}

// Leaderboard returns one page of the global ranking. A signed-in user
// outside that page gets their own row in current_user_entry.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	limit, offset := pageParams(r, defaultLeaderboardLimit)

	resp := LeaderboardResponse{Entries: []storage.LeaderboardEntry{}}
	if h.HistoryStore == nil {
		writeJSON(w, resp)
		return
	}
	entries, err := h.HistoryStore.ListLeaderboard(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list leaderboard", "tag", "api", "err", err)
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	resp.Entries = entries

	if userID := h.extractUserID(r); userID != "" {
		own, err := h.HistoryStore.GetLeaderboardEntryByUserID(r.Context(), userID)
		if err != nil {
			slog.Warn("get leaderboard entry", "tag", "api", "user", userID, "err", err)
		} else {
			resp.CurrentUserEntry = markCurrentUser(resp.Entries, own, userID)
		}
	}
	writeJSON(w, resp)
}

// markCurrentUser flags userID's row in entries. When the row is not on the
// page, own is flagged and returned instead.
func markCurrentUser(entries []storage.LeaderboardEntry, own *storage.LeaderboardEntry, userID string) *storage.LeaderboardEntry {
	for i := range entries {
		if entries[i].UserID == userID {
			entries[i].IsCurrentUser = true
			return nil
		}
	}
	if own != nil {
		own.IsCurrentUser = true
	}
	return own
}

// pageParams reads limit and offset, falling back to def and 0.
func pageParams(r *http.Request, def int) (limit, offset int) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = def
	}
	offset, err = strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

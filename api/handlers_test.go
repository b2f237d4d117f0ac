package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"pokemon-battle-server/game"
	"pokemon-battle-server/storage"
)

// staticTokens accepts "token-<user>" and nothing else.
type staticTokens struct{}

func (staticTokens) Validate(token string) (jwt.MapClaims, error) {
	const prefix = "token-"
	if len(token) > len(prefix) && token[:len(prefix)] == prefix {
		return jwt.MapClaims{"sub": token[len(prefix):]}, nil
	}
	return nil, errors.New("bad token")
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	reader := sessionReader{store}
	mux := http.NewServeMux()
	NewHandler(reader, store, staticTokens{}).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

type sessionReader struct{ store storage.StateStore }

func (s sessionReader) Get(ctx context.Context, id string) (*game.GameState, error) {
	return s.store.Load(ctx, id)
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func seedResult(t *testing.T, store *storage.MemoryStore) {
	t.Helper()
	err := store.RecordResult(context.Background(), storage.GameResult{
		ID: "r1", SessionID: "s1", Player0UserID: "alice", Player1UserID: "bob",
		Player1Knockouts: 3, WinnerIndex: 0, EndReason: "completed",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := get(t, srv.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSession(t *testing.T) {
	srv, store := newTestServer(t)
	if err := store.Create(context.Background(), "abc", game.CreateSession("alice", game.DefaultRules(), nil)); err != nil {
		t.Fatal(err)
	}

	resp := get(t, srv.URL+"/api/sessions/abc", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var state game.GameState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state.State != game.Lobby || state.TurnOrder[0] != "alice" {
		t.Errorf("unexpected state %+v", state)
	}

	if resp := get(t, srv.URL+"/api/sessions/missing", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHistory_RequiresAuth(t *testing.T) {
	srv, store := newTestServer(t)
	seedResult(t, store)

	if resp := get(t, srv.URL+"/api/history", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/api/history", "garbage"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", resp.StatusCode)
	}

	resp := get(t, srv.URL+"/api/history", "token-bob")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var list []storage.GameRecord
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].YourIndex == nil || *list[0].YourIndex != 1 {
		t.Errorf("unexpected history %+v", list)
	}
}

func TestLeaderboard_MarksCurrentUser(t *testing.T) {
	srv, store := newTestServer(t)
	seedResult(t, store)

	resp := get(t, srv.URL+"/api/leaderboard?limit=1", "token-bob")
	var lb LeaderboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatal(err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "alice" {
		t.Fatalf("expected alice on top, got %+v", lb.Entries)
	}
	if lb.CurrentUserEntry == nil || lb.CurrentUserEntry.UserID != "bob" || !lb.CurrentUserEntry.IsCurrentUser {
		t.Errorf("expected bob as current user entry, got %+v", lb.CurrentUserEntry)
	}

	resp = get(t, srv.URL+"/api/leaderboard", "token-alice")
	lb = LeaderboardResponse{}
	json.NewDecoder(resp.Body).Decode(&lb)
	if lb.CurrentUserEntry != nil || !lb.Entries[0].IsCurrentUser {
		t.Errorf("expected alice flagged in place, got %+v", lb)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/leaderboard", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

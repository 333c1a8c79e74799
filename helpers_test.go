package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := openStore(dialectSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestApp(t *testing.T, store *Store) *App {
	t.Helper()

	cache := newLeaderboardCache(store, filepath.Join(t.TempDir(), "classement.json"), time.Hour)
	if err := cache.Rebuild(context.Background()); err != nil {
		t.Fatalf("build classement cache: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	return &App{
		store:       store,
		leaderboard: cache,
		adminHash:   string(hash),
		limiter:     newRateLimiter(1000, time.Minute),
	}
}

func newTestServer(t *testing.T, app *App) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	registerRoutes(mux, app)
	server := httptest.NewServer(maintenanceGate(app.store, mux))
	t.Cleanup(server.Close)
	return server
}

func setScore(t *testing.T, store *Store, pseudo string, score int64) {
	t.Helper()

	if _, err := store.db.Exec(store.q(`
		UPDATE utilisateurs SET score = ? WHERE pseudo = ?
	`), score, pseudo); err != nil {
		t.Fatalf("set score: %v", err)
	}
}

func registerPlayer(t *testing.T, store *Store, pseudo string) {
	t.Helper()

	if err := store.RegisterUser(context.Background(), pseudo, "motdepasse"); err != nil {
		t.Fatalf("register %s: %v", pseudo, err)
	}
}

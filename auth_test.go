package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RegisterUser(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.AuthenticateUser(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	// The stored credential must be a salted hash, never the password.
	var stored string
	if err := store.db.QueryRow(store.q(`
		SELECT mot_de_passe FROM utilisateurs WHERE pseudo = ?
	`), "alice").Scan(&stored); err != nil {
		t.Fatalf("load stored credential: %v", err)
	}
	if stored == "secret123" || !strings.HasPrefix(stored, "$2") {
		t.Fatalf("stored credential is not a bcrypt hash: %q", stored)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RegisterUser(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := store.RegisterUser(ctx, "alice", "autre")
	if !errors.Is(err, errDuplicateUser) {
		t.Fatalf("duplicate register error = %v, want errDuplicateUser", err)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RegisterUser(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.AuthenticateUser(ctx, "alice", "faux"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want errInvalidCredentials", err)
	}
	if err := store.AuthenticateUser(ctx, "inconnu", "secret123"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want errInvalidCredentials", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RegisterUser(ctx, "alice", "ancien"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := store.ChangePassword(ctx, "alice", "faux", "nouveau"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("change with wrong old password: %v, want errInvalidCredentials", err)
	}
	if err := store.ChangePassword(ctx, "alice", "ancien", "nouveau"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if err := store.AuthenticateUser(ctx, "alice", "ancien"); !errors.Is(err, errInvalidCredentials) {
		t.Fatal("old password still accepted")
	}
	if err := store.AuthenticateUser(ctx, "alice", "nouveau"); err != nil {
		t.Fatalf("new password refused: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "alice", false, false)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	loaded, err := store.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if loaded.Pseudo != "alice" || loaded.IsAdmin {
		t.Fatalf("loaded session = %+v", loaded)
	}

	store.DeleteSession(ctx, session.ID)
	if _, err := store.SessionByID(ctx, session.ID); err == nil {
		t.Fatal("deleted session still resolves")
	}
}

func TestSessionExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "alice", false, false)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	expired := time.Now().UTC().Add(-time.Minute).Unix()
	if _, err := store.db.Exec(store.q(`
		UPDATE sessions SET expires_at = ? WHERE session_id = ?
	`), expired, session.ID); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	if _, err := store.SessionByID(ctx, session.ID); !errors.Is(err, errSessionExpired) {
		t.Fatalf("expired session error = %v, want errSessionExpired", err)
	}
	// Expired sessions are deleted on sight.
	if _, err := store.SessionByID(ctx, session.ID); errors.Is(err, errSessionExpired) {
		t.Fatal("expired session row was not removed")
	}
}

func TestSessionRememberMe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	short, err := store.CreateSession(ctx, "alice", false, false)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	long, err := store.CreateSession(ctx, "alice", true, false)
	if err != nil {
		t.Fatalf("create remembered session: %v", err)
	}
	if !long.ExpiresAt.After(short.ExpiresAt.Add(24 * time.Hour)) {
		t.Fatalf("remembered session expires at %v, short at %v", long.ExpiresAt, short.ExpiresAt)
	}
}
